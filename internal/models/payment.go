package models

import "time"

// Payment records one payment submission against an application.
// TransactionCode is unique system-wide.
type Payment struct {
	ID              string     `db:"id" json:"id"`
	ApplicationID   string     `db:"application_id" json:"application_id"`
	TransactionCode string     `db:"transaction_code" json:"transaction_code"`
	Amount          float64    `db:"amount" json:"amount"`
	Currency        string     `db:"currency" json:"currency"`
	PayerPhone      string     `db:"payer_phone" json:"payer_phone"`
	ReceiptPath     string     `db:"receipt_path" json:"-"`
	Verified        bool       `db:"verified" json:"verified"`
	VerifiedBy      *string    `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt      *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	SubmittedAt     time.Time  `db:"submitted_at" json:"submitted_at"`
}

// PaymentDetail enriches Payment with applicant info for finance listings.
type PaymentDetail struct {
	Payment
	ApplicantName string            `db:"applicant_name" json:"applicant_name"`
	TrackingCode  string            `db:"tracking_code" json:"tracking_code"`
	Status        ApplicationStatus `db:"status" json:"status"`
}

// PaymentFilter provides filters for listing payments.
type PaymentFilter struct {
	Verified  *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// SubmitPaymentRequest records a payment for an application.
type SubmitPaymentRequest struct {
	TransactionCode string  `json:"transaction_code" validate:"required,min=4"`
	Amount          float64 `json:"amount" validate:"required,gt=0"`
	PayerPhone      string  `json:"payer_phone" validate:"required"`
}

// FinanceSummary aggregates the finance dashboard figures.
type FinanceSummary struct {
	PendingCount   int             `json:"pending_count"`
	VerifiedCount  int             `json:"verified_count"`
	VerifiedTotal  float64         `json:"verified_total"`
	RejectedCount  int             `json:"rejected_count"`
	SubmittedToday int             `json:"submitted_today"`
	RecentVerified []PaymentDetail `json:"recent_verified"`
	Currency       string          `json:"currency"`
	GeneratedAt    time.Time       `json:"generated_at"`
}
