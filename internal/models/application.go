package models

import "time"

// ApplicationStatus represents the lifecycle of a mentorship application.
type ApplicationStatus string

// Possible application statuses.
const (
	ApplicationStatusDraft           ApplicationStatus = "draft"
	ApplicationStatusPendingFinance  ApplicationStatus = "pending_finance"
	ApplicationStatusFinanceRejected ApplicationStatus = "finance_rejected"
	ApplicationStatusPendingReview   ApplicationStatus = "pending_review"
	ApplicationStatusReviewRejected  ApplicationStatus = "review_rejected"
	ApplicationStatusApproved        ApplicationStatus = "approved"
	ApplicationStatusEnrolled        ApplicationStatus = "enrolled"
)

// Final reports whether the status terminates the workflow for the
// applicant: no further transitions except enrollment are possible.
func (s ApplicationStatus) Final() bool {
	switch s {
	case ApplicationStatusFinanceRejected, ApplicationStatusReviewRejected,
		ApplicationStatusApproved, ApplicationStatusEnrolled:
		return true
	}
	return false
}

// Application captures one pass through the mentorship application wizard.
// ApplicantID is nil for anonymous drafts, which are keyed by SessionKey
// until the applicant registers or the draft is abandoned.
type Application struct {
	ID           string            `db:"id" json:"id"`
	TrackingCode string            `db:"tracking_code" json:"tracking_code"`
	ApplicantID  *string           `db:"applicant_id" json:"applicant_id,omitempty"`
	SessionKey   string            `db:"session_key" json:"-"`
	Status       ApplicationStatus `db:"status" json:"status"`
	CurrentStep  int               `db:"current_step" json:"current_step"`

	// Step 1: personal details.
	FullName    string     `db:"full_name" json:"full_name"`
	Email       string     `db:"email" json:"email"`
	Phone       string     `db:"phone" json:"phone"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	IsMinor     bool       `db:"is_minor" json:"is_minor"`

	// Step 2: guardian details, required while IsMinor.
	GuardianName       string `db:"guardian_name" json:"guardian_name,omitempty"`
	GuardianPhone      string `db:"guardian_phone" json:"guardian_phone,omitempty"`
	ParentConsentGiven bool   `db:"parent_consent_given" json:"parent_consent_given"`

	// Step 3: education and motivation.
	School         string `db:"school" json:"school,omitempty"`
	EducationLevel string `db:"education_level" json:"education_level,omitempty"`
	FieldOfStudy   string `db:"field_of_study" json:"field_of_study,omitempty"`
	Motivation     string `db:"motivation" json:"motivation,omitempty"`

	// Step 4: mentor and slot selection.
	MentorID *string `db:"mentor_id" json:"mentor_id,omitempty"`
	SlotID   *string `db:"slot_id" json:"slot_id,omitempty"`

	RejectionReason string     `db:"rejection_reason" json:"rejection_reason,omitempty"`
	SubmittedAt     *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// ApplicationDetail enriches Application with mentor and slot info.
type ApplicationDetail struct {
	Application
	MentorName string `db:"mentor_name" json:"mentor_name,omitempty"`
	SlotTitle  string `db:"slot_title" json:"slot_title,omitempty"`
	SlotDate   string `db:"slot_date" json:"slot_date,omitempty"`
}

// ApplicationFilter provides filters for listing applications.
type ApplicationFilter struct {
	Status    ApplicationStatus
	MentorID  string
	MentorIDs []string
	MinorOnly *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StatusCounts summarises applications per status for dashboards.
type StatusCounts struct {
	Draft           int `db:"draft" json:"draft"`
	PendingFinance  int `db:"pending_finance" json:"pending_finance"`
	FinanceRejected int `db:"finance_rejected" json:"finance_rejected"`
	PendingReview   int `db:"pending_review" json:"pending_review"`
	ReviewRejected  int `db:"review_rejected" json:"review_rejected"`
	Approved        int `db:"approved" json:"approved"`
	Enrolled        int `db:"enrolled" json:"enrolled"`
}

// PersonalStepRequest carries step 1 of the wizard.
type PersonalStepRequest struct {
	FullName    string `json:"full_name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"required"`
	DateOfBirth string `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
}

// GuardianStepRequest carries step 2 of the wizard.
type GuardianStepRequest struct {
	GuardianName       string `json:"guardian_name"`
	GuardianPhone      string `json:"guardian_phone"`
	ParentConsentGiven bool   `json:"parent_consent_given"`
}

// EducationStepRequest carries step 3 of the wizard.
type EducationStepRequest struct {
	School         string `json:"school" validate:"required"`
	EducationLevel string `json:"education_level" validate:"required"`
	FieldOfStudy   string `json:"field_of_study"`
	Motivation     string `json:"motivation" validate:"required"`
}

// MentorStepRequest carries step 4 of the wizard.
type MentorStepRequest struct {
	MentorID string `json:"mentor_id" validate:"required,uuid"`
	SlotID   string `json:"slot_id" validate:"required,uuid"`
}

// RejectApplicationRequest carries the reason for a rejection.
type RejectApplicationRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// ReassignMentorRequest moves an application to another mentor.
type ReassignMentorRequest struct {
	MentorID string `json:"mentor_id" validate:"required,uuid"`
}

// TrackingStatus is the public view returned by the anonymous lookup.
type TrackingStatus struct {
	TrackingCode string            `json:"tracking_code"`
	Status       ApplicationStatus `json:"status"`
	CurrentStep  int               `json:"current_step"`
	SubmittedAt  *time.Time        `json:"submitted_at,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
