package models

import "time"

// GuestApplicationStatus represents the lifecycle of a guest application.
type GuestApplicationStatus string

// Possible guest application statuses.
const (
	GuestStatusPending  GuestApplicationStatus = "pending"
	GuestStatusApproved GuestApplicationStatus = "approved"
	GuestStatusRejected GuestApplicationStatus = "rejected"
)

// GuestApplication is a lightweight no-account contact request addressed
// to a mentor. Approval issues an invitation token for registration.
type GuestApplication struct {
	ID             string                 `db:"id" json:"id"`
	FullName       string                 `db:"full_name" json:"full_name"`
	Email          string                 `db:"email" json:"email"`
	School         string                 `db:"school" json:"school,omitempty"`
	Interests      string                 `db:"interests" json:"interests,omitempty"`
	Message        string                 `db:"message" json:"message,omitempty"`
	CVPath         string                 `db:"cv_path" json:"-"`
	MentorID       string                 `db:"mentor_id" json:"mentor_id"`
	Status         GuestApplicationStatus `db:"status" json:"status"`
	MentorFeedback string                 `db:"mentor_feedback" json:"mentor_feedback,omitempty"`
	RegisteredUser *string                `db:"registered_user_id" json:"registered_user_id,omitempty"`
	CreatedAt      time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time              `db:"updated_at" json:"updated_at"`
}

// GuestApplicationFilter provides filters for listing guest applications.
type GuestApplicationFilter struct {
	MentorID  string
	Status    GuestApplicationStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CreateGuestApplicationRequest submits a guest application.
type CreateGuestApplicationRequest struct {
	FullName  string `json:"full_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	School    string `json:"school"`
	Interests string `json:"interests"`
	Message   string `json:"message" validate:"required"`
	MentorID  string `json:"mentor_id" validate:"required,uuid"`
}

// GuestDecisionRequest carries the mentor's approve/reject feedback.
type GuestDecisionRequest struct {
	Feedback string `json:"feedback"`
}
