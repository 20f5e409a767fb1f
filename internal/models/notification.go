package models

import "time"

// NotificationType classifies in-app notifications.
type NotificationType string

// Possible notification types.
const (
	NotificationPaymentVerified     NotificationType = "payment_verified"
	NotificationPaymentRejected     NotificationType = "payment_rejected"
	NotificationApplicationApproved NotificationType = "application_approved"
	NotificationApplicationRejected NotificationType = "application_rejected"
	NotificationGuestApproved       NotificationType = "guest_approved"
	NotificationGuestRejected       NotificationType = "guest_rejected"
	NotificationMentorReassigned    NotificationType = "mentor_reassigned"
)

// Notification is an in-app message delivered best-effort: creation
// failures are logged and never abort the operation that produced them.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	SenderID  *string          `db:"sender_id" json:"sender_id,omitempty"`
	Type      NotificationType `db:"type" json:"type"`
	Title     string           `db:"title" json:"title"`
	Message   string           `db:"message" json:"message"`
	Read      bool             `db:"read" json:"read"`
	ReadAt    *time.Time       `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter provides filters for listing notifications.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
