package models

import "time"

// ActivityAction classifies an activity log entry.
type ActivityAction string

// Possible activity actions.
const (
	ActivityStatusChange     ActivityAction = "status_change"
	ActivityPaymentSubmitted ActivityAction = "payment_submitted"
	ActivityPaymentVerified  ActivityAction = "payment_verified"
	ActivityMentorReassigned ActivityAction = "mentor_reassigned"
)

// EntityKind tags which table an activity entry refers to.
type EntityKind string

// Possible entity kinds.
const (
	EntityApplication      EntityKind = "application"
	EntityPayment          EntityKind = "payment"
	EntityGuestApplication EntityKind = "guest_application"
)

// ActivityLog is an append-only record of a workflow event. Status
// transitions write exactly one row each.
type ActivityLog struct {
	ID             string         `db:"id" json:"id"`
	EntityKind     EntityKind     `db:"entity_kind" json:"entity_kind"`
	EntityID       string         `db:"entity_id" json:"entity_id"`
	ActionType     ActivityAction `db:"action_type" json:"action_type"`
	PreviousStatus string         `db:"previous_status" json:"previous_status,omitempty"`
	NewStatus      string         `db:"new_status" json:"new_status,omitempty"`
	Details        string         `db:"details" json:"details,omitempty"`
	ActorID        *string        `db:"actor_id" json:"actor_id,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// ActivityDetail enriches ActivityLog with the actor's name.
type ActivityDetail struct {
	ActivityLog
	ActorName string `db:"actor_name" json:"actor_name,omitempty"`
}
