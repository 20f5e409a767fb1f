package models

import "time"

// FacilitatorAssignment links a facilitator account to one mentor they
// monitor. A facilitator may only see and reassign applications whose
// mentor appears in their assigned set.
type FacilitatorAssignment struct {
	ID            string    `db:"id" json:"id"`
	FacilitatorID string    `db:"facilitator_id" json:"facilitator_id"`
	MentorID      string    `db:"mentor_id" json:"mentor_id"`
	AssignedBy    *string   `db:"assigned_by" json:"assigned_by,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// FacilitatorAssignmentDetail enriches the assignment with user names.
type FacilitatorAssignmentDetail struct {
	FacilitatorAssignment
	FacilitatorName string `db:"facilitator_name" json:"facilitator_name"`
	MentorName      string `db:"mentor_name" json:"mentor_name"`
}

// AssignFacilitatorRequest links a facilitator to a mentor.
type AssignFacilitatorRequest struct {
	FacilitatorID string `json:"facilitator_id" validate:"required,uuid"`
	MentorID      string `json:"mentor_id" validate:"required,uuid"`
}
