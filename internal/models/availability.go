package models

import "time"

// LocationType describes how a mentorship session is held.
type LocationType string

// Possible location types.
const (
	LocationInPerson LocationType = "in_person"
	LocationVirtual  LocationType = "virtual"
	LocationHybrid   LocationType = "hybrid"
)

// AvailabilitySlot is a bookable window published by a mentor.
// CurrentBookings never exceeds MaxBookings; booking happens through a
// conditional increment, not a read-modify-write.
type AvailabilitySlot struct {
	ID              string       `db:"id" json:"id"`
	MentorID        string       `db:"mentor_id" json:"mentor_id"`
	Title           string       `db:"title" json:"title"`
	Description     string       `db:"description" json:"description,omitempty"`
	Date            time.Time    `db:"date" json:"date"`
	EndDate         *time.Time   `db:"end_date" json:"end_date,omitempty"`
	StartTime       string       `db:"start_time" json:"start_time"`
	EndTime         string       `db:"end_time" json:"end_time"`
	LocationType    LocationType `db:"location_type" json:"location_type"`
	Address         string       `db:"address" json:"address,omitempty"`
	MaxBookings     int          `db:"max_bookings" json:"max_bookings"`
	CurrentBookings int          `db:"current_bookings" json:"current_bookings"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// Open reports whether the slot still has free capacity.
func (s *AvailabilitySlot) Open() bool {
	return s.CurrentBookings < s.MaxBookings
}

// SlotFilter provides filters for listing availability slots.
type SlotFilter struct {
	MentorID  string
	OpenOnly  bool
	From      *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CreateSlotRequest creates a new availability slot.
type CreateSlotRequest struct {
	Title        string       `json:"title" validate:"required"`
	Description  string       `json:"description"`
	Date         string       `json:"date" validate:"required,datetime=2006-01-02"`
	EndDate      string       `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	StartTime    string       `json:"start_time" validate:"required,datetime=15:04"`
	EndTime      string       `json:"end_time" validate:"required,datetime=15:04"`
	LocationType LocationType `json:"location_type" validate:"required,oneof=in_person virtual hybrid"`
	Address      string       `json:"address"`
	MaxBookings  int          `json:"max_bookings" validate:"required,gte=1"`
}

// UpdateSlotRequest updates an existing slot. Nil fields are untouched.
type UpdateSlotRequest struct {
	Title        *string       `json:"title"`
	Description  *string       `json:"description"`
	Date         *string       `json:"date" validate:"omitempty,datetime=2006-01-02"`
	EndDate      *string       `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	StartTime    *string       `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime      *string       `json:"end_time" validate:"omitempty,datetime=15:04"`
	LocationType *LocationType `json:"location_type" validate:"omitempty,oneof=in_person virtual hybrid"`
	Address      *string       `json:"address"`
	MaxBookings  *int          `json:"max_bookings" validate:"omitempty,gte=1"`
}
