package models

import (
	"strings"
	"time"
)

// SessionType is the applicant's preferred way of meeting a mentor.
type SessionType string

// Possible session types.
const (
	SessionInPerson SessionType = "in_person"
	SessionVirtual  SessionType = "virtual"
	SessionHybrid   SessionType = "hybrid"
)

// StringList is a comma-separated list stored in a text column.
type StringList []string

// ParseStringList splits a stored comma-separated value into trimmed items.
func ParseStringList(raw string) StringList {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make(StringList, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Join renders the list back to its stored form.
func (l StringList) Join() string {
	return strings.Join(l, ",")
}

// StudentProfile holds the student-side matching attributes.
type StudentProfile struct {
	ID                   string      `db:"id" json:"id"`
	UserID               string      `db:"user_id" json:"user_id"`
	School               string      `db:"school" json:"school,omitempty"`
	EducationLevel       string      `db:"education_level" json:"education_level,omitempty"`
	FieldOfStudy         string      `db:"field_of_study" json:"field_of_study,omitempty"`
	Skills               string      `db:"skills" json:"skills,omitempty"`
	Interests            string      `db:"interests" json:"interests,omitempty"`
	City                 string      `db:"city" json:"city,omitempty"`
	Country              string      `db:"country" json:"country,omitempty"`
	PreferredSessionType SessionType `db:"preferred_session_type" json:"preferred_session_type,omitempty"`
	DateOfBirth          *time.Time  `db:"date_of_birth" json:"date_of_birth,omitempty"`
	CreatedAt            time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time   `db:"updated_at" json:"updated_at"`
}

// MentorProfile holds the mentor-side directory and matching attributes.
type MentorProfile struct {
	ID                string    `db:"id" json:"id"`
	UserID            string    `db:"user_id" json:"user_id"`
	Headline          string    `db:"headline" json:"headline,omitempty"`
	Expertise         string    `db:"expertise" json:"expertise,omitempty"`
	Skills            string    `db:"skills" json:"skills,omitempty"`
	ExperienceYears   int       `db:"experience_years" json:"experience_years"`
	Company           string    `db:"company" json:"company,omitempty"`
	JobTitle          string    `db:"job_title" json:"job_title,omitempty"`
	City              string    `db:"city" json:"city,omitempty"`
	Country           string    `db:"country" json:"country,omitempty"`
	AcceptsInPerson   bool      `db:"accepts_in_person" json:"accepts_in_person"`
	AcceptsVirtual    bool      `db:"accepts_virtual" json:"accepts_virtual"`
	MinInternshipDays int       `db:"min_internship_days" json:"min_internship_days"`
	MaxInternshipDays int       `db:"max_internship_days" json:"max_internship_days"`
	IsAvailable       bool      `db:"is_available" json:"is_available"`
	Rating            float64   `db:"rating" json:"rating"`
	TotalReviews      int       `db:"total_reviews" json:"total_reviews"`
	HourlyRate        float64   `db:"hourly_rate" json:"hourly_rate"`
	Verified          bool      `db:"verified" json:"verified"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// MentorDirectoryEntry is the public directory view of a mentor.
type MentorDirectoryEntry struct {
	MentorProfile
	FullName string `db:"full_name" json:"full_name"`
}

// MentorFilter provides filters for the public mentor directory.
type MentorFilter struct {
	Search        string
	Expertise     string
	City          string
	Country       string
	AvailableOnly bool
	VerifiedOnly  bool
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}

// UpdateStudentProfileRequest updates the caller's student profile.
type UpdateStudentProfileRequest struct {
	School               string      `json:"school"`
	EducationLevel       string      `json:"education_level"`
	FieldOfStudy         string      `json:"field_of_study"`
	Skills               string      `json:"skills"`
	Interests            string      `json:"interests"`
	City                 string      `json:"city"`
	Country              string      `json:"country"`
	PreferredSessionType SessionType `json:"preferred_session_type" validate:"omitempty,oneof=in_person virtual hybrid"`
	DateOfBirth          string      `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateMentorProfileRequest updates the caller's mentor profile.
type UpdateMentorProfileRequest struct {
	Headline          string  `json:"headline"`
	Expertise         string  `json:"expertise"`
	Skills            string  `json:"skills"`
	ExperienceYears   int     `json:"experience_years" validate:"gte=0"`
	Company           string  `json:"company"`
	JobTitle          string  `json:"job_title"`
	City              string  `json:"city"`
	Country           string  `json:"country"`
	AcceptsInPerson   bool    `json:"accepts_in_person"`
	AcceptsVirtual    bool    `json:"accepts_virtual"`
	MinInternshipDays int     `json:"min_internship_days" validate:"gte=0"`
	MaxInternshipDays int     `json:"max_internship_days" validate:"gte=0"`
	IsAvailable       bool    `json:"is_available"`
	HourlyRate        float64 `json:"hourly_rate" validate:"gte=0"`
}
