package models

// CompatibilityBreakdown holds the six normalised matching factors,
// each in [0, 100].
type CompatibilityBreakdown struct {
	Skills       float64 `json:"skills"`
	Expertise    float64 `json:"expertise"`
	Availability float64 `json:"availability"`
	Location     float64 `json:"location"`
	Reputation   float64 `json:"reputation"`
	SessionType  float64 `json:"session_type"`
}

// MentorSuggestion is one ranked entry in the matching results.
type MentorSuggestion struct {
	MentorID  string                 `json:"mentor_id"`
	FullName  string                 `json:"full_name"`
	Headline  string                 `json:"headline,omitempty"`
	Score     float64                `json:"score"`
	Breakdown CompatibilityBreakdown `json:"breakdown"`
}
