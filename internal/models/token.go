package models

import "time"

// RefreshToken represents a persisted refresh token session.
type RefreshToken struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Token     string     `db:"token" json:"token"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	Revoked   bool       `db:"revoked" json:"revoked"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	IPAddress string     `db:"ip_address" json:"ip_address"`
	UserAgent string     `db:"user_agent" json:"user_agent"`
}

// InvitationToken is a single-use registration token issued when a mentor
// approves a guest application.
type InvitationToken struct {
	ID            string     `db:"id" json:"id"`
	Token         string     `db:"token" json:"token"`
	ApplicationID string     `db:"application_id" json:"application_id"`
	ExpiresAt     time.Time  `db:"expires_at" json:"expires_at"`
	UsedAt        *time.Time `db:"used_at" json:"used_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// Valid reports whether the token is unused and unexpired at the given time.
func (t *InvitationToken) Valid(now time.Time) bool {
	return t.UsedAt == nil && t.ExpiresAt.After(now)
}
