package models

import "time"

// Session is a server-side session row. It carries only the sanitized identity;
// password hashes never enter a session.
type Session struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	Username     string    `json:"username" db:"username"`
	Name         string    `json:"name" db:"name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	LastActivity time.Time `json:"last_activity" db:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
}

// IsExpired returns true if the session has passed its expiry.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Identity returns the sanitized account held by this session.
func (s *Session) Identity() *SanitizedAccount {
	return &SanitizedAccount{ID: s.UserID, Username: s.Username, Name: s.Name}
}
