package domain

import "time"

// Session represents an authenticated client holding an opaque token.
type Session struct {
	Token      string
	IdentityID string
	Kind       IdentityKind
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
