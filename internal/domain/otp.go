package domain

import "time"

// OTPChallenge is a one-time code issued for password recovery.
type OTPChallenge struct {
	IdentityID string
	Code       string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Consumed   bool
	Attempts   int
}

// Expired reports whether the challenge is past its expiry at now.
func (c *OTPChallenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
