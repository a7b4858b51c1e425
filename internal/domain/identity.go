package domain

import (
	"strings"
	"time"
)

// IdentityKind differentiates the three principal kinds.
type IdentityKind string

const (
	KindPatient IdentityKind = "PATIENT"
	KindDoctor  IdentityKind = "DOCTOR"
	KindAdmin   IdentityKind = "ADMIN"
)

// ParseIdentityKind accepts any casing of a known kind.
func ParseIdentityKind(raw string) (IdentityKind, bool) {
	kind := IdentityKind(strings.ToUpper(strings.TrimSpace(raw)))
	return kind, kind.Valid()
}

// Valid reports whether k is one of the known kinds.
func (k IdentityKind) Valid() bool {
	switch k {
	case KindPatient, KindDoctor, KindAdmin:
		return true
	}
	return false
}

// Profile holds the mutable, non-credential fields of an identity.
type Profile struct {
	FullName    string
	Gender      string
	DateOfBirth string
	Address     string
	PhotoURL    string
}

// Identity is a registered principal with credentials.
type Identity struct {
	ID           string
	Kind         IdentityKind
	Email        string
	Mobile       string
	PasswordHash string
	Profile      Profile
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProfileUpdate carries a partial profile change; nil fields are left untouched.
type ProfileUpdate struct {
	FullName    *string
	Gender      *string
	DateOfBirth *string
	Address     *string
	PhotoURL    *string
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.FullName == nil && u.Gender == nil && u.DateOfBirth == nil && u.Address == nil && u.PhotoURL == nil
}

// Trimmed returns a copy with surrounding whitespace removed from every set field.
func (u ProfileUpdate) Trimmed() ProfileUpdate {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		return &t
	}
	return ProfileUpdate{
		FullName:    trim(u.FullName),
		Gender:      trim(u.Gender),
		DateOfBirth: trim(u.DateOfBirth),
		Address:     trim(u.Address),
		PhotoURL:    trim(u.PhotoURL),
	}
}

// Apply copies the set fields onto p.
func (u ProfileUpdate) Apply(p *Profile) {
	if u.FullName != nil {
		p.FullName = strings.TrimSpace(*u.FullName)
	}
	if u.Gender != nil {
		p.Gender = strings.TrimSpace(*u.Gender)
	}
	if u.DateOfBirth != nil {
		p.DateOfBirth = strings.TrimSpace(*u.DateOfBirth)
	}
	if u.Address != nil {
		p.Address = strings.TrimSpace(*u.Address)
	}
	if u.PhotoURL != nil {
		p.PhotoURL = strings.TrimSpace(*u.PhotoURL)
	}
}

// NormalizeEmail lower-cases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeMobile strips spaces, dashes and parentheses from a phone number.
func NormalizeMobile(mobile string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(mobile))
}

// IsEmailIdentifier reports whether a login identifier should be treated as an email.
func IsEmailIdentifier(identifier string) bool {
	return strings.Contains(identifier, "@")
}
