package dto

import (
	"time"

	"github.com/carelink/healthcare-identity/internal/domain"
)

// SignupRequest payload for POST /signup.
type SignupRequest struct {
	Kind        string `json:"kind" validate:"required"`
	FullName    string `json:"full_name" validate:"required,max=200"`
	Email       string `json:"email" validate:"required,email"`
	Mobile      string `json:"mobile" validate:"omitempty,max=32"`
	Password    string `json:"password" validate:"required,min=6,max=72"`
	Gender      string `json:"gender" validate:"omitempty,max=32"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Address     string `json:"address" validate:"omitempty,max=500"`
	PhotoURL    string `json:"photo_url" validate:"omitempty,url"`
}

// LoginRequest payload for POST /login. Identifier is an email or a mobile number.
type LoginRequest struct {
	Kind       string `json:"kind" validate:"required"`
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// LoginResponse carries the opaque session token.
type LoginResponse struct {
	SessionToken string    `json:"session_token"`
	IdentityID   string    `json:"identity_id"`
	Kind         string    `json:"kind"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ProfileUpdateRequest payload for PATCH /me/profile. Omitted fields stay unchanged.
type ProfileUpdateRequest struct {
	FullName    *string `json:"full_name" validate:"omitempty,max=200"`
	Gender      *string `json:"gender" validate:"omitempty,max=32"`
	DateOfBirth *string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Address     *string `json:"address" validate:"omitempty,max=500"`
	PhotoURL    *string `json:"photo_url" validate:"omitempty,url"`
}

// ToDomain converts the request.
func (r ProfileUpdateRequest) ToDomain() domain.ProfileUpdate {
	return domain.ProfileUpdate{
		FullName:    r.FullName,
		Gender:      r.Gender,
		DateOfBirth: r.DateOfBirth,
		Address:     r.Address,
		PhotoURL:    r.PhotoURL,
	}
}

// IdentityResponse is the public view of an identity. The password hash never leaves the service.
type IdentityResponse struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Email       string    `json:"email"`
	Mobile      string    `json:"mobile,omitempty"`
	FullName    string    `json:"full_name"`
	Gender      string    `json:"gender,omitempty"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	Address     string    `json:"address,omitempty"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewIdentityResponse maps a domain identity.
func NewIdentityResponse(identity *domain.Identity) IdentityResponse {
	return IdentityResponse{
		ID:          identity.ID,
		Kind:        string(identity.Kind),
		Email:       identity.Email,
		Mobile:      identity.Mobile,
		FullName:    identity.Profile.FullName,
		Gender:      identity.Profile.Gender,
		DateOfBirth: identity.Profile.DateOfBirth,
		Address:     identity.Profile.Address,
		PhotoURL:    identity.Profile.PhotoURL,
		CreatedAt:   identity.CreatedAt,
		UpdatedAt:   identity.UpdatedAt,
	}
}
