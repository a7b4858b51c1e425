package dto

// OTPRequest payload for POST /password/otp/request. Either IdentityID or
// Kind plus Email/Identifier must be present.
type OTPRequest struct {
	IdentityID string `json:"identity_id"`
	Kind       string `json:"kind"`
	Email      string `json:"email" validate:"omitempty,email"`
	Identifier string `json:"identifier"`
}

// OTPVerifyRequest payload for POST /password/otp/verify.
type OTPVerifyRequest struct {
	IdentityID string `json:"identity_id" validate:"required"`
	Code       string `json:"code" validate:"required,numeric"`
}

// PasswordResetRequest payload for POST /password/reset.
type PasswordResetRequest struct {
	IdentityID  string `json:"identity_id" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6,max=72"`
}
