package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carelink/healthcare-identity/internal/auth"
	"github.com/carelink/healthcare-identity/internal/config"
	"github.com/carelink/healthcare-identity/internal/domain"
	"github.com/carelink/healthcare-identity/internal/repository"
)

// Password length bounds. bcrypt only accepts up to 72 bytes.
const (
	MinPasswordLength = 6
	MaxPasswordBytes  = 72
)

var mobilePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

func newCredentialValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		return mobilePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register mobile validation: %v", err))
	}
	return v
}

// SignupInput describes a new identity.
type SignupInput struct {
	Kind     domain.IdentityKind
	FullName string
	Email    string
	Mobile   string
	Password string
	Profile  domain.Profile
}

// CredentialService owns identities and their password hashes.
type CredentialService struct {
	identities       repository.IdentityRepository
	validate         *validator.Validate
	logger           *zap.Logger
	bcryptCost       int
	allowAdminSignup bool
}

// NewCredentialService builds the service.
func NewCredentialService(cfg config.AuthConfig, identities repository.IdentityRepository, logger *zap.Logger) *CredentialService {
	return &CredentialService{
		identities:       identities,
		validate:         newCredentialValidator(),
		logger:           logger,
		bcryptCost:       cfg.BcryptCost,
		allowAdminSignup: cfg.AllowAdminSignup,
	}
}

// Signup is CreateIdentity for unauthenticated callers. Admin accounts are
// refused unless self-signup for admins is enabled.
func (s *CredentialService) Signup(ctx context.Context, in SignupInput) (*domain.Identity, error) {
	if in.Kind == domain.KindAdmin && !s.allowAdminSignup {
		return nil, fmt.Errorf("%w: admin accounts cannot self-register", domain.ErrForbidden)
	}
	return s.CreateIdentity(ctx, in)
}

// CreateIdentity validates the input, hashes the password and stores a new identity.
func (s *CredentialService) CreateIdentity(ctx context.Context, in SignupInput) (*domain.Identity, error) {
	if !in.Kind.Valid() {
		return nil, domain.NewFieldError("kind", "must be one of PATIENT, DOCTOR, ADMIN")
	}

	profile := in.Profile
	if strings.TrimSpace(in.FullName) != "" {
		profile.FullName = in.FullName
	}
	profile.FullName = strings.TrimSpace(profile.FullName)
	if profile.FullName == "" {
		return nil, domain.NewFieldError("full_name", "is required")
	}

	email := domain.NormalizeEmail(in.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, domain.NewFieldError("email", "must be a valid email address")
	}

	mobile := domain.NormalizeMobile(in.Mobile)
	switch {
	case mobile == "" && in.Kind != domain.KindAdmin:
		return nil, domain.NewFieldError("mobile", "is required")
	case mobile != "" && s.validate.Var(mobile, "mobile") != nil:
		return nil, domain.NewFieldError("mobile", "must be a valid phone number")
	}

	if err := s.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	if profile.PhotoURL != "" {
		if err := s.validate.Var(profile.PhotoURL, "url"); err != nil {
			return nil, domain.NewFieldError("photo_url", "must be a valid URL")
		}
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	identity := &domain.Identity{
		ID:           uuid.NewString(),
		Kind:         in.Kind,
		Email:        email,
		Mobile:       mobile,
		PasswordHash: hash,
		Profile:      profile,
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		return nil, err
	}

	s.logger.Info("identity created",
		zap.String("identity_id", identity.ID),
		zap.String("kind", string(identity.Kind)))
	return identity, nil
}

// ValidatePassword enforces the password policy.
func (s *CredentialService) ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return domain.NewFieldError("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordBytes {
		return domain.NewFieldError("password", fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes))
	}
	return nil
}

// GetByID loads an identity.
func (s *CredentialService) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrIdentityNotFound
	}
	return s.identities.GetByID(ctx, id)
}

// FindByEmailOrMobile treats an identifier containing "@" as an email and
// anything else as a mobile number. Lookups are scoped to kind.
func (s *CredentialService) FindByEmailOrMobile(ctx context.Context, kind domain.IdentityKind, identifier string) (*domain.Identity, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, domain.NewFieldError("identifier", "is required")
	}
	if domain.IsEmailIdentifier(identifier) {
		return s.identities.GetByEmail(ctx, kind, domain.NormalizeEmail(identifier))
	}
	return s.identities.GetByMobile(ctx, kind, domain.NormalizeMobile(identifier))
}

// VerifyPassword reports whether candidate is the identity's current password.
func (s *CredentialService) VerifyPassword(identity *domain.Identity, candidate string) bool {
	if identity == nil {
		return false
	}
	return auth.PasswordMatches(identity.PasswordHash, candidate)
}

// UpdatePassword replaces the stored hash.
func (s *CredentialService) UpdatePassword(ctx context.Context, identityID, newPassword string) error {
	if err := s.ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.identities.UpdatePassword(ctx, identityID, hash)
}

// UpdateProfile applies a partial profile change.
func (s *CredentialService) UpdateProfile(ctx context.Context, identityID string, update domain.ProfileUpdate) (*domain.Identity, error) {
	if update.Empty() {
		return nil, domain.NewFieldError("profile", "no fields to update")
	}
	update = update.Trimmed()
	if update.FullName != nil && *update.FullName == "" {
		return nil, domain.NewFieldError("full_name", "cannot be empty")
	}
	if update.PhotoURL != nil && *update.PhotoURL != "" {
		if err := s.validate.Var(*update.PhotoURL, "url"); err != nil {
			return nil, domain.NewFieldError("photo_url", "must be a valid URL")
		}
	}
	return s.identities.UpdateProfile(ctx, identityID, update)
}

// EnsureAdmin creates the bootstrap admin unless an admin with that email exists.
func (s *CredentialService) EnsureAdmin(ctx context.Context, email, password string) (*domain.Identity, error) {
	existing, err := s.identities.GetByEmail(ctx, domain.KindAdmin, domain.NormalizeEmail(email))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrIdentityNotFound) {
		return nil, err
	}
	return s.CreateIdentity(ctx, SignupInput{
		Kind:     domain.KindAdmin,
		FullName: "Administrator",
		Email:    email,
		Password: password,
	})
}
