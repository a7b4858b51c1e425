package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/carelink/healthcare-identity/internal/auth"
	"github.com/carelink/healthcare-identity/internal/config"
	"github.com/carelink/healthcare-identity/internal/domain"
	"github.com/carelink/healthcare-identity/internal/events"
	"github.com/carelink/healthcare-identity/internal/repository"
)

// OTPService runs password recovery: issue a code, verify it, then reset.
type OTPService struct {
	credentials *CredentialService
	challenges  repository.OTPRepository
	limiter     repository.RateLimiter
	sessions    repository.SessionRepository
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	cfg         config.OTPConfig
	now         func() time.Time
}

// OTPDependencies bundles collaborators for OTPService.
type OTPDependencies struct {
	Credentials *CredentialService
	Challenges  repository.OTPRepository
	Limiter     repository.RateLimiter
	Sessions    repository.SessionRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewOTPService builds the service.
func NewOTPService(cfg config.OTPConfig, deps OTPDependencies) *OTPService {
	return &OTPService{
		credentials: deps.Credentials,
		challenges:  deps.Challenges,
		limiter:     deps.Limiter,
		sessions:    deps.Sessions,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

func otpRateKey(identityID string) string {
	return "ratelimit:otp:" + identityID
}

// RequestOTP issues a fresh code for the identity, replacing any earlier one.
func (s *OTPService) RequestOTP(ctx context.Context, identityID string) (*domain.OTPChallenge, error) {
	identity, err := s.credentials.GetByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, identity)
}

// RequestOTPFor resolves the identity by email or mobile before issuing.
func (s *OTPService) RequestOTPFor(ctx context.Context, kind domain.IdentityKind, identifier string) (*domain.OTPChallenge, error) {
	if !kind.Valid() {
		return nil, domain.NewFieldError("kind", "must be one of PATIENT, DOCTOR, ADMIN")
	}
	identity, err := s.credentials.FindByEmailOrMobile(ctx, kind, identifier)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, identity)
}

func (s *OTPService) issue(ctx context.Context, identity *domain.Identity) (*domain.OTPChallenge, error) {
	allowed, err := s.limiter.Allow(ctx, otpRateKey(identity.ID), s.cfg.MaxRequests, s.cfg.RequestWindow())
	if err != nil {
		return nil, fmt.Errorf("check otp rate limit: %w", err)
	}
	if !allowed {
		s.logger.Warn("otp request rate limited", zap.String("identity_id", identity.ID))
		return nil, domain.ErrOTPRateLimited
	}

	code, err := auth.NewNumericCode(s.cfg.Length)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	challenge := &domain.OTPChallenge{
		IdentityID: identity.ID,
		Code:       code,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.cfg.TTL()),
	}
	if err := s.challenges.Save(ctx, challenge, s.cfg.TTL()+s.cfg.ResetWindow()); err != nil {
		return nil, err
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventOTPIssued,
		Recipient: events.RecipientFor(identity),
		Payload:   events.OTPIssuedPayload{Code: code, ExpiresAt: challenge.ExpiresAt},
	})
	s.logger.Info("otp issued",
		zap.String("identity_id", identity.ID),
		zap.Time("expires_at", challenge.ExpiresAt))
	return challenge, nil
}

// VerifyOTP checks and consumes the identity's current code. Success opens a
// window in which ResetPassword is allowed.
func (s *OTPService) VerifyOTP(ctx context.Context, identityID, code string) error {
	now := s.now()
	_, err := s.challenges.Update(ctx, identityID, func(ch *domain.OTPChallenge) error {
		switch {
		case ch.Consumed:
			return domain.ErrOTPAlreadyConsumed
		case ch.Expired(now):
			return domain.ErrOTPExpired
		case ch.Attempts >= s.cfg.MaxAttempts:
			return domain.ErrOTPAttemptsExceeded
		}
		if subtle.ConstantTimeCompare([]byte(ch.Code), []byte(code)) != 1 {
			ch.Attempts++
			return domain.ErrOTPMismatch
		}
		ch.Consumed = true
		return nil
	})
	if err != nil {
		s.logger.Info("otp verification failed", zap.String("identity_id", identityID), zap.Error(err))
		return err
	}

	if err := s.challenges.GrantReset(ctx, identityID, s.cfg.ResetWindow()); err != nil {
		return fmt.Errorf("grant password reset: %w", err)
	}
	return nil
}

// ResetPassword sets a new password after a successful VerifyOTP and revokes
// every session of the identity.
func (s *OTPService) ResetPassword(ctx context.Context, identityID, newPassword string) error {
	if err := s.credentials.ValidatePassword(newPassword); err != nil {
		return err
	}

	granted, err := s.challenges.TakeReset(ctx, identityID)
	if err != nil {
		return fmt.Errorf("consume reset grant: %w", err)
	}
	if !granted {
		return domain.ErrResetNotAuthorized
	}

	if err := s.credentials.UpdatePassword(ctx, identityID, newPassword); err != nil {
		return err
	}
	if err := s.sessions.DeleteAllForIdentity(ctx, identityID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	if identity, err := s.credentials.GetByID(ctx, identityID); err == nil {
		publishEvent(ctx, s.dispatcher, s.logger, events.Event{
			Type:      events.EventPasswordReset,
			Recipient: events.RecipientFor(identity),
		})
	}
	s.logger.Info("password reset", zap.String("identity_id", identityID))
	return nil
}
