package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/carelink/healthcare-identity/internal/auth"
	"github.com/carelink/healthcare-identity/internal/config"
	"github.com/carelink/healthcare-identity/internal/domain"
	"github.com/carelink/healthcare-identity/internal/repository"
)

// SessionService issues and validates opaque session tokens.
type SessionService struct {
	credentials *CredentialService
	sessions    repository.SessionRepository
	logger      *zap.Logger
	ttl         time.Duration
	now         func() time.Time
}

// NewSessionService builds the service.
func NewSessionService(cfg config.AuthConfig, credentials *CredentialService, sessions repository.SessionRepository, logger *zap.Logger) *SessionService {
	return &SessionService{
		credentials: credentials,
		sessions:    sessions,
		logger:      logger,
		ttl:         cfg.SessionTTL(),
		now:         time.Now,
	}
}

// Login authenticates by email or mobile and opens a session.
func (s *SessionService) Login(ctx context.Context, kind domain.IdentityKind, identifier, password string) (*domain.Session, *domain.Identity, error) {
	if !kind.Valid() {
		return nil, nil, domain.NewFieldError("kind", "must be one of PATIENT, DOCTOR, ADMIN")
	}

	identity, err := s.credentials.FindByEmailOrMobile(ctx, kind, identifier)
	if errors.Is(err, domain.ErrIdentityNotFound) {
		s.logger.Warn("login failed: unknown identifier", zap.String("kind", string(kind)))
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrInvalidCredentials, domain.ErrIdentityNotFound)
	}
	if err != nil {
		return nil, nil, err
	}
	if !s.credentials.VerifyPassword(identity, password) {
		s.logger.Warn("login failed: bad password", zap.String("identity_id", identity.ID))
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrInvalidCredentials, domain.ErrBadPassword)
	}

	token, err := auth.NewSessionToken()
	if err != nil {
		return nil, nil, err
	}
	now := s.now().UTC()
	session := &domain.Session{
		Token:      token,
		IdentityID: identity.ID,
		Kind:       identity.Kind,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, nil, err
	}

	s.logger.Info("login succeeded",
		zap.String("identity_id", identity.ID),
		zap.String("kind", string(identity.Kind)))
	return session, identity, nil
}

// Logout revokes the session. Unknown tokens are ignored.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

// Validate resolves a token to its live session.
func (s *SessionService) Validate(ctx context.Context, token string) (*domain.Session, error) {
	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.Expired(s.now()) {
		if err := s.sessions.Delete(ctx, token); err != nil {
			s.logger.Warn("failed to purge expired session", zap.Error(err))
		}
		return nil, domain.ErrSessionExpired
	}
	return session, nil
}
