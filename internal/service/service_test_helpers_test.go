package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/carelink/healthcare-identity/internal/config"
	"github.com/carelink/healthcare-identity/internal/domain"
	"github.com/carelink/healthcare-identity/internal/events"
	"github.com/carelink/healthcare-identity/internal/repository"
)

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordedEvents) ofType(t events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// lastOTP returns the code most recently issued to the identity.
func (r *recordedEvents) lastOTP(t *testing.T, identityID string) string {
	t.Helper()
	issued := r.ofType(events.EventOTPIssued)
	for i := len(issued) - 1; i >= 0; i-- {
		if issued[i].Recipient.IdentityID == identityID {
			return issued[i].Payload.(events.OTPIssuedPayload).Code
		}
	}
	t.Fatalf("no otp issued for %s", identityID)
	return ""
}

type testEnv struct {
	cfg          config.Config
	redis        *miniredis.Miniredis
	identities   repository.IdentityRepository
	sessionRepo  repository.SessionRepository
	credentials  *CredentialService
	otp          *OTPService
	sessions     *SessionService
	verification *VerificationService
	events       *recordedEvents
	clock        *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			SessionTTLMinutes: 60,
			BcryptCost:        bcrypt.MinCost,
		},
		OTP: config.OTPConfig{
			Length:               6,
			TTLMinutes:           10,
			MaxAttempts:          5,
			MaxRequests:          5,
			RequestWindowMinutes: 60,
			ResetWindowMinutes:   10,
		},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithConfig(t, testConfig())
}

func newTestEnvWithConfig(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := zap.NewNop()
	identities := repository.NewMemoryIdentityRepository()
	sessionRepo := repository.NewSessionRepository(client)
	dispatcher := events.NewInMemoryDispatcher()
	recorder := &recordedEvents{}
	for _, et := range []events.EventType{
		events.EventOTPIssued,
		events.EventPasswordReset,
		events.EventVerificationSubmitted,
		events.EventVerificationDecided,
	} {
		dispatcher.Subscribe(et, recorder.handle)
	}

	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	credentials := NewCredentialService(cfg.Auth, identities, logger)
	otp := NewOTPService(cfg.OTP, OTPDependencies{
		Credentials: credentials,
		Challenges:  repository.NewOTPRepository(client),
		Limiter:     repository.NewRateLimiter(client),
		Sessions:    sessionRepo,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	otp.now = clock.Now
	sessions := NewSessionService(cfg.Auth, credentials, sessionRepo, logger)
	sessions.now = clock.Now
	verification := NewVerificationService(credentials, repository.NewMemoryVerificationRepository(identities), dispatcher, logger)
	verification.now = clock.Now

	return &testEnv{
		cfg:          cfg,
		redis:        mr,
		identities:   identities,
		sessionRepo:  sessionRepo,
		credentials:  credentials,
		otp:          otp,
		sessions:     sessions,
		verification: verification,
		events:       recorder,
		clock:        clock,
	}
}

var mobileSeq struct {
	sync.Mutex
	n int
}

func nextMobile() string {
	mobileSeq.Lock()
	defer mobileSeq.Unlock()
	mobileSeq.n++
	return fmt.Sprintf("+1555%07d", mobileSeq.n)
}

func (e *testEnv) signup(t *testing.T, kind domain.IdentityKind, email, password string) *domain.Identity {
	t.Helper()
	identity, err := e.credentials.CreateIdentity(context.Background(), SignupInput{
		Kind:     kind,
		FullName: "Test " + string(kind),
		Email:    email,
		Mobile:   nextMobile(),
		Password: password,
	})
	require.NoError(t, err)
	return identity
}
