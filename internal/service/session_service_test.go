package service

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/healthcare-identity/internal/domain"
)

func TestLogin_ByEmailAndMobile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := env.signup(t, domain.KindDoctor, "doc@clinic.test", "secret1")

	session, identity, err := env.sessions.Login(ctx, domain.KindDoctor, "DOC@clinic.test", "secret1")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, identity.ID)
	assert.Equal(t, doc.ID, session.IdentityID)
	assert.Equal(t, domain.KindDoctor, session.Kind)
	assert.Equal(t, env.clock.Now().Add(time.Hour), session.ExpiresAt)

	raw, err := base64.RawURLEncoding.DecodeString(session.Token)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
	assert.NotContains(t, session.Token, doc.ID)

	_, _, err = env.sessions.Login(ctx, domain.KindDoctor, doc.Mobile, "secret1")
	assert.NoError(t, err)
}

func TestLogin_Failures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, domain.KindPatient, "p@example.com", "secret1")

	_, _, err := env.sessions.Login(ctx, domain.KindPatient, "p@example.com", "wrong-pass")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.ErrorIs(t, err, domain.ErrBadPassword)

	_, _, err = env.sessions.Login(ctx, domain.KindPatient, "ghost@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)

	// Kinds do not share credentials.
	_, _, err = env.sessions.Login(ctx, domain.KindDoctor, "p@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, _, err = env.sessions.Login(ctx, "ROBOT", "p@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrInvalidField)
}

func TestValidateAndLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, domain.KindPatient, "p@example.com", "secret1")

	session, _, err := env.sessions.Login(ctx, domain.KindPatient, "p@example.com", "secret1")
	require.NoError(t, err)

	got, err := env.sessions.Validate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.IdentityID, got.IdentityID)

	require.NoError(t, env.sessions.Logout(ctx, session.Token))
	require.NoError(t, env.sessions.Logout(ctx, session.Token))
	require.NoError(t, env.sessions.Logout(ctx, ""))

	_, err = env.sessions.Validate(ctx, session.Token)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestValidate_ExpiryIsCheckedServerSide(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, domain.KindPatient, "p@example.com", "secret1")

	session, _, err := env.sessions.Login(ctx, domain.KindPatient, "p@example.com", "secret1")
	require.NoError(t, err)

	// The Redis key is still alive; only the server clock moved.
	env.clock.Advance(time.Hour)
	_, err = env.sessions.Validate(ctx, session.Token)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)

	_, err = env.sessions.Validate(ctx, session.Token)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
