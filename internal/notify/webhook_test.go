package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/healthcare-identity/internal/config"
)

func TestWebhookPostIsVerifiable(t *testing.T) {
	secret := "shared-secret"
	var gotBody []byte
	var gotSig string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	hook := NewWebhook(srv.URL, secret)
	require.NotNil(t, hook)

	doc := map[string]string{"request_id": "req-1", "status": "APPROVED"}
	require.NoError(t, hook.Post(context.Background(), "verification_decided", "doc-1", "evt-1", doc))

	claims, err := VerifySignature([]byte(secret), gotSig, gotBody)
	require.NoError(t, err)
	assert.Equal(t, "verification_decided", claims.EventType)
	assert.Equal(t, "doc-1", claims.Subject)
	assert.Equal(t, "evt-1", claims.ID)

	_, err = VerifySignature([]byte(secret), gotSig, []byte(`{"status":"REJECTED"}`))
	assert.Error(t, err)
	_, err = VerifySignature([]byte("other"), gotSig, gotBody)
	assert.Error(t, err)
}

func TestWebhookPostFailsOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, "s").Post(context.Background(), "otp_issued", "p1", "e1", map[string]string{})
	assert.Error(t, err)
}

func TestConstructorsReturnNilWhenUnconfigured(t *testing.T) {
	assert.Nil(t, NewWebhook("", "s"))
	assert.Nil(t, NewSMTPEmail("", 587, "", "", ""))
	assert.Nil(t, NewTwilioSMS("sid", "", "+1555"))
	assert.NotNil(t, NewSMTPEmail("smtp.example.com", 587, "u", "p", ""))
}

func TestNewTransportsLeavesUnconfiguredChannelsNil(t *testing.T) {
	tr := NewTransports(config.NotificationConfig{WebhookURL: "http://hooks.test/in"})
	assert.Nil(t, tr.SMS)
	assert.Nil(t, tr.Email)
	assert.NotNil(t, tr.Webhook)
}
