package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
)

// SignatureHeader carries the HS256 token that authenticates a webhook body.
const SignatureHeader = "X-Webhook-Signature"

// WebhookClaims binds a delivery to its body.
type WebhookClaims struct {
	EventType  string `json:"event_type"`
	BodySHA256 string `json:"body_sha256"`
	jwt.RegisteredClaims
}

// Webhook posts JSON documents to a fixed URL, signed with a shared secret.
type Webhook struct {
	url     string
	secret  []byte
	timeout time.Duration
}

// NewWebhook builds a sender. It returns nil when no URL is configured.
func NewWebhook(url, secret string) *Webhook {
	if url == "" {
		return nil
	}
	return &Webhook{url: url, secret: []byte(secret), timeout: 5 * time.Second}
}

// Post delivers the document. subject and id identify the event in the signature.
func (w *Webhook) Post(ctx context.Context, eventType, subject, id string, document any) error {
	body, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode webhook body: %w", err)
	}
	signature, err := w.Sign(eventType, subject, id, body)
	if err != nil {
		return err
	}

	timeout := w.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Post(w.url)
	agent.Set(SignatureHeader, signature)
	agent.ContentType(fiber.MIMEApplicationJSON)
	agent.Body(body)
	agent.Timeout(timeout)

	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("post webhook: %w", errors.Join(errs...))
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("post webhook: unexpected status %d", code)
	}
	return nil
}

// Sign returns the signature token for body.
func (w *Webhook) Sign(eventType, subject, id string, body []byte) (string, error) {
	sum := sha256.Sum256(body)
	claims := &WebhookClaims{
		EventType:  eventType,
		BodySHA256: hex.EncodeToString(sum[:]),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(w.secret)
	if err != nil {
		return "", fmt.Errorf("sign webhook: %w", err)
	}
	return token, nil
}

// VerifySignature checks a delivery the way a receiver would.
func VerifySignature(secret []byte, signature string, body []byte) (*WebhookClaims, error) {
	parsed, err := jwt.ParseWithClaims(signature, &WebhookClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*WebhookClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid webhook claims")
	}
	sum := sha256.Sum256(body)
	if claims.BodySHA256 != hex.EncodeToString(sum[:]) {
		return nil, errors.New("webhook body does not match signature")
	}
	return claims, nil
}
