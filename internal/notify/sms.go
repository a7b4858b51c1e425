package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/twilio/twilio-go"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SMSSender delivers text messages to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

const smsTimeout = 15 * time.Second

// TwilioSMS sends SMS through the Twilio REST API.
type TwilioSMS struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewTwilioSMS builds a sender. It returns nil when credentials are missing so
// callers can fall back to another channel.
func NewTwilioSMS(accountSID, authToken, fromNumber string) *TwilioSMS {
	if accountSID == "" || authToken == "" || fromNumber == "" {
		return nil
	}
	httpClient := &twilioClient.Client{Credentials: twilioClient.NewCredentials(accountSID, authToken)}
	httpClient.SetAccountSid(accountSID)
	httpClient.SetTimeout(smsTimeout)

	client := twilio.NewRestClientWithParams(twilio.ClientParams{Client: httpClient})
	return &TwilioSMS{client: client, fromNumber: fromNumber}
}

// SendSMS implements SMSSender.
func (t *TwilioSMS) SendSMS(ctx context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.fromNumber)
	params.SetBody(body)

	err := sendWithContext(ctx, func() error {
		_, err := t.client.Api.CreateMessage(params)
		return err
	})
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	return nil
}
