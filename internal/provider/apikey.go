// internal/provider/apikey.go
//
// Transactional-email API driver (SendGrid).
package provider

import (
	"context"
	"fmt"

	sendgrid "github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type apiSender struct {
	client *sendgrid.Client
}

func newAPISender(apiKey string) *apiSender {
	return &apiSender{client: sendgrid.NewSendClient(apiKey)}
}

func (a *apiSender) Send(ctx context.Context, msg Message) error {
	from := sgmail.NewEmail("", msg.From)
	to := sgmail.NewEmail("", msg.To)
	email := sgmail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

	resp, err := a.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("transactional email send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("transactional email: service returned %d: %s",
			resp.StatusCode, resp.Body)
	}
	return nil
}
