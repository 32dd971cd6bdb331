package delivery

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/hivecrm/hivecrm-backend/pkg/config"
	"github.com/hivecrm/hivecrm-backend/pkg/db/models"
)

// Transport sends one queue item to a provider and returns the provider's
// message id when it has one.
type Transport interface {
	Send(ctx context.Context, item models.EmailQueueItem) (string, error)
}

// RejectedError marks a send the provider refused permanently, e.g. an
// invalid recipient address. The processor fails the item immediately instead
// of burning retries on it.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("transport rejected message: %s", e.Reason)
}

// NewRejectedError wraps a permanent provider refusal.
func NewRejectedError(reason string) *RejectedError {
	return &RejectedError{Reason: reason}
}

// SMTPTransport delivers queue items over SMTP.
type SMTPTransport struct {
	cfg    config.SMTPConfig
	dialer *gomail.Dialer
}

// NewSMTPTransport builds an SMTP transport from config.
func NewSMTPTransport(cfg config.SMTPConfig) *SMTPTransport {
	return &SMTPTransport{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (t *SMTPTransport) Send(ctx context.Context, item models.EmailQueueItem) (string, error) {
	if item.ToAddress == "" {
		return "", NewRejectedError("missing recipient address")
	}

	msg := gomail.NewMessage()
	from := item.FromAddress
	if from == "" {
		from = t.cfg.FromAddress
	}
	fromName := t.cfg.FromName
	if item.FromName != nil && *item.FromName != "" {
		fromName = *item.FromName
	}
	msg.SetAddressHeader("From", from, fromName)
	if item.ToName != nil && *item.ToName != "" {
		msg.SetAddressHeader("To", item.ToAddress, *item.ToName)
	} else {
		msg.SetHeader("To", item.ToAddress)
	}
	msg.SetHeader("Subject", item.Subject)

	switch {
	case item.HTMLBody != nil && item.TextBody != nil:
		msg.SetBody("text/plain", *item.TextBody)
		msg.AddAlternative("text/html", *item.HTMLBody)
	case item.HTMLBody != nil:
		msg.SetBody("text/html", *item.HTMLBody)
	case item.TextBody != nil:
		msg.SetBody("text/plain", *item.TextBody)
	default:
		return "", NewRejectedError("message has no body")
	}

	// gomail dials synchronously; honor cancellation around the call.
	done := make(chan error, 1)
	go func() { done <- t.dialer.DialAndSend(msg) }()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("smtp send: %w", err)
		}
	}
	return "", nil
}
