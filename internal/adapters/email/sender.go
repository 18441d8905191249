package email

import (
	"context"
	"time"
)

// SendRequest contains the data needed to send an email via an external provider.
type SendRequest struct {
	To      []string
	From    string // defaults to the sender's configured address
	Subject string
	HTML    string
	ReplyTo string
	// Tags travel with the message to the provider's event log.
	// Keys and values are limited to ASCII letters, digits, '_' and '-'.
	Tags map[string]string
}

// SendResult contains the response from the email provider.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}
