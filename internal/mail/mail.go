// Package mail defines the inbox and sender collaborators used by ingestion and
// notifications.
package mail

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"kyc-backend/internal/shared/telemetry"
)

// DefaultQuery selects candidate KYC messages in the mailbox.
const DefaultQuery = "subject:KYC"

// Attachment is one file carried by a message.
type Attachment struct {
	FileName string
	MimeType string
	Data     []byte
}

// Message is an inbound email reduced to what ingestion needs.
type Message struct {
	ID          string
	Subject     string
	From        string
	Date        time.Time
	Attachments []Attachment
}

// Inbox fetches candidate KYC messages.
type Inbox interface {
	FetchKYCMessages(ctx context.Context, query string) ([]Message, error)
}

// Sender delivers a plain-text email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

var bareAddress = regexp.MustCompile(`[^\s<>"]+@[^\s<>"]+`)

// SenderAddress returns the bare address from a From header such as
// "Jane Doe <jane@example.com>". Unparseable headers fall back to the first
// address-like token, then to the trimmed header.
func SenderAddress(from string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(from); err == nil {
		return strings.ToLower(addr.Address)
	}
	if m := bareAddress.FindString(from); m != "" {
		return strings.ToLower(strings.Trim(m, "<>"))
	}
	return from
}

// EmptyInbox is used when no mailbox is configured.
type EmptyInbox struct{}

// FetchKYCMessages returns no messages.
func (EmptyInbox) FetchKYCMessages(ctx context.Context, query string) ([]Message, error) {
	return nil, ctx.Err()
}

// LogSender records outgoing mail in the log instead of delivering it.
type LogSender struct{}

// Send logs the message and reports success.
func (LogSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	telemetry.Info("mail.send.logged", map[string]any{
		"to":         to,
		"subject":    subject,
		"body_bytes": len(body),
	})
	return nil
}

var (
	_ Inbox  = EmptyInbox{}
	_ Sender = LogSender{}
)
