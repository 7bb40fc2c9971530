// Package mailer delivers campaign emails over an authenticated transport.
package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Message is one outgoing email. Fields are provider-agnostic.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer abstracts the delivery transport.
// Send attempts delivery of a single message; implementations must honor
// ctx so a hung server can't block a tick indefinitely.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// render produces the RFC 5322 wire form of a message.
func render(msg Message, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	// Normalize bare newlines; SMTP wants CRLF.
	body := strings.ReplaceAll(msg.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
