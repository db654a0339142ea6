package main

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/secutils/core/internal/notifications"
)

// smtpTransport is the minimal net/smtp-shaped implementation of C8's
// Transport boundary (SPEC_FULL.md §6: the SMTP wire protocol itself is
// out of scope for the core, only the interface is specified). It sends
// unauthenticated or PLAIN-authenticated mail through a single relay host,
// matching the teacher's "configured SMTP username" convention without
// reimplementing the teacher's SparkPost HTTP transmission envelope.
type smtpTransport struct {
	addr string // host:port
	auth smtp.Auth
}

func newSMTPTransport(addr, username, password string) *smtpTransport {
	var auth smtp.Auth
	if username != "" && password != "" {
		host := addr
		if idx := strings.IndexByte(addr, ':'); idx >= 0 {
			host = addr[:idx]
		}
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &smtpTransport{addr: addr, auth: auth}
}

func (t *smtpTransport) Send(ctx context.Context, msg notifications.EmailMessage) error {
	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", msg.From)
	fmt.Fprintf(&body, "To: %s\r\n", msg.To)
	if msg.ReplyTo != "" {
		fmt.Fprintf(&body, "Reply-To: %s\r\n", msg.ReplyTo)
	}
	fmt.Fprintf(&body, "Subject: %s\r\n", msg.Subject)
	if !msg.Date.IsZero() {
		fmt.Fprintf(&body, "Date: %s\r\n", msg.Date.Format(time.RFC1123Z))
	}
	if msg.HTML != "" {
		body.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		body.WriteString(msg.HTML)
	} else {
		body.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		body.WriteString(msg.Text)
	}

	return smtp.SendMail(t.addr, t.auth, msg.From, []string{msg.To}, []byte(body.String()))
}
