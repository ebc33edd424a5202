package email

import (
	"fmt"
	"net/mail"
	"net/smtp"
	"strings"
	"sync"
)

type Sender interface {
	Send(to []string, subject string, body string) error
}

// SMTPSender sends email via unauthenticated SMTP (Mailpit-compatible).
type SMTPSender struct {
	addr string
	from string
}

func NewSMTPSender(host string, port string, from string) *SMTPSender {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@meetslot.local"
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%s", host, port),
		from: from,
	}
}

func (s *SMTPSender) Send(to []string, subject string, body string) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}
	for _, addr := range to {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("recipient %q: %w", addr, err)
		}
	}
	msg := buildMessage(s.from, to, subject, body)
	return smtp.SendMail(s.addr, nil, s.from, to, []byte(msg))
}

func buildMessage(from string, to []string, subject, body string) string {
	// Minimal RFC 5322 message; enough for Mailpit and most SMTP relays.
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from,
		strings.Join(to, ", "),
		subject,
		strings.ReplaceAll(body, "\n", "\r\n"),
	)
}

// Outbox records messages instead of sending them.
type Outbox struct {
	mu   sync.Mutex
	Sent []Message
	Err  error
}

type Message struct {
	To      []string
	Subject string
	Body    string
}

func (o *Outbox) Send(to []string, subject string, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return o.Err
	}
	o.Sent = append(o.Sent, Message{To: append([]string(nil), to...), Subject: subject, Body: body})
	return nil
}
