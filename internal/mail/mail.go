// Package mail sends account mail: email verification and password reset.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"
	"text/template"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

type Message struct {
	To      string
	Subject string
	Text    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

const VerificationSubject = `Verify your FalconSupport account`
const Verification = `
Hello,

Please confirm your email address to finish setting up your FalconSupport account:

{{ .BaseURL }}/auth?mode=verifyEmail&token={{ .Token }}

The link is valid for 24 hours.

FalconSupport
`

const PasswordResetSubject = `FalconSupport password reset`
const PasswordReset = `
Hello,

To reset your password, open the link below. The link is valid for one hour.

{{ .BaseURL }}/forgot-password?token={{ .Token }}

If this wasn't you, you can ignore this email.

FalconSupport
`

// NewMail renders a template body into a Message.
func NewMail(to, subject, content string, data interface{}) (Message, error) {
	tpl, err := template.New("email").Parse(content)
	if err != nil {
		return Message{}, err
	}
	buf := new(bytes.Buffer)
	if err := tpl.Execute(buf, data); err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: subject, Text: buf.String()}, nil
}

// Mailgun delivers through the Mailgun HTTP API.
type Mailgun struct {
	mg   mailgun.Mailgun
	from string
}

func NewMailgun(domain, apiKey, from string) *Mailgun {
	return &Mailgun{mg: mailgun.NewMailgun(domain, apiKey), from: from}
}

func (m *Mailgun) Send(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	message := m.mg.NewMessage(m.from, msg.Subject, msg.Text, msg.To)
	_, id, err := m.mg.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("mailgun send to %s: %w", msg.To, err)
	}
	log.Printf("[Mail] sent %q to %s (%s)", msg.Subject, msg.To, id)
	return nil
}

// LogMailer prints mail instead of sending it and keeps the last messages
// for inspection. Used when Mailgun is not configured and in tests.
type LogMailer struct {
	mu   sync.Mutex
	sent []Message
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	log.Printf("[Mail] to=%s subject=%q\n%s", msg.To, msg.Subject, msg.Text)
	return nil
}

func (m *LogMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}
