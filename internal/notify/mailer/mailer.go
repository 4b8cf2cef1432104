// Package mailer sends appointment notifications over SMTP.
package mailer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/vaibhav-krishna23/Symptoms-Tracker-Advanced/internal/symptom"
)

// Mailer delivers HTML mail via an SMTP relay. It implements
// symptom.Transport. A zero-valued Mailer is unconfigured and every
// Send fails; callers check Configured first.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// New creates a Mailer. host and from may be empty, which yields an
// unconfigured transport.
func New(host string, port int, username, password, from string) *Mailer {
	return &Mailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// Configured reports whether the relay settings are present.
func (m *Mailer) Configured() bool {
	return m.host != "" && m.from != ""
}

// Send delivers one message. Each call dials a fresh connection so a
// stuck relay cannot poison later sends.
func (m *Mailer) Send(ctx context.Context, msg *symptom.Mail) error {
	if !m.Configured() {
		return fmt.Errorf("mailer: transport not configured")
	}

	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if m.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.username),
			mail.WithPassword(m.password),
		)
	}

	client, err := mail.NewClient(m.host, opts...)
	if err != nil {
		return fmt.Errorf("mailer: create client: %w", err)
	}

	out := mail.NewMsg()
	if err := out.From(m.from); err != nil {
		return fmt.Errorf("mailer: invalid from address %q: %w", m.from, err)
	}
	if err := out.To(msg.To); err != nil {
		return fmt.Errorf("mailer: invalid recipient %q: %w", msg.To, err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)

	for _, a := range msg.Attachments {
		if err := out.AttachReader(a.Filename, bytes.NewReader(a.Data)); err != nil {
			return fmt.Errorf("mailer: attach %q: %w", a.Filename, err)
		}
	}

	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("mailer: send to %q: %w", msg.To, err)
	}
	return nil
}
