package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig configures the mail notifier. Auth is skipped when Username is
// empty, for internal relays that allow unauthenticated submission.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// Timeout bounds one Send end to end; 30s when zero.
	Timeout time.Duration
}

// SMTP sends reports as plain-text mail.
type SMTP struct {
	cfg SMTPConfig

	// send is injectable so tests run without a mail server.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ Notifier = (*SMTP)(nil)

// NewSMTP validates cfg and returns the notifier.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("notify: smtp host must not be empty")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("notify: smtp port must be positive, got %d", cfg.Port)
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("notify: smtp sender address must not be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTP{cfg: cfg, send: smtp.SendMail}, nil
}

// Send mails the report to recipient with the file name in the subject.
func (s *SMTP) Send(ctx context.Context, recipient, file, report string) error {
	if recipient == "" {
		return fmt.Errorf("notify: recipient must not be empty")
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	msg := buildMessage(s.cfg.From, recipient, "Import failed: "+file, report)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.send(addr, auth, s.cfg.From, []string{recipient}, msg)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("notify: send to %s: %w", recipient, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("notify: send to %s: %w", recipient, err)
		}
		return nil
	}
}

// buildMessage assembles an RFC 5322 plain-text message.
func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}
