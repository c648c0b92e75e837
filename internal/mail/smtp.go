package mail

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Sender delivers notification email over SMTP. It is an explicitly
// constructed client with its own lifecycle, injected into the worker; there
// is no shared module-level transport handle.
type Sender struct {
	host   string
	port   int
	auth   smtp.Auth
	from   string
	logger *slog.Logger
}

// NewSender creates an SMTP sender. Auth is skipped when user is empty,
// which is what local debug relays expect.
func NewSender(host string, port int, user, pass, from string, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}

	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, pass, host)
	}

	return &Sender{
		host:   host,
		port:   port,
		auth:   auth,
		from:   from,
		logger: logger,
	}
}

// Send delivers a single plain-text message.
func (s *Sender) Send(to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	if err := smtp.SendMail(addr, s.auth, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}

	s.logger.Debug("mail sent", slog.String("to", to), slog.String("subject", subject))
	return nil
}
