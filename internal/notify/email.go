package notify

import (
	"fmt"
	"html"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/devilmonastery/pocketid-dashboard/internal/config"
	"github.com/devilmonastery/pocketid-dashboard/internal/domain/entities"
)

// Notifier sends access-request emails to the configured admin address.
// When SMTP is not configured every call is a logged no-op; the dashboard
// works fine without a mailer.
type Notifier struct {
	cfg config.SMTPConfig
	log *slog.Logger

	// send and backoff are swappable for tests
	send    func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	backoff time.Duration
}

// NewNotifier creates a mailer from the SMTP configuration
func NewNotifier(cfg config.SMTPConfig, log *slog.Logger) *Notifier {
	return &Notifier{
		cfg:     cfg,
		log:     log.With(slog.String("component", "notify")),
		send:    smtp.SendMail,
		backoff: time.Second,
	}
}

// Enabled reports whether the notifier will actually send mail
func (n *Notifier) Enabled() bool {
	return n.cfg.Enabled() && n.cfg.AdminEmail != ""
}

// AccessRequested emails the admin that a user asked for access to apps.
// Intended to run on its own goroutine; failures are logged, never surfaced
// to the requesting user.
func (n *Notifier) AccessRequested(user *entities.User, apps []*entities.App) {
	if !n.Enabled() {
		n.log.Debug("smtp not configured, skipping notification")
		return
	}

	names := make([]string, 0, len(apps))
	for _, app := range apps {
		names = append(names, app.Name)
	}

	subject := fmt.Sprintf("Access request from %s", user.Name)
	text := n.textBody(user, names)
	htmlBody := n.htmlBody(user, names)

	if err := n.sendMail(n.cfg.AdminEmail, subject, text, htmlBody); err != nil {
		n.log.Error("failed to send access request notification",
			slog.String("user", user.ID), slog.Any("error", err))
		return
	}
	n.log.Info("access request notification sent",
		slog.String("user", user.ID), slog.Int("apps", len(apps)))
}

func (n *Notifier) textBody(user *entities.User, appNames []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) requested access to the following applications:\r\n\r\n", user.Name, user.Email)
	for _, name := range appNames {
		fmt.Fprintf(&b, "  - %s\r\n", name)
	}
	b.WriteString("\r\nReview the request in the dashboard admin page.\r\n")
	return b.String()
}

func (n *Notifier) htmlBody(user *entities.User, appNames []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p><strong>%s</strong> (%s) requested access to:</p><ul>",
		html.EscapeString(user.Name), html.EscapeString(user.Email))
	for _, name := range appNames {
		fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(name))
	}
	b.WriteString("</ul><p>Review the request in the dashboard admin page.</p>")
	return b.String()
}

// sendMail delivers a multipart/alternative message, retrying with
// exponential backoff up to the configured attempt count
func (n *Notifier) sendMail(to, subject, textBody, htmlBody string) error {
	msg := n.buildMessage(to, subject, textBody, htmlBody)
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	attempts := n.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(1<<(attempt-2)) * n.backoff
			n.log.Warn("retrying email delivery",
				slog.Int("attempt", attempt), slog.Duration("backoff", backoff), slog.Any("error", lastErr))
			time.Sleep(backoff)
		}
		lastErr = n.send(addr, auth, n.cfg.FromEmail, []string{to}, msg)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("delivery failed after %d attempts: %w", attempts, lastErr)
}

func (n *Notifier) buildMessage(to, subject, textBody, htmlBody string) []byte {
	const boundary = "dashboard-mail-boundary"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", n.cfg.FromName, n.cfg.FromEmail)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	if n.cfg.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", n.cfg.ReplyTo)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, textBody)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, htmlBody)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)

	return []byte(b.String())
}
