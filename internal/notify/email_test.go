package notify

import (
	"errors"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"

	"github.com/devilmonastery/pocketid-dashboard/internal/config"
	"github.com/devilmonastery/pocketid-dashboard/internal/domain/entities"
)

func testSMTPConfig() config.SMTPConfig {
	return config.SMTPConfig{
		Host:       "mail.example.com",
		Port:       587,
		FromName:   "Dashboard",
		FromEmail:  "dashboard@example.com",
		AdminEmail: "admin@example.com",
		MaxRetries: 3,
	}
}

func TestNotifierDisabledWithoutConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SMTPConfig
	}{
		{"no host", config.SMTPConfig{Port: 587, AdminEmail: "a@b.c"}},
		{"no port", config.SMTPConfig{Host: "h", AdminEmail: "a@b.c"}},
		{"no admin email", config.SMTPConfig{Host: "h", Port: 587}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNotifier(tt.cfg, slog.Default())
			if n.Enabled() {
				t.Error("notifier should be disabled")
			}

			// Must be a safe no-op, not a panic or network attempt
			n.send = func(string, smtp.Auth, string, []string, []byte) error {
				t.Error("send called while disabled")
				return nil
			}
			n.AccessRequested(&entities.User{ID: "u", Name: "U"}, nil)
		})
	}
}

func TestAccessRequestedMessage(t *testing.T) {
	n := NewNotifier(testSMTPConfig(), slog.Default())

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	user := &entities.User{ID: "u1", Name: "Ada Lovelace", Email: "ada@example.com"}
	apps := []*entities.App{{ID: "a1", Name: "Grafana"}, {ID: "a2", Name: "Wiki"}}
	n.AccessRequested(user, apps)

	if gotAddr != "mail.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "dashboard@example.com" {
		t.Errorf("from = %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "admin@example.com" {
		t.Errorf("to = %v", gotTo)
	}

	msg := string(gotMsg)
	for _, want := range []string{
		"Subject: Access request from Ada Lovelace",
		"ada@example.com",
		"Grafana",
		"Wiki",
		"multipart/alternative",
		"text/plain",
		"text/html",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSendRetries(t *testing.T) {
	n := NewNotifier(testSMTPConfig(), slog.Default())
	n.backoff = 0

	attempts := 0
	n.send = func(string, smtp.Auth, string, []string, []byte) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	}

	if err := n.sendMail("admin@example.com", "s", "text", "<p>html</p>"); err != nil {
		t.Fatalf("sendMail: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestSendGivesUpAfterMaxRetries(t *testing.T) {
	n := NewNotifier(testSMTPConfig(), slog.Default())
	n.backoff = 0

	attempts := 0
	n.send = func(string, smtp.Auth, string, []string, []byte) error {
		attempts++
		return errors.New("permanent failure")
	}

	if err := n.sendMail("admin@example.com", "s", "t", "h"); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestHTMLEscaping(t *testing.T) {
	n := NewNotifier(testSMTPConfig(), slog.Default())

	user := &entities.User{Name: "<script>alert(1)</script>", Email: "x@example.com"}
	body := n.htmlBody(user, []string{"App <b>"})

	if strings.Contains(body, "<script>") {
		t.Error("user name not escaped in html body")
	}
	if strings.Contains(body, "App <b>") {
		t.Error("app name not escaped in html body")
	}
}
