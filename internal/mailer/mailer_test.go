package mailer

import (
	"strings"
	"testing"
	"time"

	logx "dripmail/pkg/logx"
)

func TestRender(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
	got := string(render(Message{
		From:    "noreply@example.com",
		To:      "a@example.com",
		Subject: "Welcome – Acme Widget",
		Body:    "line one\nline two",
	}, now))

	for _, want := range []string{
		"From: noreply@example.com\r\n",
		"To: a@example.com\r\n",
		"Subject: Welcome – Acme Widget\r\n",
		"Content-Type: text/plain; charset=utf-8\r\n",
		"\r\n\r\nline one\r\nline two\r\n",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("rendered message missing %q:\n%s", want, got)
		}
	}

	// Header block ends before the body starts.
	if idx := strings.Index(got, "\r\n\r\n"); idx < 0 {
		t.Fatal("no header/body separator")
	}
}

func TestNewSMTPDefaults(t *testing.T) {
	t.Parallel()
	m, err := NewSMTP(SMTPConfig{Host: "smtp.example.com", Username: "user@example.com", Password: "pw"}, logx.Nop())
	if err != nil {
		t.Fatalf("NewSMTP: %v", err)
	}
	if m.cfg.Port != 587 {
		t.Fatalf("port = %d, want 587", m.cfg.Port)
	}
	if m.cfg.From != "user@example.com" {
		t.Fatalf("from = %q, want username fallback", m.cfg.From)
	}
	if m.cfg.Timeout <= 0 {
		t.Fatal("timeout not defaulted")
	}
}

func TestNewSMTPValidation(t *testing.T) {
	t.Parallel()
	if _, err := NewSMTP(SMTPConfig{}, logx.Nop()); err == nil {
		t.Fatal("expected error without host")
	}
	if _, err := NewSMTP(SMTPConfig{Host: "h"}, logx.Nop()); err == nil {
		t.Fatal("expected error without from/username")
	}
}
