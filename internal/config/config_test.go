package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validJSON = `{
  "campaign": "./campaign.json",
  "logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}},
  "state": {"driver": "file", "path": "./state.json"},
  "schedule": {"send_at": "09:00"},
  "generator": {"model": "gemini-1.5-flash", "timeout": "45s"},
  "mailer": {"host": "smtp.example.com", "port": 587, "timeout": "20s", "rate_per_sec": 1}
}`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestManagerLoadJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json", validJSON))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Schedule.SendAt != "09:00" {
		t.Fatalf("send_at = %q", cfg.Schedule.SendAt)
	}
	if cfg.Mailer.Host != "smtp.example.com" {
		t.Fatalf("mailer.host = %q", cfg.Mailer.Host)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return committed config")
	}
}

func TestManagerLoadYAML(t *testing.T) {
	t.Parallel()
	body := `
campaign: ./campaign.json
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
state:
  driver: sqlite
  path: ./dripmail.db
  busy_timeout: 5s
schedule:
  send_at: "07:30"
  timezone: UTC
mailer:
  host: smtp.example.com
`
	m := NewManager(writeConfig(t, "config.yaml", body))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.State.Driver != "sqlite" {
		t.Fatalf("state.driver = %q", cfg.State.Driver)
	}
	if cfg.Schedule.SendAt != "07:30" {
		t.Fatalf("send_at = %q", cfg.Schedule.SendAt)
	}
}

func TestManagerRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown field", body: strings.Replace(validJSON, `"campaign"`, `"campain"`, 1)},
		{name: "trailing data", body: validJSON + `{}`},
		{name: "bad send_at", body: strings.Replace(validJSON, "09:00", "25:00", 1)},
		{name: "bad timezone", body: strings.Replace(validJSON, `"send_at": "09:00"`, `"send_at": "09:00", "timezone": "Mars/Olympus"`, 1)},
		{name: "missing mailer host", body: strings.Replace(validJSON, "smtp.example.com", " ", 1)},
		{name: "bad duration", body: strings.Replace(validJSON, "45s", "45 seconds", 1)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(writeConfig(t, "config.json", tt.body))
			if _, err := m.Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	h, m, err := ParseHHMM("23:15")
	if err != nil {
		t.Fatalf("ParseHHMM error: %v", err)
	}
	if h != 23 || m != 15 {
		t.Fatalf("unexpected result: %d:%d", h, m)
	}

	for _, bad := range []string{"24:00", "12:60", "9", "", "ab:cd"} {
		if _, _, err := ParseHHMM(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationField("x", " 10s ")
	if err != nil || d != 10*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("expected error for negative duration")
	}

	if d, err := ParseDurationOrDefault("x", "", 7*time.Second); err != nil || d != 7*time.Second {
		t.Fatalf("default: got %v, %v", d, err)
	}
}

func TestSubscribePublish(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json", validJSON))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	m.publish(cfg)
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("wrong config delivered")
		}
	default:
		t.Fatal("no config delivered")
	}
}
