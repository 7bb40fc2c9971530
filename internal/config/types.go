package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config is the process configuration. Secrets (SMTP credentials, API key)
// never live here; they come from the environment, see secrets.go.
type Config struct {
	// Campaign is the path to the campaign definition JSON.
	Campaign string `json:"campaign"`

	Logging   LoggingConfig   `json:"logging"`
	State     StateConfig     `json:"state"`
	Schedule  ScheduleConfig  `json:"schedule"`
	Generator GeneratorConfig `json:"generator,omitempty"`
	Mailer    MailerConfig    `json:"mailer"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StateConfig controls the run-state store.
//
// Example:
//
//	"state": { "driver": "file", "path": "./dripmail_state.json" }
type StateConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// ScheduleConfig controls the daily trigger.
type ScheduleConfig struct {
	// SendAt is the daily trigger time as "HH:MM" (schedule timezone).
	SendAt string `json:"send_at"`
	// Timezone is an IANA TZ name, e.g. "Europe/Amsterdam". Empty means local.
	Timezone string `json:"timezone,omitempty"`
}

// GeneratorConfig controls the content-generation call.
type GeneratorConfig struct {
	Model   string `json:"model,omitempty"`    // default: gemini-1.5-flash
	BaseURL string `json:"base_url,omitempty"` // override for tests/proxies
	// Timeout is a Go duration string bounding one generation call.
	Timeout string `json:"timeout,omitempty"`
}

// MailerConfig controls the SMTP transport. Username and password come
// from the environment, not from this file.
type MailerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port,omitempty"` // default: 587
	From string `json:"from,omitempty"` // default: EMAIL_USER
	// Timeout is a Go duration string bounding one SMTP session.
	Timeout    string `json:"timeout,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// Validate checks everything that should fail at startup rather than at
// the first tick.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Campaign) == "" {
		return fmt.Errorf("config: campaign path is required")
	}
	if strings.TrimSpace(c.State.Path) == "" {
		return fmt.Errorf("config: state.path is required")
	}
	if _, err := ParseDurationField("state.busy_timeout", c.State.BusyTimeout); err != nil {
		return err
	}
	if _, _, err := ParseHHMM(c.Schedule.SendAt); err != nil {
		return fmt.Errorf("config: schedule.send_at: %w", err)
	}
	if tz := strings.TrimSpace(c.Schedule.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("config: schedule.timezone: %w", err)
		}
	}
	if _, err := ParseDurationField("generator.timeout", c.Generator.Timeout); err != nil {
		return err
	}
	if strings.TrimSpace(c.Mailer.Host) == "" {
		return fmt.Errorf("config: mailer.host is required")
	}
	if _, err := ParseDurationField("mailer.timeout", c.Mailer.Timeout); err != nil {
		return err
	}
	return nil
}

// ParseHHMM splits a "HH:MM" clock string.
func ParseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}
