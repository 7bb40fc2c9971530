package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"sync"
	"time"

	logx "dripmail/pkg/logx"

	"golang.org/x/time/rate"
)

// SMTPConfig configures the STARTTLS SMTP transport.
type SMTPConfig struct {
	Host     string // e.g. "smtp.gmail.com"
	Port     int    // e.g. 587
	Username string
	Password string
	From     string // defaults to Username

	// Timeout bounds one full session (dial through QUIT).
	Timeout time.Duration
	// RatePerSec throttles outgoing messages; providers dislike bursts.
	// 0 disables throttling.
	RatePerSec int
}

// SMTP sends one message per session over STARTTLS with PLAIN auth,
// the same session shape the campaign's mail provider expects.
type SMTP struct {
	cfg SMTPConfig
	log logx.Logger

	mu      sync.Mutex
	limiter *rate.Limiter
}

// NewSMTP builds the SMTP mailer.
func NewSMTP(cfg SMTPConfig, log logx.Logger) (*SMTP, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("mailer: host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if strings.TrimSpace(cfg.From) == "" {
		cfg.From = cfg.Username
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("mailer: from address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	m := &SMTP{cfg: cfg, log: log}
	if cfg.RatePerSec > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	return m, nil
}

// SetRate adjusts the outgoing throttle at runtime (config reload).
func (m *SMTP) SetRate(perSec int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if perSec <= 0 {
		m.limiter = nil
		return
	}
	m.limiter = rate.NewLimiter(rate.Limit(perSec), perSec)
}

// Send delivers one message. Errors carry the recipient so per-recipient
// failures stay attributable upstream.
func (m *SMTP) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	lim := m.limiter
	m.mu.Unlock()
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return fmt.Errorf("mailer: throttle: %w", err)
		}
	}
	if msg.From == "" {
		msg.From = m.cfg.From
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	addr := net.JoinHostPort(m.cfg.Host, fmt.Sprintf("%d", m.cfg.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("mailer: dial %s: %w", addr, err)
	}
	// The smtp client has no context plumbing; a connection deadline
	// bounds every subsequent read/write in the session.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("mailer: handshake %s: %w", addr, err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return fmt.Errorf("mailer: starttls: %w", err)
		}
	}
	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("mailer: auth: %w", err)
		}
	}

	if err := c.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("mailer: mail from %s: %w", m.cfg.From, err)
	}
	if err := c.Rcpt(msg.To); err != nil {
		return fmt.Errorf("mailer: rcpt %s: %w", msg.To, err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("mailer: data: %w", err)
	}
	if _, err := w.Write(render(msg, time.Now())); err != nil {
		_ = w.Close()
		return fmt.Errorf("mailer: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mailer: close body: %w", err)
	}
	return c.Quit()
}
