// Package app wires the daemon: config, logging, campaign, run-state
// store, external collaborators, and the daily trigger.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"dripmail/internal/campaign"
	"dripmail/internal/config"
	"dripmail/internal/engine"
	"dripmail/internal/generator"
	"dripmail/internal/mailer"
	"dripmail/internal/state"
	logx "dripmail/pkg/logx"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"
)

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	camp  *campaign.Campaign
	store state.Store
	smtp  *mailer.SMTP
	eng   *engine.Engine

	loc    *time.Location
	sendAt string

	c *cron.Cron

	mu          sync.Mutex
	watchCancel context.CancelFunc
	wg          sync.WaitGroup
}

// New loads configuration and constructs every component. Any error here
// is fatal: the process must not run with a half-wired campaign.
func New(cfgPath string) (*App, error) {
	secrets, err := config.LoadSecrets()
	if err != nil {
		return nil, err
	}

	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	camp, err := campaign.Load(cfg.Campaign)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	busy, _ := config.ParseDurationField("state.busy_timeout", cfg.State.BusyTimeout)
	store, err := state.Open(state.Config{
		Driver:      cfg.State.Driver,
		Path:        cfg.State.Path,
		Campaign:    camp.ProductName,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "state")))
	if err != nil {
		_ = logs.Close()
		return nil, fmt.Errorf("open state store: %w", err)
	}

	genTimeout, _ := config.ParseDurationOrDefault("generator.timeout", cfg.Generator.Timeout, 60*time.Second)
	gen, err := generator.NewGemini(generator.GeminiConfig{
		APIKey:     secrets.GeminiAPIKey,
		Model:      cfg.Generator.Model,
		BaseURL:    cfg.Generator.BaseURL,
		HTTPClient: &http.Client{Timeout: genTimeout},
	})
	if err != nil {
		_ = store.Close()
		_ = logs.Close()
		return nil, err
	}

	sendTimeout, _ := config.ParseDurationOrDefault("mailer.timeout", cfg.Mailer.Timeout, 30*time.Second)
	smtp, err := mailer.NewSMTP(mailer.SMTPConfig{
		Host:       cfg.Mailer.Host,
		Port:       cfg.Mailer.Port,
		Username:   secrets.EmailUser,
		Password:   secrets.EmailPass,
		From:       cfg.Mailer.From,
		Timeout:    sendTimeout,
		RatePerSec: cfg.Mailer.RatePerSec,
	}, log.With(logx.String("comp", "mailer")))
	if err != nil {
		_ = store.Close()
		_ = logs.Close()
		return nil, err
	}

	eng := engine.New(camp, store, gen, smtp, engine.Config{
		GenerateTimeout: genTimeout,
		SendTimeout:     sendTimeout,
	}, log.With(logx.String("comp", "engine")))

	loc := time.Local
	if tz := strings.TrimSpace(cfg.Schedule.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			_ = store.Close()
			_ = logs.Close()
			return nil, fmt.Errorf("schedule.timezone: %w", err)
		}
		loc = l
	}

	return &App{
		cfgm:   cfgm,
		logs:   logs,
		log:    log.With(logx.String("comp", "app")),
		camp:   camp,
		store:  store,
		smtp:   smtp,
		eng:    eng,
		loc:    loc,
		sendAt: cfg.Schedule.SendAt,
	}, nil
}

// Start fixes the campaign start date (first run only), fires one
// immediate tick, and schedules the daily trigger.
func (a *App) Start(ctx context.Context) error {
	rs, err := a.store.Initialize(ctx, time.Now().In(a.loc))
	if err != nil {
		return fmt.Errorf("initialize run state: %w", err)
	}
	a.log.Info("campaign loaded",
		logx.String("product", a.camp.ProductName),
		logx.Int("stages", len(a.camp.EmailSeries)),
		logx.Int("recipients", len(a.camp.Recipients)),
		logx.String("start_date", rs.StartDate.Format(state.DateLayout)))

	// A sent offset with no stage usually means the campaign file was
	// edited mid-flight; surface it, the offsets stay recorded forever.
	for _, o := range rs.SentOffsets() {
		if _, ok := a.camp.StageAt(o); !ok {
			a.log.Warn("persisted sent offset has no stage in campaign", logx.Int("offset", o))
		}
	}

	hour, minute, err := config.ParseHHMM(a.sendAt)
	if err != nil {
		return fmt.Errorf("schedule.send_at: %w", err)
	}

	clog := cronLogger{log: a.log.With(logx.String("comp", "cron"))}
	a.c = cron.New(
		cron.WithLocation(a.loc),
		// A slow tick must never overlap the next trigger; the engine also
		// serializes internally, but skipping keeps the queue from piling up.
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	spec := fmt.Sprintf("%d %d * * *", minute, hour)
	if _, err := a.c.AddFunc(spec, func() { a.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}

	// Config watcher: logging and mailer throttle follow the file at runtime.
	wctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.watchCancel = cancel
	a.mu.Unlock()
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(wctx)
	}()
	updates := a.cfgm.Subscribe(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(updates)
		for {
			select {
			case <-wctx.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				a.applyRuntime(cfg)
			}
		}
	}()

	// One immediate tick at startup, like every scheduled day thereafter.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.tick(ctx)
	}()

	a.c.Start()
	a.log.Info("daily schedule started",
		logx.String("send_at", a.sendAt),
		logx.String("tz", a.loc.String()))

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	return nil
}

// Stop halts the trigger and waits for an in-flight tick to converge.
func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.mu.Lock()
	cancel := a.watchCancel
	a.watchCancel = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if a.c != nil {
		stopCtx := a.c.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	err := a.store.Close()
	_ = a.logs.Close()
	return err
}

func (a *App) tick(ctx context.Context) {
	start := time.Now()
	res, err := a.eng.RunTick(ctx, time.Now().In(a.loc))
	if err != nil {
		// Recoverable per tick: the next scheduled run retries anything
		// that was never marked sent.
		a.log.Error("tick failed", logx.Err(err), logx.Duration("took", time.Since(start)))
		return
	}
	a.log.Info("tick complete",
		logx.String("outcome", string(res.Outcome)),
		logx.Int("offset", res.Offset),
		logx.Int("delivered", res.Delivered()),
		logx.Int("failed", len(res.Recipients)-res.Delivered()),
		logx.Duration("took", time.Since(start)))
}

func (a *App) applyRuntime(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	a.smtp.SetRate(cfg.Mailer.RatePerSec)
	a.log.Info("runtime config applied",
		logx.String("log_level", cfg.Logging.Level),
		logx.Int("mailer_rate", cfg.Mailer.RatePerSec))
}

// cronLogger adapts logx to cron's logging interface.
type cronLogger struct{ log logx.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.log.Debug(msg, logx.Any("kv", kv))
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.log.Error(msg, logx.Err(err), logx.Any("kv", kv))
}
