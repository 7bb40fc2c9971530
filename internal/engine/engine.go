// Package engine decides, once per tick, whether a campaign stage is due
// and drives content generation, delivery, and sent-state commit.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dripmail/internal/campaign"
	"dripmail/internal/generator"
	"dripmail/internal/mailer"
	"dripmail/internal/state"
	logx "dripmail/pkg/logx"
)

// Outcome classifies one tick.
type Outcome string

const (
	// NoStageDue: today's offset has no stage (or today precedes the start date).
	NoStageDue Outcome = "no_stage_due"
	// AlreadySent: today's stage was dispatched by an earlier tick.
	AlreadySent Outcome = "already_sent"
	// Dispatched: content was generated and delivery attempted to every recipient.
	Dispatched Outcome = "dispatched"
)

// RecipientResult is the delivery outcome for a single recipient.
type RecipientResult struct {
	Address string
	Err     error
}

// TickResult reports what one tick did.
type TickResult struct {
	Outcome Outcome
	Offset  int
	// Recipients is populated only for Dispatched, in campaign order.
	Recipients []RecipientResult
}

// Delivered returns how many recipients were delivered to successfully.
func (r TickResult) Delivered() int {
	n := 0
	for _, rr := range r.Recipients {
		if rr.Err == nil {
			n++
		}
	}
	return n
}

// Config bounds the engine's external calls.
type Config struct {
	// GenerateTimeout bounds one content-generation call.
	GenerateTimeout time.Duration
	// SendTimeout bounds delivery to one recipient.
	SendTimeout time.Duration
}

// Engine owns all run-state transitions for one campaign. Collaborators
// are injected so tests can substitute fakes for the two external ones.
type Engine struct {
	camp  *campaign.Campaign
	store state.Store
	gen   generator.Generator
	mail  mailer.Mailer
	log   logx.Logger
	cfg   Config

	// Serializes ticks: two concurrent ticks could both observe an
	// unsent offset and double-send (check-then-act race).
	mu sync.Mutex
}

// New wires an engine for one campaign.
func New(camp *campaign.Campaign, store state.Store, gen generator.Generator, mail mailer.Mailer, cfg Config, log logx.Logger) *Engine {
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 60 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{camp: camp, store: store, gen: gen, mail: mail, cfg: cfg, log: log}
}

// RunTick evaluates "is a stage due now" and dispatches it at most once.
//
// Failure semantics:
//   - Store load failures and generation failures abort the tick with no
//     state mutated; the next scheduled tick retries the same stage.
//   - Per-recipient delivery failures are isolated: they are collected in
//     the result but do not stop other recipients and do not block the
//     sent-state commit. The stage closes once its content was generated
//     and presented to every recipient; there is no per-recipient retry.
//   - A MarkSent failure propagates together with the Dispatched result,
//     so the operator learns the commit (not the send) is what failed.
func (e *Engine) RunTick(ctx context.Context, now time.Time) (TickResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rs, err := e.store.Load(ctx)
	if err != nil {
		return TickResult{}, fmt.Errorf("load run state: %w", err)
	}

	offset, ok := DayOffset(now, rs.StartDate)
	if !ok {
		e.log.Debug("tick before campaign start",
			logx.Time("now", now),
			logx.Time("start_date", rs.StartDate))
		return TickResult{Outcome: NoStageDue}, nil
	}

	stage, ok := e.camp.StageAt(offset)
	if !ok {
		e.log.Info("no stage due", logx.Int("offset", offset))
		return TickResult{Outcome: NoStageDue, Offset: offset}, nil
	}

	if rs.Sent(offset) {
		e.log.Info("stage already sent", logx.Int("offset", offset), logx.String("theme", stage.Theme))
		return TickResult{Outcome: AlreadySent, Offset: offset}, nil
	}

	body, err := e.generate(ctx, stage)
	if err != nil {
		// Nothing was sent and nothing was marked; next tick retries.
		return TickResult{}, fmt.Errorf("generate stage %d: %w", offset, err)
	}

	subject := fmt.Sprintf("%s – %s", stage.Theme, e.camp.ProductName)
	results := e.deliver(ctx, subject, body)

	res := TickResult{Outcome: Dispatched, Offset: offset, Recipients: results}
	if err := e.store.MarkSent(ctx, offset); err != nil {
		return res, fmt.Errorf("mark stage %d sent: %w", offset, err)
	}

	e.log.Info("stage dispatched",
		logx.Int("offset", offset),
		logx.String("theme", stage.Theme),
		logx.Int("delivered", res.Delivered()),
		logx.Int("failed", len(results)-res.Delivered()))
	return res, nil
}

func (e *Engine) generate(ctx context.Context, stage campaign.Stage) (string, error) {
	gctx, cancel := context.WithTimeout(ctx, e.cfg.GenerateTimeout)
	defer cancel()

	return e.gen.Generate(gctx, generator.Request{
		ProductName:    e.camp.ProductName,
		TargetAudience: e.camp.TargetAudience,
		Theme:          stage.Theme,
		Objective:      stage.Objective,
		Features:       e.camp.Features,
	})
}

// deliver attempts every recipient independently and concurrently; one
// failure never blocks the rest. All sends converge before returning.
func (e *Engine) deliver(ctx context.Context, subject, body string) []RecipientResult {
	results := make([]RecipientResult, len(e.camp.Recipients))

	var wg sync.WaitGroup
	for i, addr := range e.camp.Recipients {
		wg.Add(1)
		go func(i int, addr string) {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, e.cfg.SendTimeout)
			defer cancel()

			err := e.mail.Send(sctx, mailer.Message{
				To:      addr,
				Subject: subject,
				Body:    body,
			})
			results[i] = RecipientResult{Address: addr, Err: err}
			if err != nil {
				e.log.Warn("delivery failed", logx.String("to", addr), logx.Err(err))
			} else {
				e.log.Debug("delivered", logx.String("to", addr))
			}
		}(i, addr)
	}
	wg.Wait()

	return results
}
