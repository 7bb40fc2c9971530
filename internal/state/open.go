package state

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "dripmail/pkg/logx"
)

// Store is the persistence API for a single campaign's run state.
//
// Contract:
//   - Initialize creates fresh state if and only if none exists; on an
//     already-initialized campaign it is a no-op that returns the existing
//     state (the start date must never drift across process restarts).
//   - Load returns the current persisted state, ErrNotInitialized if none
//     exists, or an error wrapping ErrCorrupt if it cannot be decoded.
//   - MarkSent durably adds an offset to the sent set. It is atomic (a
//     partially-written update is never observable) and idempotent.
//     Any persistence failure propagates so the caller never believes a
//     send was recorded when it was not.
type Store interface {
	Initialize(ctx context.Context, startDate time.Time) (RunState, error)
	Load(ctx context.Context) (RunState, error)
	MarkSent(ctx context.Context, offset int) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown state driver: " + driver)
	}
}
