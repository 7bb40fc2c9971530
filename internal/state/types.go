package state

import (
	"errors"
	"sort"
	"time"
)

var (
	// ErrNotInitialized is returned by Load when no run state has ever
	// been persisted for the campaign.
	ErrNotInitialized = errors.New("run state not initialized")

	// ErrCorrupt is returned when persisted state exists but cannot be
	// decoded. It must be surfaced, not papered over: reinitializing on
	// corruption would clear sent_emails and cause duplicate sends.
	ErrCorrupt = errors.New("run state corrupt")
)

// DateLayout is the on-disk representation of calendar dates.
const DateLayout = "2006-01-02"

// Config configures the run-state store.
//
// Driver values:
//   - "file": single JSON document (atomic tmp+rename writes)
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	Campaign    string        // identity key; one run state per campaign
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RunState is a campaign's permanent audit record: when the series started
// and which stage offsets have been dispatched. StartDate is set exactly
// once; the sent set is append-only.
type RunState struct {
	StartDate time.Time

	sent map[int]struct{}
}

// NewRunState builds an in-memory run state. Mostly useful for tests and
// store backends.
func NewRunState(startDate time.Time, sentOffsets ...int) RunState {
	rs := RunState{StartDate: midnightUTC(startDate), sent: map[int]struct{}{}}
	for _, o := range sentOffsets {
		rs.sent[o] = struct{}{}
	}
	return rs
}

// Sent reports whether the stage at the given day offset was dispatched.
func (rs RunState) Sent(offset int) bool {
	_, ok := rs.sent[offset]
	return ok
}

// SentOffsets returns the dispatched offsets in ascending order.
func (rs RunState) SentOffsets() []int {
	out := make([]int, 0, len(rs.sent))
	for o := range rs.sent {
		out = append(out, o)
	}
	sort.Ints(out)
	return out
}

// midnightUTC truncates a timestamp to its calendar date.
// Run state only deals in whole days.
func midnightUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
