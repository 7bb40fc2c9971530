// Package state persists a campaign's run state: the start date fixed at
// first run and the set of day offsets already dispatched.
//
// It currently supports:
//   - "file": dependency-free single-document JSON backend (atomic rename)
//   - "sqlite": SQLite database file
//
// The one cardinal sin a backend must avoid is silently losing a "sent"
// record: corruption surfaces as ErrCorrupt, never as a fresh state.
package state
