package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "dripmail/pkg/logx"
)

// fileStore is a dependency-free persistence backend: one JSON document,
// rewritten in full on every MarkSent via tmp+rename so a crash mid-write
// leaves the previous document intact.
type fileStore struct {
	log      logx.Logger
	path     string
	campaign string

	mu sync.Mutex
}

type fileDoc struct {
	Campaign   string `json:"campaign,omitempty"`
	StartDate  string `json:"start_date"`
	SentEmails []int  `json:"sent_emails"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("state.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path, campaign: cfg.Campaign}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) Initialize(ctx context.Context, startDate time.Time) (RunState, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, err := s.readLocked()
	if err == nil {
		// Already initialized: leave start date and sent set untouched.
		return rs, nil
	}
	if !errors.Is(err, ErrNotInitialized) {
		return RunState{}, err
	}

	rs = NewRunState(startDate)
	if err := s.writeLocked(rs); err != nil {
		return RunState{}, err
	}
	s.log.Info("run state initialized",
		logx.String("path", s.path),
		logx.String("start_date", rs.StartDate.Format(DateLayout)))
	return rs, nil
}

func (s *fileStore) Load(ctx context.Context) (RunState, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *fileStore) MarkSent(ctx context.Context, offset int) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, err := s.readLocked()
	if err != nil {
		return err
	}
	if rs.Sent(offset) {
		return nil
	}
	rs.sent[offset] = struct{}{}
	return s.writeLocked(rs)
}

func (s *fileStore) readLocked() (RunState, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunState{}, ErrNotInitialized
		}
		return RunState{}, err
	}

	var doc fileDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return RunState{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	start, err := time.Parse(DateLayout, doc.StartDate)
	if err != nil {
		return RunState{}, fmt.Errorf("%w: %s: bad start_date %q", ErrCorrupt, s.path, doc.StartDate)
	}
	return NewRunState(start, doc.SentEmails...), nil
}

// writeLocked persists the document atomically: write to a sibling tmp
// file, fsync, then rename over the target.
func (s *fileStore) writeLocked(rs RunState) error {
	doc := fileDoc{
		Campaign:   s.campaign,
		StartDate:  rs.StartDate.Format(DateLayout),
		SentEmails: rs.SentOffsets(),
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
