package state

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "dripmail/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db       *sql.DB
	log      logx.Logger
	campaign string
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	campaign := strings.TrimSpace(cfg.Campaign)
	if campaign == "" {
		return nil, errors.New("state.campaign is required for sqlite driver")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, campaign: campaign}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Initialize(ctx context.Context, startDate time.Time) (RunState, error) {
	start := NewRunState(startDate).StartDate
	// INSERT OR IGNORE: a second initialization never moves the start date.
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO campaign_run(campaign, start_date) VALUES(?,?)`,
		s.campaign, start.Format(DateLayout),
	)
	if err != nil {
		return RunState{}, err
	}
	rs, err := s.Load(ctx)
	if err != nil {
		return RunState{}, err
	}
	if rs.StartDate.Equal(start) {
		s.log.Info("run state initialized",
			logx.String("campaign", s.campaign),
			logx.String("start_date", start.Format(DateLayout)))
	}
	return rs, nil
}

func (s *sqliteStore) Load(ctx context.Context) (RunState, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT start_date FROM campaign_run WHERE campaign = ?`, s.campaign,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return RunState{}, ErrNotInitialized
	}
	if err != nil {
		return RunState{}, err
	}
	start, err := time.Parse(DateLayout, raw)
	if err != nil {
		return RunState{}, fmt.Errorf("%w: bad start_date %q for campaign %s", ErrCorrupt, raw, s.campaign)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT day_offset FROM sent_stage WHERE campaign = ?`, s.campaign)
	if err != nil {
		return RunState{}, err
	}
	defer rows.Close()

	var offsets []int
	for rows.Next() {
		var o int
		if err := rows.Scan(&o); err != nil {
			return RunState{}, err
		}
		offsets = append(offsets, o)
	}
	if err := rows.Err(); err != nil {
		return RunState{}, err
	}
	return NewRunState(start, offsets...), nil
}

func (s *sqliteStore) MarkSent(ctx context.Context, offset int) error {
	// INSERT OR IGNORE makes re-marking an already-sent offset a no-op.
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sent_stage(campaign, day_offset, sent_at) VALUES(?,?,?)`,
		s.campaign, offset, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}
