// Package history persists check runs in SQLite, PostgreSQL or MySQL.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/gotrs-io/l10ncheck/internal/report"
)

// Statements are executed one by one; the MySQL driver rejects multi-statement
// Exec by default.
var schemas = map[string][]string{
	"sqlite3": {
		`CREATE TABLE IF NOT EXISTS check_runs (
			run_id      TEXT PRIMARY KEY,
			engine      TEXT NOT NULL,
			started_at  DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			passed      BOOLEAN NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS check_results (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id         TEXT NOT NULL REFERENCES check_runs(run_id) ON DELETE CASCADE,
			position       INTEGER NOT NULL,
			locale         TEXT NOT NULL,
			url            TEXT NOT NULL,
			expected_title TEXT NOT NULL,
			actual_title   TEXT NOT NULL,
			passed         BOOLEAN NOT NULL,
			error          TEXT NOT NULL DEFAULT '',
			kind           TEXT NOT NULL DEFAULT '',
			screenshot     TEXT NOT NULL DEFAULT '',
			duration_ns    INTEGER NOT NULL,
			checked_at     DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_check_results_locale ON check_results(locale, id)`,
	},
	"postgres": {
		`CREATE TABLE IF NOT EXISTS check_runs (
			run_id      VARCHAR(36) PRIMARY KEY,
			engine      VARCHAR(32) NOT NULL,
			started_at  TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			passed      BOOLEAN NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS check_results (
			id             BIGSERIAL PRIMARY KEY,
			run_id         VARCHAR(36) NOT NULL REFERENCES check_runs(run_id) ON DELETE CASCADE,
			position       INTEGER NOT NULL,
			locale         VARCHAR(35) NOT NULL,
			url            TEXT NOT NULL,
			expected_title TEXT NOT NULL,
			actual_title   TEXT NOT NULL,
			passed         BOOLEAN NOT NULL,
			error          TEXT NOT NULL DEFAULT '',
			kind           VARCHAR(16) NOT NULL DEFAULT '',
			screenshot     TEXT NOT NULL DEFAULT '',
			duration_ns    BIGINT NOT NULL,
			checked_at     TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_check_results_locale ON check_results(locale, id)`,
	},
	"mysql": {
		`CREATE TABLE IF NOT EXISTS check_runs (
			run_id      VARCHAR(36) PRIMARY KEY,
			engine      VARCHAR(32) NOT NULL,
			started_at  DATETIME(6) NOT NULL,
			finished_at DATETIME(6) NOT NULL,
			passed      BOOLEAN NOT NULL
		) CHARACTER SET utf8mb4`,
		`CREATE TABLE IF NOT EXISTS check_results (
			id             BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id         VARCHAR(36) NOT NULL,
			position       INT NOT NULL,
			locale         VARCHAR(35) NOT NULL,
			url            TEXT NOT NULL,
			expected_title TEXT NOT NULL,
			actual_title   TEXT NOT NULL,
			passed         BOOLEAN NOT NULL,
			error          TEXT NOT NULL,
			kind           VARCHAR(16) NOT NULL DEFAULT '',
			screenshot     TEXT NOT NULL,
			duration_ns    BIGINT NOT NULL,
			checked_at     DATETIME(6) NOT NULL,
			INDEX idx_check_results_locale (locale, id),
			FOREIGN KEY (run_id) REFERENCES check_runs(run_id) ON DELETE CASCADE
		) CHARACTER SET utf8mb4`,
	},
}

// ParseDSN picks the SQL driver for dsn. postgres:// and postgresql:// URLs
// go to lib/pq, mysql:// to go-sql-driver/mysql (with parseTime forced on),
// anything else is a SQLite path.
func ParseDSN(dsn string) (driver, conn string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn
	case strings.HasPrefix(dsn, "mysql://"):
		conn = strings.TrimPrefix(dsn, "mysql://")
		if !strings.Contains(conn, "parseTime=") {
			sep := "?"
			if strings.Contains(conn, "?") {
				sep = "&"
			}
			conn += sep + "parseTime=true"
		}
		return "mysql", conn
	}
	return "sqlite3", strings.TrimPrefix(dsn, "sqlite://")
}

// ErrNoRuns is returned when the store holds no run yet.
var ErrNoRuns = errors.New("no runs recorded")

// Store is a SQL-backed run history.
type Store struct {
	db *sqlx.DB
}

// Open connects to the database named by dsn (see ParseDSN; ":memory:" for
// tests) and creates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	driver, conn := ParseDSN(dsn)
	db, err := sqlx.ConnectContext(ctx, driver, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s history database: %w", driver, err)
	}

	if driver == "sqlite3" {
		// SQLite serializes writers; one connection also keeps :memory: shared.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}
	for _, stmt := range schemas[driver] {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create history schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Driver names the SQL driver in use.
func (s *Store) Driver() string {
	return s.db.DriverName()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type runRow struct {
	RunID      string    `db:"run_id"`
	Engine     string    `db:"engine"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
	Passed     bool      `db:"passed"`
}

type resultRow struct {
	RunID       string    `db:"run_id"`
	Position    int       `db:"position"`
	Locale      string    `db:"locale"`
	URL         string    `db:"url"`
	Expected    string    `db:"expected_title"`
	ActualTitle string    `db:"actual_title"`
	Passed      bool      `db:"passed"`
	Error       string    `db:"error"`
	Kind        string    `db:"kind"`
	Screenshot  string    `db:"screenshot"`
	DurationNS  int64     `db:"duration_ns"`
	CheckedAt   time.Time `db:"checked_at"`
}

const resultColumns = `run_id, position, locale, url, expected_title, actual_title,
	passed, error, kind, screenshot, duration_ns, checked_at`

func (r resultRow) result() report.Result {
	return report.Result{
		Locale:      r.Locale,
		URL:         r.URL,
		Expected:    r.Expected,
		ActualTitle: r.ActualTitle,
		Passed:      r.Passed,
		Error:       r.Error,
		Kind:        report.Kind(r.Kind),
		Screenshot:  r.Screenshot,
		Duration:    time.Duration(r.DurationNS),
		CheckedAt:   r.CheckedAt.UTC(),
	}
}

// Record stores a finished report in one transaction.
func (s *Store) Record(ctx context.Context, rep *report.Report) error {
	if rep == nil {
		return errors.New("nil report")
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	run := runRow{
		RunID:      rep.RunID,
		Engine:     rep.Engine,
		StartedAt:  rep.StartedAt,
		FinishedAt: rep.FinishedAt,
		Passed:     rep.Passed(),
	}
	if _, err := tx.NamedExecContext(ctx, `INSERT INTO check_runs (run_id, engine, started_at, finished_at, passed)
		VALUES (:run_id, :engine, :started_at, :finished_at, :passed)`, run); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", rep.RunID, err)
	}

	for i, res := range rep.Results {
		row := resultRow{
			RunID:       rep.RunID,
			Position:    i,
			Locale:      res.Locale,
			URL:         res.URL,
			Expected:    res.Expected,
			ActualTitle: res.ActualTitle,
			Passed:      res.Passed,
			Error:       res.Error,
			Kind:        string(res.Kind),
			Screenshot:  res.Screenshot,
			DurationNS:  int64(res.Duration),
			CheckedAt:   res.CheckedAt,
		}
		if row.CheckedAt.IsZero() {
			row.CheckedAt = rep.StartedAt
		}
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO check_results
			(run_id, position, locale, url, expected_title, actual_title, passed, error, kind, screenshot, duration_ns, checked_at)
			VALUES (:run_id, :position, :locale, :url, :expected_title, :actual_title, :passed, :error, :kind, :screenshot, :duration_ns, :checked_at)`, row); err != nil {
			return fmt.Errorf("failed to insert result for %s: %w", res.Locale, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", rep.RunID, err)
	}
	return nil
}

// LatestRun loads the most recently started run with its results.
func (s *Store) LatestRun(ctx context.Context) (*report.Report, error) {
	var run runRow
	err := s.db.GetContext(ctx, &run, `SELECT run_id, engine, started_at, finished_at, passed
		FROM check_runs ORDER BY started_at DESC, finished_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest run: %w", err)
	}

	var rows []resultRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT `+resultColumns+`
		FROM check_results WHERE run_id = ? ORDER BY position`), run.RunID); err != nil {
		return nil, fmt.Errorf("failed to load results for run %s: %w", run.RunID, err)
	}

	rep := &report.Report{
		RunID:      run.RunID,
		Engine:     run.Engine,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Results:    make([]report.Result, 0, len(rows)),
	}
	for _, row := range rows {
		rep.Results = append(rep.Results, row.result())
	}
	return rep, nil
}

// LocaleHistory returns up to limit results for locale, newest first.
func (s *Store) LocaleHistory(ctx context.Context, locale string, limit int) ([]report.Result, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []resultRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT `+resultColumns+`
		FROM check_results WHERE locale = ? ORDER BY id DESC LIMIT ?`), locale, limit); err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", locale, err)
	}
	out := make([]report.Result, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.result())
	}
	return out, nil
}
