package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/autocoder/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *rand.Rand
}

// Open opens the ledger inside a logs directory.
func Open(logsDir string) (*SQLiteStore, error) {
	return NewSQLiteStore(filepath.Join(logsDir, FileName))
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		project     TEXT NOT NULL,
		model       TEXT NOT NULL,
		batch_limit INTEGER NOT NULL,
		processed   INTEGER NOT NULL DEFAULT 0,
		succeeded   INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0,
		cancelled   INTEGER NOT NULL DEFAULT 0,
		started_at  TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

	CREATE TABLE IF NOT EXISTS install_results (
		id         TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		target     TEXT NOT NULL,
		status     TEXT NOT NULL,
		error      TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_installs_kind ON install_results(kind, target);
	CREATE INDEX IF NOT EXISTS idx_installs_created ON install_results(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) RecordRun(ctx context.Context, sum *model.Summary) error {
	if sum.StartedAt.IsZero() {
		sum.StartedAt = time.Now().UTC()
	}
	if sum.FinishedAt.IsZero() {
		sum.FinishedAt = time.Now().UTC()
	}
	if sum.RunID == "" {
		sum.RunID = s.newID(sum.StartedAt)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, project, model, batch_limit, processed, succeeded, failed, cancelled, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID, sum.Project, sum.Model, sum.Limit, sum.Processed, sum.Succeeded, sum.Failed,
		boolInt(sum.Cancelled), formatTime(sum.StartedAt), formatTime(sum.FinishedAt))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, p ListRunsParams) ([]model.Summary, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	var where []string
	var args []interface{}
	if p.Project != "" {
		where = append(where, "project = ?")
		args = append(args, p.Project)
	}

	query := `SELECT id, project, model, batch_limit, processed, succeeded, failed, cancelled, started_at, finished_at
	          FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Summary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) RecordInstall(ctx context.Context, r *model.InstallResult) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.ID == "" {
		r.ID = s.newID(r.CreatedAt)
	}
	if r.Err != nil && r.Error == "" {
		r.Error = r.Err.Error()
	}

	var errText *string
	if r.Error != "" {
		errText = &r.Error
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO install_results (id, kind, target, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Kind, r.Target, r.Status, errText, formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert install result: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListInstalls(ctx context.Context, p ListInstallsParams) ([]model.InstallResult, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}

	var where []string
	var args []interface{}
	if p.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, p.Kind)
	}
	if p.Failed {
		where = append(where, "status = ?")
		args = append(args, model.StatusFailed)
	}

	query := `SELECT id, kind, target, status, error, created_at FROM install_results`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.InstallResult
	for rows.Next() {
		r, err := scanInstall(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (model.Summary, error) {
	var r model.Summary
	var cancelled int
	var startedAt, finishedAt string

	err := row.Scan(&r.RunID, &r.Project, &r.Model, &r.Limit, &r.Processed, &r.Succeeded, &r.Failed,
		&cancelled, &startedAt, &finishedAt)
	if err != nil {
		return r, err
	}
	r.Cancelled = cancelled != 0
	r.StartedAt, _ = time.Parse(timeLayout, startedAt)
	r.FinishedAt, _ = time.Parse(timeLayout, finishedAt)
	return r, nil
}

func scanInstall(row scanner) (model.InstallResult, error) {
	var r model.InstallResult
	var errText sql.NullString
	var createdAt string

	if err := row.Scan(&r.ID, &r.Kind, &r.Target, &r.Status, &errText, &createdAt); err != nil {
		return r, err
	}
	if errText.Valid {
		r.Error = errText.String
	}
	r.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return r, nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
