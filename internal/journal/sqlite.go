package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/form16-extractor/constants"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS extract_jobs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	filename    TEXT NOT NULL,
	status      TEXT NOT NULL,
	error_code  TEXT NOT NULL DEFAULT '',
	model       TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	finished_at INTEGER,
	duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS extract_jobs_started_at ON extract_jobs (started_at);`

// SQLite keeps the journal in a sqlite file; timestamps are unix millis.
type SQLite struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

func OpenSQLite(ctx context.Context, dsn string, logger *zap.Logger) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	// one writer; also keeps ":memory:" databases on a single connection
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	logger.Info("journal.sqlite.ready", zap.String("dsn", dsn))
	return &SQLite{db: db, log: logger, now: time.Now}, nil
}

func (s *SQLite) Start(ctx context.Context, kind constants.InputKind, filename string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extract_jobs (id, kind, filename, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id.String(), string(kind), filename, string(constants.JobStatusRunning), s.now().UnixMilli())
	if err != nil {
		s.log.Error("journal.start.error", zap.String("filename", filename), zap.Error(err))
		return uuid.Nil, fmt.Errorf("insert extract job: %w", err)
	}
	return id, nil
}

func (s *SQLite) Finish(ctx context.Context, id uuid.UUID, status constants.JobStatus, errorCode, model string) error {
	now := s.now().UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`UPDATE extract_jobs
		    SET status = ?, error_code = ?, model = ?, finished_at = ?, duration_ms = ? - started_at
		  WHERE id = ?`,
		string(status), errorCode, model, now, now, id.String())
	if err != nil {
		s.log.Error("journal.finish.error", zap.String("job_id", id.String()), zap.Error(err))
		return fmt.Errorf("update extract job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("extract job %s not found", id)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.From != nil {
		where = append(where, "started_at >= ?")
		args = append(args, f.From.UnixMilli())
	}
	if f.To != nil {
		where = append(where, "started_at < ?")
		args = append(args, f.To.UnixMilli())
	}
	q := `SELECT id, kind, filename, status, error_code, model, started_at, finished_at, duration_ms FROM extract_jobs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY started_at DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query extract jobs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                Entry
			id, kind, status string
			started          int64
			finished         sql.NullInt64
		)
		if err := rows.Scan(&id, &kind, &e.Filename, &status, &e.ErrorCode, &e.Model, &started, &finished, &e.DurationMS); err != nil {
			return nil, fmt.Errorf("scan extract job: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse job id %q: %w", id, err)
		}
		e.Kind = constants.InputKind(kind)
		e.Status = constants.JobStatus(status)
		e.StartedAt = time.UnixMilli(started).UTC()
		if finished.Valid {
			t := time.UnixMilli(finished.Int64).UTC()
			e.FinishedAt = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// HealthCheck pings the database handle.
func (s *SQLite) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := s.db.PingContext(ctx); err != nil {
		return errors.Join(errors.New("journal unreachable"), err)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }
