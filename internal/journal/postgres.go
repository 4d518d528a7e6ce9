package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/form16-extractor/constants"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS extract_jobs (
	id          UUID PRIMARY KEY,
	kind        TEXT NOT NULL,
	filename    TEXT NOT NULL,
	status      TEXT NOT NULL,
	error_code  TEXT NOT NULL DEFAULT '',
	model       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ,
	duration_ms BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS extract_jobs_started_at ON extract_jobs (started_at);`

type PostgresConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// Postgres keeps the journal in a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func OpenPostgres(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("journal.postgres.connecting")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "form16-extractor"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("journal.postgres.connect_error", zap.Error(err))
		return nil, err
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	logger.Info("journal.postgres.ready")
	return &Postgres{pool: pool, log: logger}, nil
}

func (p *Postgres) Start(ctx context.Context, kind constants.InputKind, filename string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := p.pool.Exec(ctx,
		`INSERT INTO extract_jobs (id, kind, filename, status) VALUES ($1, $2, $3, $4)`,
		id, string(kind), filename, string(constants.JobStatusRunning))
	if err != nil {
		p.log.Error("journal.start.error", zap.String("filename", filename), zap.Error(err))
		return uuid.Nil, fmt.Errorf("insert extract job: %w", err)
	}
	return id, nil
}

func (p *Postgres) Finish(ctx context.Context, id uuid.UUID, status constants.JobStatus, errorCode, model string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE extract_jobs
		    SET status = $2, error_code = $3, model = $4, finished_at = now(),
		        duration_ms = (EXTRACT(EPOCH FROM (now() - started_at)) * 1000)::BIGINT
		  WHERE id = $1`,
		id, string(status), errorCode, model)
	if err != nil {
		p.log.Error("journal.finish.error", zap.String("job_id", id.String()), zap.Error(err))
		return fmt.Errorf("update extract job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("extract job %s not found", id)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.From != nil {
		args = append(args, *f.From)
		where = append(where, fmt.Sprintf("started_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where = append(where, fmt.Sprintf("started_at < $%d", len(args)))
	}
	q := `SELECT id, kind, filename, status, error_code, model, started_at, finished_at, duration_ms FROM extract_jobs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY started_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query extract jobs: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var (
			e            Entry
			kind, status string
		)
		err := row.Scan(&e.ID, &kind, &e.Filename, &status, &e.ErrorCode, &e.Model, &e.StartedAt, &e.FinishedAt, &e.DurationMS)
		e.Kind = constants.InputKind(kind)
		e.Status = constants.JobStatus(status)
		return e, err
	})
}

// HealthCheck pings the pool.
func (p *Postgres) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := p.pool.Ping(ctx); err != nil {
		return errors.Join(errors.New("journal unreachable"), err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
