// Package journal records request metadata for every extraction run. It never
// stores document bytes or extracted field values.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/form16-extractor/constants"
)

// Entry is one journaled extraction run.
type Entry struct {
	ID         uuid.UUID
	Kind       constants.InputKind
	Filename   string
	Status     constants.JobStatus
	ErrorCode  string
	Model      string
	StartedAt  time.Time
	FinishedAt *time.Time
	DurationMS int64
}

// Filter narrows List. Nil bounds are open; Limit <= 0 means no limit.
type Filter struct {
	From  *time.Time
	To    *time.Time
	Limit int
}

type Store interface {
	Start(ctx context.Context, kind constants.InputKind, filename string) (uuid.UUID, error)
	Finish(ctx context.Context, id uuid.UUID, status constants.JobStatus, errorCode, model string) error
	List(ctx context.Context, f Filter) ([]Entry, error)
	HealthCheck(ctx context.Context, timeout time.Duration) error
	Close() error
}

type Config struct {
	Driver string // none | sqlite | postgres
	DSN    string
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "", "none":
		return Noop{}, nil
	case "sqlite":
		return OpenSQLite(ctx, cfg.DSN, logger)
	case "postgres":
		return OpenPostgres(ctx, PostgresConfig{DSN: cfg.DSN, MaxConns: 4, DialTimeout: 10 * time.Second}, logger)
	default:
		return nil, fmt.Errorf("unknown journal driver %q", cfg.Driver)
	}
}

// Noop discards everything.
type Noop struct{}

func (Noop) Start(context.Context, constants.InputKind, string) (uuid.UUID, error) {
	return uuid.New(), nil
}
func (Noop) Finish(context.Context, uuid.UUID, constants.JobStatus, string, string) error {
	return nil
}
func (Noop) List(context.Context, Filter) ([]Entry, error) { return nil, nil }
func (Noop) HealthCheck(context.Context, time.Duration) error { return nil }
func (Noop) Close() error { return nil }
