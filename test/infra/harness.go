package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Harness owns the database lifecycle for a stress run: a shared DSN, a
// Postgres 16 container, or a local scratch database, in that order.
type Harness struct {
	container *PGContainer
	pool      *pgxpool.Pool
	teardown  func(context.Context) error
	dsn       string
}

// NewHarness resolves a database, applies the embedded migrations and opens a pool.
// A shared DSN gets a per-run schema so concurrent runs do not collide.
func NewHarness(ctx context.Context, overrideDSN string, maxConns int32) (*Harness, error) {
	h := &Harness{container: &PGContainer{}}
	shared := overrideDSN != "" || os.Getenv("STRESS_TEST_PG_DSN") != ""

	var err error
	switch {
	case shared, dockerAvailable(ctx):
		h.container, h.dsn, err = StartPostgres16(ctx, overrideDSN)
		if err != nil {
			return nil, fmt.Errorf("start postgres: %w", err)
		}
	default:
		h.dsn, err = InitLocalDatabase(ctx)
		if err != nil {
			return nil, fmt.Errorf("init local database: %w", err)
		}
	}

	h.pool, h.teardown, err = ApplyMigrations(ctx, h.dsn, maxConns, shared)
	if err != nil {
		_ = h.container.Terminate(ctx)
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return h, nil
}

func (h *Harness) Pool() *pgxpool.Pool {
	return h.pool
}

// DSN returns the connection string for direct connections (e.g., chaos).
func (h *Harness) DSN() string {
	return h.dsn
}

// Close tears down resources. Teardown errors are returned so callers can log them.
func (h *Harness) Close(ctx context.Context) error {
	if h.pool != nil {
		h.pool.Close()
	}
	var err error
	if h.teardown != nil {
		err = h.teardown(ctx)
	}
	if cerr := h.container.Terminate(ctx); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Reset truncates every user-owned table for a clean slate between epochs.
func (h *Harness) Reset(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, "TRUNCATE TABLE interview_events, interview_stages, applications, users CASCADE"); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}
