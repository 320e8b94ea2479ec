// Package store writes per-turn diagnostics to Postgres. Transcript text is never stored.
package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Skufu/pillscope/internal/conversation"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS analysis_turns (
	id          BIGSERIAL PRIMARY KEY,
	session_id  TEXT        NOT NULL,
	kind        TEXT        NOT NULL,
	latency_ms  BIGINT      NOT NULL,
	cause       TEXT        NOT NULL DEFAULT '',
	recorded_at TIMESTAMPTZ NOT NULL
)`

const insertTurnSQL = `INSERT INTO analysis_turns (session_id, kind, latency_ms, cause, recorded_at)
VALUES ($1, $2, $3, $4, $5)`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres records turns into the analysis_turns table.
type Postgres struct {
	pool *pgxpool.Pool
	db   execer
}

// Connect opens a pool, checks it with a ping and makes sure the table exists.
func Connect(ctx context.Context, url string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse db url")
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create pool")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping db")
	}

	p := &Postgres{pool: pool, db: pool}
	if err := p.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// EnsureSchema creates the analysis_turns table when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaSQL); err != nil {
		return errors.Wrap(err, "create analysis_turns")
	}
	return nil
}

// RecordTurn implements conversation.Recorder.
func (p *Postgres) RecordTurn(ctx context.Context, t conversation.Turn) error {
	_, err := p.db.Exec(ctx, insertTurnSQL,
		t.SessionID,
		string(t.Kind),
		t.Latency.Milliseconds(),
		t.Cause,
		t.At.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "insert analysis turn")
	}
	return nil
}

// Ping checks the pool. It backs the readiness probe.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}
