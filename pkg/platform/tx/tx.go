// Package tx carries a SQL transaction through context so the ledger write
// and its outbox append share one unit of work without the stores knowing
// about each other.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner executes a function inside one unit of work. SQL-backed deployments
// use SQLRunner; memory-backed deployments use NopRunner.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner begins a database transaction, injects it into context, and
// commits when fn succeeds.
type SQLRunner struct {
	DB *sql.DB
}

// RunInTx implements Runner.
func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	dbtx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(WithTx(ctx, dbtx)); err != nil {
		_ = dbtx.Rollback()
		return err
	}
	return dbtx.Commit()
}

// NopRunner runs fn directly. In-memory stores are individually atomic, so
// there is no transaction to coordinate.
type NopRunner struct{}

// RunInTx implements Runner.
func (NopRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
