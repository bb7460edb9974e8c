// Package tx carries a unit of work through context so stores can join the
// caller's transaction without every method taking a *sql.Tx.
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

// Runner executes fn as one atomic unit. Every store call made with the
// context passed to fn participates in the same transaction; if fn returns an
// error none of its writes are visible afterwards. Nested calls join the
// outer unit.
//
// RunReadOnly runs fn against committed state only. fn must not write; inside
// a RunInTx it sees that transaction's own writes.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	RunReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
