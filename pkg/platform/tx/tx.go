// Package tx carries a SQL transaction through the context so the artifact
// and client stores can join a caller-managed transaction without changing
// their signatures. The orchestrator's TxRunner opens the transaction; the
// Postgres stores pick it up via From and fall back to the plain pool
// otherwise.
package tx

import (
	"context"
	"database/sql"
)

// ctxKey is unexported so only this package can place the transaction.
type ctxKey struct{}

// WithTx returns a context carrying the given transaction. A nil
// transaction leaves ctx untouched.
func WithTx(ctx context.Context, sqlTx *sql.Tx) context.Context {
	if sqlTx == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, sqlTx)
}

// From reports the transaction carried by ctx, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	sqlTx, ok := ctx.Value(ctxKey{}).(*sql.Tx)
	return sqlTx, ok
}
