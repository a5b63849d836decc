package postgres

import (
	"context"
	"database/sql"
	"time"

	dErrors "oidcbridge/pkg/domain-errors"
	"oidcbridge/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// TxRunner wraps multi-write operations in one SQL transaction. The
// transaction travels in the context so stores pick it up transparently.
type TxRunner struct {
	db      *sql.DB
	timeout time.Duration
}

// NewTxRunner constructs a transaction runner over the given database.
func NewTxRunner(db *sql.DB) *TxRunner {
	return &TxRunner{db: db}
}

// RunInTx executes fn inside a transaction, committing on success and
// rolling back on error. A deadline is applied when the caller brought
// none.
func (t *TxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(tx.WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	return sqlTx.Commit()
}
