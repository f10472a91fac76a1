package main

import (
	"context"
	"time"

	"nfcattend/internal/attendance/service"
	"nfcattend/internal/attendance/store/ledger"
	"nfcattend/internal/platform/database"
	dErrors "nfcattend/pkg/domain-errors"
)

const defaultLedgerTxTimeout = 5 * time.Second

// ledgerSQLTx runs ledger mutations in one database transaction so the
// event insert and both aggregate increments commit or roll back together.
type ledgerSQLTx struct {
	db      *database.DB
	timeout time.Duration
}

func newLedgerSQLTx(db *database.DB) *ledgerSQLTx {
	return &ledgerSQLTx{db: db}
}

func (t *ledgerSQLTx) RunInTx(ctx context.Context, fn func(store service.LedgerStore) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultLedgerTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return database.Classify(err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(ledger.NewSQLTx(tx, t.db.Dialect)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return database.Classify(err)
	}
	return nil
}
