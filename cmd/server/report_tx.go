package main

import (
	"context"
	"database/sql"
	"time"

	casestore "sanitrack/internal/cases/store"
	incentivestore "sanitrack/internal/incentive/store"
	reportservice "sanitrack/internal/report/service"
	reportstore "sanitrack/internal/report/store"
	dErrors "sanitrack/pkg/domain-errors"
)

const defaultReportTxTimeout = 5 * time.Second

// reportPostgresTx creates the report, its case, and its incentive record
// in one database transaction.
type reportPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newReportPostgresTx(db *sql.DB, timeout time.Duration) *reportPostgresTx {
	return &reportPostgresTx{db: db, timeout: timeout}
}

func (t *reportPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context, stores reportservice.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultReportTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stores := reportservice.Stores{
		Reports:    reportstore.NewPostgresTx(tx),
		Cases:      casestore.NewPostgresTx(tx),
		Incentives: incentivestore.NewPostgresTx(tx),
	}
	if err := fn(ctx, stores); err != nil {
		return err
	}

	return tx.Commit()
}
