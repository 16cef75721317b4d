package main

import (
	"context"
	"database/sql"
	"time"

	casestore "sanitrack/internal/cases/store"
	incentivestore "sanitrack/internal/incentive/store"
	"sanitrack/internal/workflow"
	dErrors "sanitrack/pkg/domain-errors"
)

const defaultWorkflowTxTimeout = 5 * time.Second

// workflowPostgresTx runs case transitions and their incentive effects in
// one database transaction. The tx-bound case store locks the case row with
// SELECT ... FOR UPDATE, so concurrent transitions on one case serialize.
type workflowPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newWorkflowPostgresTx(db *sql.DB, timeout time.Duration) *workflowPostgresTx {
	return &workflowPostgresTx{db: db, timeout: timeout}
}

func (t *workflowPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context, stores workflow.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultWorkflowTxTimeout
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

	stores := workflow.Stores{
		Cases:      casestore.NewPostgresTx(tx),
		Incentives: incentivestore.NewPostgresTx(tx),
	}
	if err := fn(ctx, stores); err != nil {
		return err
	}

	return tx.Commit()
}
