package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	"sanitrack/internal/cases/models"
	id "sanitrack/pkg/domain"
	"sanitrack/pkg/platform/sentinel"
)

// PostgresStore persists cases in PostgreSQL. Pure I/O; transition rules
// live in the models and the workflow service. Status history is stored as
// a JSONB array and rewritten whole on update; appends only ever happen
// under the row lock taken by Execute, so no entries can be lost.
type PostgresStore struct {
	db querier
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx binds the store to an open transaction. Execute requires a
// tx-bound store: the FOR UPDATE lock must live inside the caller's
// transaction to serialize concurrent transitions on the same case.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const caseColumns = `id, report_id, status, assigned_to, approved_by, approval_notes,
	approved_at, completed_at, completion_evidence, status_history, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, c *models.Case) error {
	history, err := json.Marshal(c.StatusHistory)
	if err != nil {
		return fmt.Errorf("marshal status history: %w", err)
	}
	query := `
		INSERT INTO cases (` + caseColumns + `)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, NULLIF($9, ''), $10, $11, $12)
	`
	_, err = s.db.ExecContext(ctx, query,
		c.ID.String(), c.ReportID.String(), string(c.Status),
		userIDOrNil(c.AssignedTo), userIDOrNil(c.ApprovedBy), c.ApprovalNotes,
		c.ApprovedAt, c.CompletedAt, c.CompletionEvidence,
		history, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create case: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, caseID id.CaseID) (*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1`
	return s.findOne(ctx, query, caseID.String())
}

func (s *PostgresStore) FindByReportID(ctx context.Context, reportID id.ReportID) (*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE report_id = $1`
	return s.findOne(ctx, query, reportID.String())
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.Case, error) {
	c, err := scanCase(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find case: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Update(ctx context.Context, c *models.Case) error {
	history, err := json.Marshal(c.StatusHistory)
	if err != nil {
		return fmt.Errorf("marshal status history: %w", err)
	}
	query := `
		UPDATE cases
		SET status = $2, assigned_to = $3, approved_by = $4, approval_notes = NULLIF($5, ''),
		    approved_at = $6, completed_at = $7, completion_evidence = NULLIF($8, ''),
		    status_history = $9, updated_at = $10
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		c.ID.String(), string(c.Status),
		userIDOrNil(c.AssignedTo), userIDOrNil(c.ApprovedBy), c.ApprovalNotes,
		c.ApprovedAt, c.CompletedAt, c.CompletionEvidence,
		history, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Execute runs an atomic validate-then-mutate on one case. The row is
// loaded with FOR UPDATE, so within the surrounding transaction no
// concurrent transition can interleave between the precondition check and
// the write. The store must be tx-bound (NewPostgresTx).
func (s *PostgresStore) Execute(ctx context.Context, caseID id.CaseID,
	validate func(*models.Case) error,
	mutate func(*models.Case),
) (*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1 FOR UPDATE`
	c, err := scanCase(s.db.QueryRowContext(ctx, query, caseID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock case: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, err
	}
	mutate(c)

	if err := s.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns cases matching any of the given statuses (all when empty),
// newest first, with pagination and the unpaginated total.
func (s *PostgresStore) List(ctx context.Context, statuses []models.Status, limit, offset int) ([]*models.Case, int, error) {
	where := sq.Eq{}
	if len(statuses) > 0 {
		raw := make([]string, len(statuses))
		for i, st := range statuses {
			raw[i] = string(st)
		}
		where["status"] = raw
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("cases").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build case count query: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count cases: %w", err)
	}

	builder := psql.Select(caseColumns).From("cases").Where(where).
		OrderBy("created_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build case list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var cases []*models.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan case row: %w", err)
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate case rows: %w", err)
	}
	return cases, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*models.Case, error) {
	var (
		c                  models.Case
		rawID, rawReport   string
		status             string
		assignedTo         sql.NullString
		approvedBy         sql.NullString
		approvalNotes      sql.NullString
		approvedAt         sql.NullTime
		completedAt        sql.NullTime
		completionEvidence sql.NullString
		history            []byte
	)
	err := row.Scan(&rawID, &rawReport, &status, &assignedTo, &approvedBy,
		&approvalNotes, &approvedAt, &completedAt, &completionEvidence,
		&history, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	caseID, err := id.ParseCaseID(rawID)
	if err != nil {
		return nil, err
	}
	reportID, err := id.ParseReportID(rawReport)
	if err != nil {
		return nil, err
	}
	c.ID = caseID
	c.ReportID = reportID
	c.Status = models.Status(status)
	c.ApprovalNotes = approvalNotes.String
	c.CompletionEvidence = completionEvidence.String

	if c.AssignedTo, err = nullableUserID(assignedTo); err != nil {
		return nil, err
	}
	if c.ApprovedBy, err = nullableUserID(approvedBy); err != nil {
		return nil, err
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		c.ApprovedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		c.CompletedAt = &t
	}

	c.StatusHistory = []models.HistoryEntry{}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &c.StatusHistory); err != nil {
			return nil, fmt.Errorf("unmarshal status history: %w", err)
		}
	}
	return &c, nil
}

func nullableUserID(v sql.NullString) (*id.UserID, error) {
	if !v.Valid {
		return nil, nil
	}
	parsed, err := id.ParseUserID(v.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func userIDOrNil(v *id.UserID) any {
	if v == nil {
		return nil
	}
	return v.String()
}
