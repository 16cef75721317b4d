package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"sanitrack/internal/incentive/models"
	id "sanitrack/pkg/domain"
	"sanitrack/pkg/platform/sentinel"
)

// PostgresStore persists incentive records in PostgreSQL. The audit log is
// a JSONB array rewritten whole on update; updates only happen inside a
// workflow transaction that already serializes the owning case.
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

// NewPostgresTx binds the store to an open transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

const incentiveColumns = `id, user_id, report_id, case_id, points, status, reward_type, redeemed_at, audit_log, created_at`

func (s *PostgresStore) Create(ctx context.Context, inc *models.Incentive) error {
	auditLog, err := json.Marshal(inc.AuditLog)
	if err != nil {
		return fmt.Errorf("marshal audit log: %w", err)
	}
	query := `
		INSERT INTO incentives (` + incentiveColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(ctx, query,
		inc.ID.String(), inc.CitizenID.String(), inc.ReportID.String(),
		caseIDOrNil(inc.CaseID), inc.Points, string(inc.Status),
		rewardTypeOrNil(inc.RewardType), inc.RedeemedAt, auditLog, inc.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create incentive: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, incentiveID id.IncentiveID) (*models.Incentive, error) {
	query := `SELECT ` + incentiveColumns + ` FROM incentives WHERE id = $1`
	return s.findOne(ctx, query, incentiveID.String())
}

func (s *PostgresStore) FindByReportID(ctx context.Context, reportID id.ReportID) (*models.Incentive, error) {
	query := `SELECT ` + incentiveColumns + ` FROM incentives WHERE report_id = $1`
	return s.findOne(ctx, query, reportID.String())
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.Incentive, error) {
	inc, err := scanIncentive(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find incentive: %w", err)
	}
	return inc, nil
}

func (s *PostgresStore) Update(ctx context.Context, inc *models.Incentive) error {
	auditLog, err := json.Marshal(inc.AuditLog)
	if err != nil {
		return fmt.Errorf("marshal audit log: %w", err)
	}
	query := `
		UPDATE incentives
		SET case_id = $2, points = $3, status = $4, reward_type = $5, redeemed_at = $6, audit_log = $7
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		inc.ID.String(), caseIDOrNil(inc.CaseID), inc.Points, string(inc.Status),
		rewardTypeOrNil(inc.RewardType), inc.RedeemedAt, auditLog,
	)
	if err != nil {
		return fmt.Errorf("update incentive: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// ListByCitizen returns a citizen's incentive records, newest first.
func (s *PostgresStore) ListByCitizen(ctx context.Context, citizenID id.UserID) ([]*models.Incentive, error) {
	query := `SELECT ` + incentiveColumns + ` FROM incentives WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, citizenID.String())
	if err != nil {
		return nil, fmt.Errorf("list incentives: %w", err)
	}
	defer rows.Close()

	var incentives []*models.Incentive
	for rows.Next() {
		inc, err := scanIncentive(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incentive row: %w", err)
		}
		incentives = append(incentives, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incentive rows: %w", err)
	}
	return incentives, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncentive(row rowScanner) (*models.Incentive, error) {
	var (
		inc                         models.Incentive
		rawID, rawCitizen, rawReport string
		rawCase                     sql.NullString
		status                      string
		rewardType                  sql.NullString
		redeemedAt                  sql.NullTime
		auditLog                    []byte
	)
	err := row.Scan(&rawID, &rawCitizen, &rawReport, &rawCase, &inc.Points,
		&status, &rewardType, &redeemedAt, &auditLog, &inc.CreatedAt)
	if err != nil {
		return nil, err
	}

	incentiveID, err := id.ParseIncentiveID(rawID)
	if err != nil {
		return nil, err
	}
	citizenID, err := id.ParseUserID(rawCitizen)
	if err != nil {
		return nil, err
	}
	reportID, err := id.ParseReportID(rawReport)
	if err != nil {
		return nil, err
	}
	inc.ID = incentiveID
	inc.CitizenID = citizenID
	inc.ReportID = reportID
	inc.Status = models.Status(status)

	if rawCase.Valid {
		caseID, err := id.ParseCaseID(rawCase.String)
		if err != nil {
			return nil, err
		}
		inc.CaseID = &caseID
	}
	if rewardType.Valid {
		rt := models.RewardType(rewardType.String)
		inc.RewardType = &rt
	}
	if redeemedAt.Valid {
		t := redeemedAt.Time
		inc.RedeemedAt = &t
	}

	inc.AuditLog = []models.AuditEntry{}
	if len(auditLog) > 0 {
		if err := json.Unmarshal(auditLog, &inc.AuditLog); err != nil {
			return nil, fmt.Errorf("unmarshal audit log: %w", err)
		}
	}
	return &inc, nil
}

func caseIDOrNil(v *id.CaseID) any {
	if v == nil {
		return nil
	}
	return v.String()
}

func rewardTypeOrNil(v *models.RewardType) any {
	if v == nil {
		return nil
	}
	return string(*v)
}
