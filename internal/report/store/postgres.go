package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	"sanitrack/internal/report/models"
	id "sanitrack/pkg/domain"
	"sanitrack/pkg/platform/sentinel"
)

// PostgresStore persists reports in PostgreSQL. Reports are immutable:
// there is no UPDATE statement in this file on purpose.
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

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const reportColumns = `id, user_id, category, latitude, longitude, gps_accuracy,
	captured_at, photo_urls, video_url, description, anonymous, created_at`

func (s *PostgresStore) Create(ctx context.Context, r *models.Report) error {
	query := `
		INSERT INTO reports (` + reportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11, $12)
	`
	var photoURLs any
	if len(r.PhotoURLs) > 0 {
		encoded, err := json.Marshal(r.PhotoURLs)
		if err != nil {
			return fmt.Errorf("marshal photo urls: %w", err)
		}
		photoURLs = encoded
	}
	_, err := s.db.ExecContext(ctx, query,
		r.ID.String(), r.OwnerID.String(), string(r.Category),
		r.Latitude, r.Longitude, r.GPSAccuracy, r.CapturedAt,
		photoURLs, r.VideoURL, r.Description, r.Anonymous, r.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, reportID id.ReportID) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	r, err := scanReport(s.db.QueryRowContext(ctx, query, reportID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find report: %w", err)
	}
	return r, nil
}

// ListByOwner returns one citizen's reports, newest first, filtered and
// paginated, with the unpaginated total.
func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID id.UserID, filter models.ListFilter, limit, offset int) ([]*models.Report, int, error) {
	where := sq.And{sq.Eq{"user_id": ownerID.String()}}
	if filter.Category != "" {
		where = append(where, sq.Eq{"category": string(filter.Category)})
	}
	if !filter.From.IsZero() {
		where = append(where, sq.GtOrEq{"created_at": filter.From})
	}
	if !filter.To.IsZero() {
		where = append(where, sq.LtOrEq{"created_at": filter.To})
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("reports").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build report count query: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}

	builder := psql.Select(reportColumns).From("reports").Where(where).
		OrderBy("created_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build report list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan report row: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate report rows: %w", err)
	}
	return reports, total, nil
}

// AggregateByLocation groups reports inside the bounding box by exact
// coordinate and returns per-coordinate counts.
func (s *PostgresStore) AggregateByLocation(ctx context.Context, box models.BoundingBox, category models.Category) ([]models.LocationBucket, error) {
	builder := psql.Select("latitude", "longitude", "COUNT(*)").
		From("reports").
		Where(sq.And{
			sq.GtOrEq{"latitude": box.MinLat}, sq.LtOrEq{"latitude": box.MaxLat},
			sq.GtOrEq{"longitude": box.MinLon}, sq.LtOrEq{"longitude": box.MaxLon},
		}).
		GroupBy("latitude", "longitude").
		OrderBy("latitude", "longitude")
	if category != "" {
		builder = builder.Where(sq.Eq{"category": string(category)})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build location query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate report locations: %w", err)
	}
	defer rows.Close()

	var buckets []models.LocationBucket
	for rows.Next() {
		var b models.LocationBucket
		if err := rows.Scan(&b.Latitude, &b.Longitude, &b.Count); err != nil {
			return nil, fmt.Errorf("scan location row: %w", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate location rows: %w", err)
	}
	return buckets, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var (
		r              models.Report
		rawID, rawUser string
		category       string
		gpsAccuracy    sql.NullInt64
		photoURLs      []byte
		videoURL       sql.NullString
		description    sql.NullString
	)
	err := row.Scan(&rawID, &rawUser, &category, &r.Latitude, &r.Longitude,
		&gpsAccuracy, &r.CapturedAt, &photoURLs, &videoURL, &description,
		&r.Anonymous, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	reportID, err := id.ParseReportID(rawID)
	if err != nil {
		return nil, err
	}
	ownerID, err := id.ParseUserID(rawUser)
	if err != nil {
		return nil, err
	}
	r.ID = reportID
	r.OwnerID = ownerID
	r.Category = models.Category(category)
	if gpsAccuracy.Valid {
		acc := int(gpsAccuracy.Int64)
		r.GPSAccuracy = &acc
	}
	if len(photoURLs) > 0 {
		if err := json.Unmarshal(photoURLs, &r.PhotoURLs); err != nil {
			return nil, fmt.Errorf("unmarshal photo urls: %w", err)
		}
	}
	r.VideoURL = videoURL.String
	r.Description = description.String
	return &r, nil
}
