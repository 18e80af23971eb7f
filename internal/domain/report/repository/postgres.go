package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/report-tracker/internal/domain/report"
)

// insertLockKey serialises registry inserts across processes sharing the database.
const insertLockKey int64 = 0x7265706f727473

const uniqueViolation = "23505"

// Pool is the subset of *pgxpool.Pool the repository uses.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresReportRepository implements ReportRepository using PostgreSQL
type PostgresReportRepository struct {
	pool Pool
}

// NewPostgresReportRepository creates a new PostgreSQL report repository
func NewPostgresReportRepository(pool Pool) *PostgresReportRepository {
	return &PostgresReportRepository{pool: pool}
}

const pgExistsQuery = `
		SELECT EXISTS (
			SELECT 1 FROM reports
			WHERE source_url = $1 OR document_url = $1 OR ($2 <> '' AND file_name = $2)
		)`

// Exists checks whether a report was already ingested
func (r *PostgresReportRepository) Exists(ctx context.Context, url, fileName string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, pgExistsQuery, url, fileName).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check report existence: %w", err)
	}
	return exists, nil
}

// Insert checks and inserts inside one transaction holding an advisory lock
func (r *PostgresReportRepository) Insert(ctx context.Context, rep *report.Report) (int64, error) {
	if err := prepare(rep); err != nil {
		return 0, fmt.Errorf("invalid report: %w", err)
	}
	fileName := rep.FileName

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, insertLockKey); err != nil {
		return 0, fmt.Errorf("failed to acquire registry lock: %w", err)
	}

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reports
			WHERE source_url IN ($1, $2) OR document_url IN ($1, $2) OR file_name = $3
		)`, rep.SourceURL, rep.DocumentURL, fileName).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to check report existence: %w", err)
	}
	if exists {
		return 0, fmt.Errorf("%w: %s", report.ErrConflict, fileName)
	}

	query := `
		INSERT INTO reports (category, title, source_url, document_url, local_path, file_name, spreadsheet_path, publish_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	var id int64
	var createdAt time.Time
	err = tx.QueryRow(ctx, query,
		string(rep.Category),
		rep.Title,
		rep.SourceURL,
		rep.DocumentURL,
		rep.LocalPath,
		fileName,
		rep.SpreadsheetPath,
		rep.PublishDate,
	).Scan(&id, &createdAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, fmt.Errorf("%w: %s", report.ErrConflict, pgErr.ConstraintName)
		}
		return 0, fmt.Errorf("failed to insert report: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit report insert: %w", err)
	}

	rep.ID = id
	rep.CreatedAt = createdAt
	return id, nil
}

// Delete removes a report record
func (r *PostgresReportRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: report %d", report.ErrNotFound, id)
	}
	return nil
}

const pgSelectColumns = `id, category, title, source_url, document_url, local_path, file_name, spreadsheet_path, publish_date, created_at`

// GetByID retrieves a report by ID
func (r *PostgresReportRepository) GetByID(ctx context.Context, id int64) (*report.Report, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+pgSelectColumns+` FROM reports WHERE id = $1`, id)
	rep, err := scanPgReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: report %d", report.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report by ID: %w", err)
	}
	return rep, nil
}

// ListByCategory returns the most recently published reports of a category
func (r *PostgresReportRepository) ListByCategory(ctx context.Context, category report.Category, limit int) ([]*report.Report, error) {
	query := `SELECT ` + pgSelectColumns + `
		FROM reports
		WHERE category = $1
		ORDER BY publish_date DESC, id DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, string(category), listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var out []*report.Report
	for rows.Next() {
		rep, err := scanPgReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

// Stats aggregates counts and latest publish dates per category
func (r *PostgresReportRepository) Stats(ctx context.Context) (*report.Stats, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT category, COUNT(*), MAX(publish_date)
		FROM reports
		GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to get report stats: %w", err)
	}
	defer rows.Close()

	stats := &report.Stats{ByCategory: make(map[report.Category]report.CategoryStat)}
	for rows.Next() {
		var (
			category string
			count    int
			latest   *time.Time
		)
		if err := rows.Scan(&category, &count, &latest); err != nil {
			return nil, fmt.Errorf("failed to scan report stats: %w", err)
		}
		stats.ByCategory[report.Category(category)] = report.CategoryStat{Count: count, LatestPublish: latest}
		stats.Total += count
	}
	return stats, rows.Err()
}

func scanPgReport(row pgx.Row) (*report.Report, error) {
	var rep report.Report
	var category string
	err := row.Scan(
		&rep.ID, &category, &rep.Title, &rep.SourceURL, &rep.DocumentURL,
		&rep.LocalPath, &rep.FileName, &rep.SpreadsheetPath, &rep.PublishDate, &rep.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rep.Category = report.Category(category)
	return &rep, nil
}
