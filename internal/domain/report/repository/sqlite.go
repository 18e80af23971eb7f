package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/FACorreiaa/report-tracker/internal/domain/report"
)

// SQLiteReportRepository implements ReportRepository on a single SQLite file.
// The *sql.DB is expected to be opened with _txlock=immediate so that every
// transaction takes the write lock up front.
type SQLiteReportRepository struct {
	db *sql.DB
}

// NewSQLiteReportRepository creates a new SQLite report repository
func NewSQLiteReportRepository(db *sql.DB) *SQLiteReportRepository {
	return &SQLiteReportRepository{db: db}
}

// Exists checks whether a report was already ingested
func (r *SQLiteReportRepository) Exists(ctx context.Context, url, fileName string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reports
			WHERE source_url = ?1 OR document_url = ?1 OR (?2 <> '' AND file_name = ?2)
		)`, url, fileName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check report existence: %w", err)
	}
	return exists, nil
}

// Insert checks and inserts inside one immediate transaction
func (r *SQLiteReportRepository) Insert(ctx context.Context, rep *report.Report) (int64, error) {
	if err := prepare(rep); err != nil {
		return 0, fmt.Errorf("invalid report: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reports
			WHERE source_url IN (?1, ?2) OR document_url IN (?1, ?2) OR file_name = ?3
		)`, rep.SourceURL, rep.DocumentURL, rep.FileName).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to check report existence: %w", err)
	}
	if exists {
		return 0, fmt.Errorf("%w: %s", report.ErrConflict, rep.FileName)
	}

	createdAt := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO reports (category, title, source_url, document_url, local_path, file_name, spreadsheet_path, publish_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rep.Category),
		rep.Title,
		rep.SourceURL,
		rep.DocumentURL,
		rep.LocalPath,
		rep.FileName,
		rep.SpreadsheetPath,
		rep.PublishDate.UTC(),
		createdAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, fmt.Errorf("%w: %s", report.ErrConflict, rep.FileName)
		}
		return 0, fmt.Errorf("failed to insert report: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read report id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit report insert: %w", err)
	}

	rep.ID = id
	rep.CreatedAt = createdAt
	return id, nil
}

// Delete removes a report record
func (r *SQLiteReportRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: report %d", report.ErrNotFound, id)
	}
	return nil
}

const sqliteSelectColumns = `id, category, title, source_url, document_url, local_path, file_name, spreadsheet_path, publish_date, created_at`

// GetByID retrieves a report by ID
func (r *SQLiteReportRepository) GetByID(ctx context.Context, id int64) (*report.Report, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteSelectColumns+` FROM reports WHERE id = ?`, id)
	rep, err := scanSQLiteReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: report %d", report.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report by ID: %w", err)
	}
	return rep, nil
}

// ListByCategory returns the most recently published reports of a category
func (r *SQLiteReportRepository) ListByCategory(ctx context.Context, category report.Category, limit int) ([]*report.Report, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sqliteSelectColumns+`
		FROM reports
		WHERE category = ?
		ORDER BY publish_date DESC, id DESC
		LIMIT ?`, string(category), listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var out []*report.Report
	for rows.Next() {
		rep, err := scanSQLiteReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

// Stats aggregates counts and latest publish dates per category
func (r *SQLiteReportRepository) Stats(ctx context.Context) (*report.Stats, error) {
	rows, err := r.db.QueryContext(ctx, `
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
			latest   sql.NullString
		)
		if err := rows.Scan(&category, &count, &latest); err != nil {
			return nil, fmt.Errorf("failed to scan report stats: %w", err)
		}
		stat := report.CategoryStat{Count: count}
		if latest.Valid {
			if t, ok := parseSQLiteTime(latest.String); ok {
				stat.LatestPublish = &t
			}
		}
		stats.ByCategory[report.Category(category)] = stat
		stats.Total += count
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteReport(row rowScanner) (*report.Report, error) {
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

// parseSQLiteTime parses aggregate results, which lose the column's declared type.
func parseSQLiteTime(s string) (time.Time, bool) {
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
