package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/report-tracker/internal/domain/report"
)

func sampleReport() *report.Report {
	return &report.Report{
		Category:    report.CategoryPassenger,
		Title:       "Passenger car registrations September 2025",
		SourceURL:   "https://www.acea.auto/files/Press_release_car_registrations_September_2025.pdf",
		DocumentURL: "https://www.acea.auto/files/Press_release_car_registrations_September_2025.pdf",
		LocalPath:   "pdfs/PC/Press_release_car_registrations_September_2025.pdf",
		PublishDate: time.Date(2025, time.October, 21, 0, 0, 0, 0, time.UTC),
	}
}

func TestPostgresInsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rep := sampleReport()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs(insertLockKey).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(rep.SourceURL, rep.DocumentURL, "Press_release_car_registrations_September_2025.pdf").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO reports`).
		WithArgs("PC", rep.Title, rep.SourceURL, rep.DocumentURL, rep.LocalPath,
			"Press_release_car_registrations_September_2025.pdf", "", rep.PublishDate).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), now))
	mock.ExpectCommit()

	id, err := NewPostgresReportRepository(mock).Insert(context.Background(), rep)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, int64(7), rep.ID)
	assert.Equal(t, now, rep.CreatedAt)
	assert.Equal(t, "Press_release_car_registrations_September_2025.pdf", rep.FileName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsert_ExistingIsConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rep := sampleReport()

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs(insertLockKey).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(rep.SourceURL, rep.DocumentURL, "Press_release_car_registrations_September_2025.pdf").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err = NewPostgresReportRepository(mock).Insert(context.Background(), rep)
	assert.ErrorIs(t, err, report.ErrConflict)
	assert.Zero(t, rep.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsert_UniqueViolationIsConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rep := sampleReport()

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs(insertLockKey).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO reports`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_reports_file_name"})
	mock.ExpectRollback()

	_, err = NewPostgresReportRepository(mock).Insert(context.Background(), rep)
	assert.ErrorIs(t, err, report.ErrConflict)
	assert.Contains(t, err.Error(), "idx_reports_file_name")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsert_LockFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs(insertLockKey).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err = NewPostgresReportRepository(mock).Insert(context.Background(), sampleReport())
	require.Error(t, err)
	assert.NotErrorIs(t, err, report.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsert_InvalidReport(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rep := sampleReport()
	rep.Category = "XX"

	_, err = NewPostgresReportRepository(mock).Insert(context.Background(), rep)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("https://example.org/a.pdf", "a.pdf").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := NewPostgresReportRepository(mock).Exists(context.Background(), "https://example.org/a.pdf", "a.pdf")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, category`).
		WithArgs(int64(9)).
		WillReturnError(pgx.ErrNoRows)

	_, err = NewPostgresReportRepository(mock).GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, report.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListByCategory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	columns := []string{"id", "category", "title", "source_url", "document_url", "local_path",
		"file_name", "spreadsheet_path", "publish_date", "created_at"}

	mock.ExpectQuery(`SELECT id, category`).
		WithArgs("CV", DefaultListLimit).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow(int64(2), "CV", "Q3", "u2", "u2", "p/b.pdf", "b.pdf", "", now, now).
			AddRow(int64(1), "CV", "Q2", "u1", "u1", "p/a.pdf", "a.pdf", "x/a.xlsx", now.AddDate(0, -3, 0), now))

	reports, err := NewPostgresReportRepository(mock).ListByCategory(context.Background(), report.CategoryCommercial, 0)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, report.CategoryCommercial, reports[0].Category)
	assert.Equal(t, "x/a.xlsx", reports[1].SpreadsheetPath)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM reports`).
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM reports`).
		WithArgs(int64(4)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	repo := NewPostgresReportRepository(mock)
	assert.NoError(t, repo.Delete(context.Background(), 3))
	assert.ErrorIs(t, repo.Delete(context.Background(), 4), report.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	latest := time.Date(2025, time.October, 21, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT category, COUNT`).
		WillReturnRows(pgxmock.NewRows([]string{"category", "count", "max"}).
			AddRow("PC", 3, &latest).
			AddRow("CV", 1, &latest))

	stats, err := NewPostgresReportRepository(mock).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 3, stats.ByCategory[report.CategoryPassenger].Count)
	require.NotNil(t, stats.ByCategory[report.CategoryCommercial].LatestPublish)
	assert.True(t, latest.Equal(*stats.ByCategory[report.CategoryCommercial].LatestPublish))
	assert.NoError(t, mock.ExpectationsWereMet())
}
