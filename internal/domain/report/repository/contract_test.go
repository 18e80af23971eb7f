package repository

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/report-tracker/internal/domain/report"
	"github.com/FACorreiaa/report-tracker/pkg/db"
)

func newSQLiteRepo(t *testing.T) *SQLiteReportRepository {
	t.Helper()
	ctx := context.Background()
	database, err := db.New(ctx, db.Config{
		Driver:     db.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "reports.db"),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(database.Close)
	require.NoError(t, database.RunMigrations(ctx))
	return NewSQLiteReportRepository(database.SQL)
}

// stores runs the shared behaviour against every embedded implementation.
func stores(t *testing.T) map[string]func(t *testing.T) ReportRepository {
	return map[string]func(t *testing.T) ReportRepository{
		"memory": func(t *testing.T) ReportRepository { return NewMemoryReportRepository() },
		"sqlite": func(t *testing.T) ReportRepository { return newSQLiteRepo(t) },
	}
}

func TestRepository_ExistsMatchesAnyKey(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := open(t)

			rep := sampleReport()
			rep.SourceURL = "https://www.acea.auto/pr-car-registrations-september-2025/"
			_, err := repo.Insert(ctx, rep)
			require.NoError(t, err)

			tests := []struct {
				name     string
				url      string
				fileName string
				want     bool
			}{
				{"source url", rep.SourceURL, "", true},
				{"document url", rep.DocumentURL, "", true},
				{"file name only", "https://mirror.example.org/x.pdf", "Press_release_car_registrations_September_2025.pdf", true},
				{"revised variant is distinct", "https://www.acea.auto/files/Press_release_car_registrations_September_2025_rev.pdf", "Press_release_car_registrations_September_2025_rev.pdf", false},
				{"unknown", "https://example.org/other.pdf", "other.pdf", false},
				{"empty file name does not match", "https://example.org/other.pdf", "", false},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					got, err := repo.Exists(ctx, tt.url, tt.fileName)
					require.NoError(t, err)
					assert.Equal(t, tt.want, got)
				})
			}
		})
	}
}

func TestRepository_InsertConflict(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := open(t)

			first := sampleReport()
			id, err := repo.Insert(ctx, first)
			require.NoError(t, err)
			assert.Equal(t, id, first.ID)
			assert.False(t, first.CreatedAt.IsZero())

			// same file reached through another URL
			dup := sampleReport()
			dup.SourceURL = "https://cdn.example.org/Press_release_car_registrations_September_2025.pdf"
			dup.DocumentURL = dup.SourceURL
			_, err = repo.Insert(ctx, dup)
			assert.ErrorIs(t, err, report.ErrConflict)

			stats, err := repo.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, stats.Total)
		})
	}
}

func TestRepository_ConcurrentInsertOnlyOneWins(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := open(t)

			const workers = 8
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				wins      int
				conflicts int
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := repo.Insert(ctx, sampleReport())
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						wins++
					case assert.ErrorIs(t, err, report.ErrConflict):
						conflicts++
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, 1, wins)
			assert.Equal(t, workers-1, conflicts)
		})
	}
}

func TestRepository_ListGetDeleteStats(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := open(t)

			base := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)
			var ids []int64
			for i := 0; i < 3; i++ {
				rep := &report.Report{
					Category:    report.CategoryCommercial,
					Title:       fmt.Sprintf("Q%d", i+1),
					SourceURL:   fmt.Sprintf("https://example.org/cv_q%d.pdf", i+1),
					LocalPath:   fmt.Sprintf("pdfs/CV/cv_q%d.pdf", i+1),
					PublishDate: base.AddDate(0, 3*i, 0),
				}
				id, err := repo.Insert(ctx, rep)
				require.NoError(t, err)
				ids = append(ids, id)
			}
			_, err := repo.Insert(ctx, sampleReport())
			require.NoError(t, err)

			assert.Less(t, ids[0], ids[1])
			assert.Less(t, ids[1], ids[2])

			list, err := repo.ListByCategory(ctx, report.CategoryCommercial, 2)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "Q3", list[0].Title)
			assert.Equal(t, "Q2", list[1].Title)

			got, err := repo.GetByID(ctx, ids[0])
			require.NoError(t, err)
			assert.Equal(t, "cv_q1.pdf", got.FileName)
			assert.Equal(t, got.SourceURL, got.DocumentURL)
			assert.True(t, base.Equal(got.PublishDate))

			stats, err := repo.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, 4, stats.Total)
			cv := stats.ByCategory[report.CategoryCommercial]
			assert.Equal(t, 3, cv.Count)
			require.NotNil(t, cv.LatestPublish)
			assert.True(t, base.AddDate(0, 6, 0).Equal(*cv.LatestPublish))

			require.NoError(t, repo.Delete(ctx, ids[0]))
			_, err = repo.GetByID(ctx, ids[0])
			assert.ErrorIs(t, err, report.ErrNotFound)
			assert.ErrorIs(t, repo.Delete(ctx, ids[0]), report.ErrNotFound)

			// the file name is free again once the record is deleted
			ok, err := repo.Exists(ctx, "https://example.org/elsewhere.pdf", "cv_q1.pdf")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}
