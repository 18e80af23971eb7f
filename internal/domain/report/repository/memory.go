package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/FACorreiaa/report-tracker/internal/domain/report"
)

// MemoryReportRepository is an in-process registry for dry runs and tests.
type MemoryReportRepository struct {
	mu      sync.Mutex
	nextID  int64
	reports []*report.Report
	now     func() time.Time
}

// NewMemoryReportRepository creates an empty in-memory registry
func NewMemoryReportRepository() *MemoryReportRepository {
	return &MemoryReportRepository{now: time.Now}
}

// Exists checks whether a report was already ingested
func (r *MemoryReportRepository) Exists(_ context.Context, url, fileName string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	probe := &report.Report{SourceURL: url, FileName: fileName}
	for _, existing := range r.reports {
		if duplicates(existing, probe) {
			return true, nil
		}
	}
	return false, nil
}

// Insert checks and inserts under the repository lock
func (r *MemoryReportRepository) Insert(_ context.Context, rep *report.Report) (int64, error) {
	if err := prepare(rep); err != nil {
		return 0, fmt.Errorf("invalid report: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.reports {
		if duplicates(existing, rep) {
			return 0, fmt.Errorf("%w: %s", report.ErrConflict, rep.FileName)
		}
	}

	r.nextID++
	rep.ID = r.nextID
	rep.CreatedAt = r.now().UTC()

	stored := *rep
	r.reports = append(r.reports, &stored)
	return rep.ID, nil
}

// Delete removes a report record
func (r *MemoryReportRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.reports {
		if existing.ID == id {
			r.reports = append(r.reports[:i], r.reports[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: report %d", report.ErrNotFound, id)
}

// GetByID retrieves a report by ID
func (r *MemoryReportRepository) GetByID(_ context.Context, id int64) (*report.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.reports {
		if existing.ID == id {
			out := *existing
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: report %d", report.ErrNotFound, id)
}

// ListByCategory returns the most recently published reports of a category
func (r *MemoryReportRepository) ListByCategory(_ context.Context, category report.Category, limit int) ([]*report.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*report.Report
	for _, existing := range r.reports {
		if existing.Category == category {
			cp := *existing
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PublishDate.Equal(out[j].PublishDate) {
			return out[i].PublishDate.After(out[j].PublishDate)
		}
		return out[i].ID > out[j].ID
	})
	if n := listLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Stats aggregates counts and latest publish dates per category
func (r *MemoryReportRepository) Stats(_ context.Context) (*report.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &report.Stats{ByCategory: make(map[report.Category]report.CategoryStat)}
	for _, existing := range r.reports {
		stat := stats.ByCategory[existing.Category]
		stat.Count++
		if stat.LatestPublish == nil || existing.PublishDate.After(*stat.LatestPublish) {
			t := existing.PublishDate
			stat.LatestPublish = &t
		}
		stats.ByCategory[existing.Category] = stat
		stats.Total++
	}
	return stats, nil
}

// Len returns the number of stored reports.
func (r *MemoryReportRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}
