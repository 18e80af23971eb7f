// Package repository provides the dedup registry: persisted Report records
// with an atomic check-then-insert.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/FACorreiaa/report-tracker/internal/domain/report"
)

// ReportRepository defines the interface for report registry access
type ReportRepository interface {
	// Exists reports whether url matches a stored source or document URL,
	// or fileName matches a stored file name.
	Exists(ctx context.Context, url, fileName string) (bool, error)
	// Insert registers rep and assigns its ID and CreatedAt. It returns
	// report.ErrConflict when the report is already registered.
	Insert(ctx context.Context, rep *report.Report) (int64, error)
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*report.Report, error)
	ListByCategory(ctx context.Context, category report.Category, limit int) ([]*report.Report, error)
	Stats(ctx context.Context) (*report.Stats, error)
}

// DefaultListLimit applies when ListByCategory gets a non-positive limit.
const DefaultListLimit = 50

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// duplicates reports whether existing and candidate describe the same document.
func duplicates(existing, candidate *report.Report) bool {
	if candidate.SourceURL != "" && (existing.SourceURL == candidate.SourceURL || existing.DocumentURL == candidate.SourceURL) {
		return true
	}
	if candidate.DocumentURL != "" && (existing.SourceURL == candidate.DocumentURL || existing.DocumentURL == candidate.DocumentURL) {
		return true
	}
	return candidate.FileName != "" && existing.FileName == candidate.FileName
}

func fileNameOf(rep *report.Report) string {
	if rep.FileName != "" {
		return rep.FileName
	}
	return report.BaseName(rep.LocalPath)
}

// prepare fills derived fields and rejects records that cannot be deduplicated.
func prepare(rep *report.Report) error {
	if rep == nil {
		return errors.New("nil report")
	}
	if _, err := report.ParseCategory(string(rep.Category)); err != nil {
		return err
	}
	if rep.SourceURL == "" {
		return errors.New("report source url is required")
	}
	if rep.DocumentURL == "" {
		rep.DocumentURL = rep.SourceURL
	}
	rep.FileName = fileNameOf(rep)
	if rep.FileName == "" {
		return fmt.Errorf("report %s has no file name", rep.SourceURL)
	}
	return nil
}
