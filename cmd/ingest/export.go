package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/report-tracker/internal/domain/report"
)

// reportRow is the CSV shape of one registry record.
type reportRow struct {
	ID              int64  `csv:"id"`
	Category        string `csv:"category"`
	Title           string `csv:"title"`
	PublishDate     string `csv:"publish_date"`
	FileName        string `csv:"file_name"`
	SourceURL       string `csv:"source_url"`
	LocalPath       string `csv:"local_path"`
	SpreadsheetPath string `csv:"spreadsheet_path"`
}

// exportReports writes the newest reports of category to w as CSV.
func exportReports(ctx context.Context, deps *Dependencies, category string, limit int, w io.Writer) error {
	cat, err := report.ParseCategory(category)
	if err != nil {
		return err
	}
	reports, err := deps.IngestService.List(ctx, cat, limit)
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	rows := make([]*reportRow, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, &reportRow{
			ID:              r.ID,
			Category:        string(r.Category),
			Title:           r.Title,
			PublishDate:     r.PublishDate.Format(time.DateOnly),
			FileName:        r.FileName,
			SourceURL:       r.SourceURL,
			LocalPath:       r.LocalPath,
			SpreadsheetPath: r.SpreadsheetPath,
		})
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}
