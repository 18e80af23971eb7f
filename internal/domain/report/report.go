// Package report holds the domain model shared by the ingestion pipeline:
// the Report record, its category, and the error taxonomy every stage reports with.
package report

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Category distinguishes the two report families published by the source.
type Category string

const (
	CategoryPassenger  Category = "PC" // Passenger car registrations (monthly)
	CategoryCommercial Category = "CV" // Commercial vehicle registrations (quarterly)
)

// Categories lists every known category in scan order.
func Categories() []Category {
	return []Category{CategoryPassenger, CategoryCommercial}
}

// ParseCategory validates a category code.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToUpper(strings.TrimSpace(s))); c {
	case CategoryPassenger, CategoryCommercial:
		return c, nil
	default:
		return "", fmt.Errorf("invalid report category: %q", s)
	}
}

// Label returns the human readable family name.
func (c Category) Label() string {
	switch c {
	case CategoryPassenger:
		return "Passenger car registrations"
	case CategoryCommercial:
		return "Commercial vehicle registrations"
	default:
		return string(c)
	}
}

// Report is one ingested document.
type Report struct {
	ID              int64     `json:"id"`
	Category        Category  `json:"category"`
	Title           string    `json:"title"`
	SourceURL       string    `json:"source_url"`
	DocumentURL     string    `json:"document_url"`
	LocalPath       string    `json:"local_path"`
	FileName        string    `json:"file_name"` // basename of LocalPath, used for dedup
	SpreadsheetPath string    `json:"spreadsheet_path,omitempty"`
	PublishDate     time.Time `json:"publish_date"`
	CreatedAt       time.Time `json:"created_at"`
}

// Stats summarises the registry per category.
type Stats struct {
	Total      int                       `json:"total_reports"`
	ByCategory map[Category]CategoryStat `json:"by_category"`
}

// CategoryStat is the count and most recent publish date for one category.
type CategoryStat struct {
	Count         int        `json:"count"`
	LatestPublish *time.Time `json:"latest_publish,omitempty"`
}

// BaseName returns the last path element of a URL or filesystem path,
// ignoring any query string.
func BaseName(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.ReplaceAll(p, "\\", "/")
	base := path.Base(p)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
