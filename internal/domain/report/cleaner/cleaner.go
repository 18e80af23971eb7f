// Package cleaner runs the structural clean-up pass over an extracted worksheet:
// empty column pruning, fixed column blanking and aggregate row redaction.
package cleaner

import (
	"fmt"
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/FACorreiaa/report-tracker/internal/domain/report/cell"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/sheet"
)

// DefaultBlankColumns are the column letters cleared in step 2: two letters
// kept, two blanked, across the first twenty-eight columns.
var DefaultBlankColumns = []string{
	"C", "D", "G", "H", "K", "L", "O", "P", "S", "T", "W", "X", "AA", "AB",
}

// DefaultRedactLabels are the aggregate-region row labels redacted in step 4.
var DefaultRedactLabels = []string{
	"EUROPEAN UNION",
	"EU + EFTA + UK",
	"EFTA",
}

// Config is the layout-specific data the cleaner depends on.
type Config struct {
	BlankColumns []string
	RedactLabels []string
}

// DefaultConfig returns the layout used by the registration reports.
func DefaultConfig() Config {
	return Config{
		BlankColumns: append([]string(nil), DefaultBlankColumns...),
		RedactLabels: append([]string(nil), DefaultRedactLabels...),
	}
}

// Cleaner applies the four clean-up steps in a fixed order.
type Cleaner struct {
	blank   []blankColumn
	labels  []string
	matcher *ahocorasick.Matcher
}

type blankColumn struct {
	letters string
	index   int
}

// Result records what each step changed.
type Result struct {
	DeletedBefore int      // empty columns removed in step 1
	Blanked       []string // configured columns cleared in step 2
	Skipped       []string // configured columns beyond the sheet width
	DeletedAfter  int      // empty columns removed in step 3
	RedactedRows  []int    // zero-based rows redacted in step 4
	FinalWidth    int
	FinalRowCount int
}

// New validates cfg and prepares the label matcher.
func New(cfg Config) (*Cleaner, error) {
	c := &Cleaner{}

	for _, letters := range cfg.BlankColumns {
		letters = strings.ToUpper(strings.TrimSpace(letters))
		if letters == "" {
			continue
		}
		idx, err := sheet.ColumnIndex(letters)
		if err != nil {
			return nil, fmt.Errorf("invalid blank column: %w", err)
		}
		c.blank = append(c.blank, blankColumn{letters: letters, index: idx})
	}

	patterns := make([][]byte, 0, len(cfg.RedactLabels))
	for _, label := range cfg.RedactLabels {
		label = strings.ToUpper(strings.TrimSpace(label))
		if label == "" {
			continue
		}
		c.labels = append(c.labels, label)
		patterns = append(patterns, []byte(label))
	}
	if len(patterns) > 0 {
		c.matcher = ahocorasick.NewMatcher(patterns)
	}

	return c, nil
}

// MustNew is New for static configuration; it panics on invalid column letters.
func MustNew(cfg Config) *Cleaner {
	c, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

// Clean runs the four steps on s in place. The steps are not reorderable:
// step 3 exists to remove the columns step 2 empties.
func (c *Cleaner) Clean(s *sheet.Sheet) Result {
	var res Result

	// 1. Delete empty columns.
	res.DeletedBefore = deleteEmptyColumns(s)

	// 2. Blank the configured columns that still exist.
	width := s.Width()
	for _, col := range c.blank {
		if col.index >= width {
			res.Skipped = append(res.Skipped, col.letters)
			continue
		}
		s.ClearColumn(col.index)
		res.Blanked = append(res.Blanked, col.letters)
	}

	// 3. Delete the columns step 2 left empty.
	res.DeletedAfter = deleteEmptyColumns(s)

	// 4. Redact aggregate rows.
	res.RedactedRows = c.redactRows(s)

	s.Rectangularize()
	res.FinalWidth = s.Width()
	res.FinalRowCount = s.Height()
	return res
}

// IsRedactedLabel reports whether text contains one of the configured labels,
// ignoring case.
func (c *Cleaner) IsRedactedLabel(text string) bool {
	if c.matcher == nil || text == "" {
		return false
	}
	return len(c.matcher.MatchThreadSafe([]byte(strings.ToUpper(text)))) > 0
}

func (c *Cleaner) redactRows(s *sheet.Sheet) []int {
	var redacted []int
	for i, row := range s.Rows {
		if len(row) == 0 || !c.IsRedactedLabel(row[0].Render()) {
			continue
		}
		for col := 1; col < len(row); col++ {
			row[col] = cell.Empty()
		}
		redacted = append(redacted, i)
	}
	return redacted
}

// deleteEmptyColumns removes blank columns right to left so pending indices stay valid.
func deleteEmptyColumns(s *sheet.Sheet) int {
	deleted := 0
	for col := s.Width() - 1; col >= 0; col-- {
		if s.IsColumnBlank(col) {
			s.DeleteColumn(col)
			deleted++
		}
	}
	return deleted
}
