// Package monthly isolates the "MONTHLY" sub-table of a report workbook into
// its own sheet and cleans it.
package monthly

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/report-tracker/internal/domain/report"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/cleaner"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/sheet"
)

// SheetName is the name of the derived sheet.
const SheetName = "Monthly"

const (
	startToken = "MONTHLY"
	endToken   = "YEAR TO DATE"
)

// Section locates the copied rows: Rows[Start:End] of sheet Source.
type Section struct {
	Source string
	Start  int
	End    int
}

// Extractor copies the monthly section and runs the cleaner on the copy.
type Extractor struct {
	cleaner *cleaner.Cleaner
}

// NewExtractor creates an extractor that cleans with c.
func NewExtractor(c *cleaner.Cleaner) *Extractor {
	return &Extractor{cleaner: c}
}

// Locate finds the first monthly section across sheets, scanning sheets in
// order and rows top to bottom. Sheets already named "Monthly" are ignored.
func Locate(sheets []*sheet.Sheet) (Section, bool) {
	for _, s := range sheets {
		if s == nil || strings.EqualFold(s.Name, SheetName) {
			continue
		}
		for start := 0; start < s.Height(); start++ {
			if !strings.Contains(strings.ToUpper(s.RowText(start)), startToken) {
				continue
			}
			end := s.Height()
			for r := start + 1; r < s.Height(); r++ {
				if s.IsRowBlank(r) || strings.Contains(strings.ToUpper(s.RowText(r)), endToken) {
					end = r
					break
				}
			}
			return Section{Source: s.Name, Start: start, End: end}, true
		}
	}
	return Section{}, false
}

// Extract returns a new cleaned "Monthly" sheet, or report.ErrNotFound when
// no sheet carries the MONTHLY marker. The source sheets are not modified.
func (e *Extractor) Extract(sheets []*sheet.Sheet) (*sheet.Sheet, cleaner.Result, error) {
	sec, ok := Locate(sheets)
	if !ok {
		return nil, cleaner.Result{}, fmt.Errorf("monthly section: %w", report.ErrNotFound)
	}

	var src *sheet.Sheet
	for _, s := range sheets {
		if s != nil && s.Name == sec.Source {
			src = s
			break
		}
	}

	out := sheet.New(SheetName)
	for r := sec.Start; r < sec.End; r++ {
		out.AppendRow(append(src.Rows[r][:0:0], src.Rows[r]...)...)
	}

	res := e.cleaner.Clean(out)
	return out, res, nil
}
