// Package sheet is the in-memory worksheet the cleaner and the monthly
// extractor operate on. Rows may be ragged until Rectangularize is called.
package sheet

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/report-tracker/internal/domain/report/cell"
)

// Sheet is a named grid of cells.
type Sheet struct {
	Name string
	Rows [][]cell.Cell
}

// New creates an empty sheet.
func New(name string) *Sheet {
	return &Sheet{Name: name}
}

// FromStrings builds a sheet from raw text rows, normalising every value.
func FromStrings(name string, rows [][]string) *Sheet {
	s := &Sheet{Name: name, Rows: make([][]cell.Cell, len(rows))}
	for i, row := range rows {
		cells := make([]cell.Cell, len(row))
		for j, v := range row {
			cells[j] = cell.Normalize(v)
		}
		s.Rows[i] = cells
	}
	return s
}

// Width is the widest row's length.
func (s *Sheet) Width() int {
	w := 0
	for _, row := range s.Rows {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

// Height is the number of rows.
func (s *Sheet) Height() int { return len(s.Rows) }

// Cell returns the cell at (row, col); out-of-range positions are empty.
func (s *Sheet) Cell(row, col int) cell.Cell {
	if row < 0 || row >= len(s.Rows) || col < 0 || col >= len(s.Rows[row]) {
		return cell.Empty()
	}
	return s.Rows[row][col]
}

// Set writes a cell, growing the row as needed.
func (s *Sheet) Set(row, col int, c cell.Cell) {
	for len(s.Rows) <= row {
		s.Rows = append(s.Rows, nil)
	}
	for len(s.Rows[row]) <= col {
		s.Rows[row] = append(s.Rows[row], cell.Empty())
	}
	s.Rows[row][col] = c
}

// AppendRow adds a row at the bottom.
func (s *Sheet) AppendRow(cells ...cell.Cell) {
	s.Rows = append(s.Rows, cells)
}

// IsColumnBlank reports whether every cell of column col is blank across
// all rows. Rows too short to reach col count as blank.
func (s *Sheet) IsColumnBlank(col int) bool {
	for _, row := range s.Rows {
		if col < len(row) && !row[col].IsBlank() {
			return false
		}
	}
	return true
}

// DeleteColumn removes column col, shifting later columns left.
func (s *Sheet) DeleteColumn(col int) {
	for i, row := range s.Rows {
		if col < len(row) {
			s.Rows[i] = append(row[:col:col], row[col+1:]...)
		}
	}
}

// ClearColumn empties every cell of column col.
func (s *Sheet) ClearColumn(col int) {
	for _, row := range s.Rows {
		if col < len(row) {
			row[col] = cell.Empty()
		}
	}
}

// IsRowBlank reports whether every cell of the row is blank.
func (s *Sheet) IsRowBlank(row int) bool {
	if row < 0 || row >= len(s.Rows) {
		return true
	}
	for _, c := range s.Rows[row] {
		if !c.IsBlank() {
			return false
		}
	}
	return true
}

// RowText concatenates the displayed text of every non-blank cell of a row,
// separated by single spaces.
func (s *Sheet) RowText(row int) string {
	if row < 0 || row >= len(s.Rows) {
		return ""
	}
	parts := make([]string, 0, len(s.Rows[row]))
	for _, c := range s.Rows[row] {
		if c.IsBlank() {
			continue
		}
		parts = append(parts, strings.TrimSpace(c.Render()))
	}
	return strings.Join(parts, " ")
}

// Rectangularize pads every row with empty cells to the sheet width.
func (s *Sheet) Rectangularize() {
	w := s.Width()
	for i, row := range s.Rows {
		for len(row) < w {
			row = append(row, cell.Empty())
		}
		s.Rows[i] = row
	}
}

// Clone returns a deep copy named name.
func (s *Sheet) Clone(name string) *Sheet {
	out := &Sheet{Name: name, Rows: make([][]cell.Cell, len(s.Rows))}
	for i, row := range s.Rows {
		out.Rows[i] = append([]cell.Cell(nil), row...)
	}
	return out
}

// Strings renders the sheet as display text, trailing empty cells dropped.
func (s *Sheet) Strings() [][]string {
	out := make([][]string, len(s.Rows))
	for i, row := range s.Rows {
		last := len(row) - 1
		for last >= 0 && row[last].Kind() == cell.KindEmpty {
			last--
		}
		vals := make([]string, last+1)
		for j := 0; j <= last; j++ {
			vals[j] = row[j].Render()
		}
		out[i] = vals
	}
	return out
}

// ColumnIndex converts a column letter such as "C" or "AB" to a zero-based index.
func ColumnIndex(letters string) (int, error) {
	n, err := excelize.ColumnNameToNumber(strings.TrimSpace(letters))
	if err != nil {
		return 0, fmt.Errorf("invalid column %q: %w", letters, err)
	}
	return n - 1, nil
}

// ColumnLetters converts a zero-based column index to its letter name.
func ColumnLetters(index int) string {
	name, err := excelize.ColumnNumberToName(index + 1)
	if err != nil {
		return ""
	}
	return name
}
