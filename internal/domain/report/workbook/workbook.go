// Package workbook reads and writes report spreadsheets with excelize.
package workbook

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/report-tracker/internal/domain/report/cell"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/cleaner"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/extractor"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/monthly"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/sheet"
)

// Column width bounds, in characters.
const (
	MinColumnWidth = 8.0
	MaxColumnWidth = 60.0
)

// ZipMagic prefixes every xlsx file.
var ZipMagic = []byte("PK\x03\x04")

// Workbook wraps an excelize file.
type Workbook struct {
	file        *excelize.File
	styles      map[cell.Format]int
	formats     map[int]cell.Format
	dates       map[int]bool
	placeholder string
	logger      *slog.Logger
}

// New creates an empty workbook.
func New() *Workbook {
	f := excelize.NewFile()
	return &Workbook{
		file:        f,
		styles:      make(map[cell.Format]int),
		formats:     make(map[int]cell.Format),
		dates:       make(map[int]bool),
		placeholder: f.GetSheetName(0),
		logger:      slog.Default(),
	}
}

// Open reads a workbook.
func Open(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	return &Workbook{
		file:    f,
		styles:  make(map[cell.Format]int),
		formats: make(map[int]cell.Format),
		dates:   make(map[int]bool),
		logger:  slog.Default(),
	}, nil
}

// WithLogger sets the logger used for cells that cannot be formatted.
func (w *Workbook) WithLogger(l *slog.Logger) *Workbook {
	if l != nil {
		w.logger = l
	}
	return w
}

// OpenBytes reads a workbook held in memory.
func OpenBytes(data []byte) (*Workbook, error) {
	return Open(bytes.NewReader(data))
}

// Close releases the file's temporary resources.
func (w *Workbook) Close() error {
	return w.file.Close()
}

// SheetNames lists the sheets in order.
func (w *Workbook) SheetNames() []string {
	return w.file.GetSheetList()
}

// Build writes one sheet per page: tables of a page are stacked with one
// blank row between them and every cell is normalised.
func Build(pages []extractor.Page) (*Workbook, error) {
	w := New()
	for _, p := range pages {
		s := sheet.New(p.Name)
		for _, t := range p.Tables {
			if len(t) == 0 {
				continue
			}
			if s.Height() > 0 {
				s.AppendRow()
			}
			for _, row := range t {
				cells := make([]cell.Cell, len(row))
				for i, v := range row {
					cells[i] = cell.Normalize(v)
				}
				s.AppendRow(cells...)
			}
		}
		if err := w.WriteSheet(s); err != nil {
			w.Close()
			return nil, err
		}
	}
	if w.placeholder != "" {
		// no pages: keep a single empty summary sheet
		if err := w.file.SetSheetName(w.placeholder, extractor.SummaryPageName); err != nil {
			w.Close()
			return nil, fmt.Errorf("failed to rename sheet: %w", err)
		}
		w.placeholder = ""
	}
	return w, nil
}

// WriteSheet writes s, replacing any sheet of the same name.
func (w *Workbook) WriteSheet(s *sheet.Sheet) error {
	name := s.Name
	switch {
	case w.placeholder != "":
		if err := w.file.SetSheetName(w.placeholder, name); err != nil {
			return fmt.Errorf("failed to rename sheet: %w", err)
		}
		w.placeholder = ""
	default:
		idx, err := w.file.GetSheetIndex(name)
		if err != nil {
			return fmt.Errorf("failed to look up sheet %q: %w", name, err)
		}
		if idx >= 0 {
			if err := w.file.DeleteSheet(name); err != nil {
				return fmt.Errorf("failed to replace sheet %q: %w", name, err)
			}
		}
		if _, err := w.file.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %q: %w", name, err)
		}
	}

	widths := make([]int, s.Width())
	for r, row := range s.Rows {
		for c, v := range row {
			if v.Kind() == cell.KindEmpty {
				continue
			}
			if err := w.setCell(name, r, c, v); err != nil {
				return err
			}
			widths[c] = max(widths[c], utf8.RuneCountInString(v.Render()))
		}
	}
	for c, n := range widths {
		col := sheet.ColumnLetters(c)
		width := min(max(float64(n)+2, MinColumnWidth), MaxColumnWidth)
		if err := w.file.SetColWidth(name, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	return nil
}

func (w *Workbook) setCell(sheetName string, row, col int, v cell.Cell) error {
	ref, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return fmt.Errorf("invalid cell position: %w", err)
	}
	// style first so a failed cell keeps its old value
	if v.Format() != cell.FormatNone {
		style, err := w.style(v.Format())
		if err != nil {
			return err
		}
		if err := w.file.SetCellStyle(sheetName, ref, ref, style); err != nil {
			return fmt.Errorf("failed to style %s!%s: %w", sheetName, ref, err)
		}
	}
	if err := w.file.SetCellValue(sheetName, ref, v.Value()); err != nil {
		return fmt.Errorf("failed to set %s!%s: %w", sheetName, ref, err)
	}
	return nil
}

func (w *Workbook) style(f cell.Format) (int, error) {
	if id, ok := w.styles[f]; ok {
		return id, nil
	}
	id, err := w.file.NewStyle(&excelize.Style{NumFmt: f.NumFmt()})
	if err != nil {
		return 0, fmt.Errorf("failed to create number style: %w", err)
	}
	w.styles[f] = id
	w.formats[id] = f
	return id, nil
}

// formatOf recovers the display format attached to a style id.
func (w *Workbook) formatOf(styleID int) cell.Format {
	if f, ok := w.formats[styleID]; ok {
		return f
	}
	f := cell.FormatNone
	if st, err := w.file.GetStyle(styleID); err == nil && st != nil {
		f = cell.FormatFromNumFmt(st.NumFmt)
		if f == cell.FormatNone && st.CustomNumFmt != nil {
			switch *st.CustomNumFmt {
			case cell.FormatThousands.Code():
				f = cell.FormatThousands
			case cell.FormatThousandsDecimal.Code():
				f = cell.FormatThousandsDecimal
			}
		}
	}
	w.formats[styleID] = f
	return f
}

// Built-in number formats that display dates or times.
var dateNumFmts = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	45: true, 46: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

func (w *Workbook) isDate(styleID int) bool {
	if d, ok := w.dates[styleID]; ok {
		return d
	}
	d := false
	if st, err := w.file.GetStyle(styleID); err == nil && st != nil {
		d = dateNumFmts[st.NumFmt]
		if !d && st.CustomNumFmt != nil {
			d = isDateCode(*st.CustomNumFmt)
		}
	}
	w.dates[styleID] = d
	return d
}

// isDateCode reports whether a custom number format shows date or time
// parts. Quoted literals, escaped characters, colours and locale tags are
// ignored; elapsed-time sections like [h] or [mm] count.
func isDateCode(code string) bool {
	code = strings.ToLower(code)
	for i := 0; i < len(code); i++ {
		switch ch := code[i]; ch {
		case '\\':
			i++
		case '"':
			end := strings.IndexByte(code[i+1:], '"')
			if end < 0 {
				return false
			}
			i += end + 1
		case '[':
			end := strings.IndexByte(code[i+1:], ']')
			if end < 0 {
				return false
			}
			if section := code[i+1 : i+1+end]; section != "" && strings.Trim(section, "hms") == "" {
				return true
			}
			i += end + 1
		case 'y', 'm', 'd', 'h', 's':
			return true
		}
	}
	return false
}

// Sheet reads one sheet back into the sheet model. Text cells stay text;
// numeric cells keep their value and recover their display format.
func (w *Workbook) Sheet(name string) (*sheet.Sheet, error) {
	rows, err := w.file.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	s := sheet.New(name)
	for r, row := range rows {
		cells := make([]cell.Cell, len(row))
		for c, raw := range row {
			v, err := w.readCell(name, r, c, raw)
			if err != nil {
				return nil, err
			}
			cells[c] = v
		}
		s.AppendRow(cells...)
	}
	return s, nil
}

func (w *Workbook) readCell(sheetName string, row, col int, raw string) (cell.Cell, error) {
	if raw == "" {
		return cell.Empty(), nil
	}
	ref, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return cell.Empty(), fmt.Errorf("invalid cell position: %w", err)
	}
	typ, err := w.file.GetCellType(sheetName, ref)
	if err != nil {
		return cell.Empty(), fmt.Errorf("failed to read %s!%s: %w", sheetName, ref, err)
	}
	if isTextType(typ) {
		return cell.Text(raw), nil
	}
	styleID, err := w.file.GetCellStyle(sheetName, ref)
	if err != nil {
		return cell.Empty(), fmt.Errorf("failed to read style of %s!%s: %w", sheetName, ref, err)
	}
	return cell.FromRaw(raw, w.formatOf(styleID)), nil
}

func isStringType(t excelize.CellType) bool {
	return t == excelize.CellTypeSharedString || t == excelize.CellTypeInlineString
}

// isTextType covers every cell type whose raw value is not a plain number.
func isTextType(t excelize.CellType) bool {
	switch t {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula,
		excelize.CellTypeBool, excelize.CellTypeError:
		return true
	}
	return false
}

// Sheets reads every sheet in order.
func (w *Workbook) Sheets() ([]*sheet.Sheet, error) {
	names := w.SheetNames()
	out := make([]*sheet.Sheet, 0, len(names))
	for _, name := range names {
		s, err := w.Sheet(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// FormatNumbers normalises every cell of every sheet in place: numeric text
// becomes a number and every number gets its canonical display format.
// Formulas, dates and other cells are left alone. A cell that cannot be
// read or written is logged and skipped. It returns the number of cells
// changed and fails only when a sheet cannot be read at all.
func (w *Workbook) FormatNumbers() (int, error) {
	changed := 0
	for _, name := range w.SheetNames() {
		rows, err := w.file.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return changed, fmt.Errorf("failed to get rows of %s: %w", name, err)
		}
		for r, row := range rows {
			for c, raw := range row {
				ok, err := w.formatCell(name, r, c, raw)
				if err != nil {
					w.logger.Warn("cell left unformatted",
						slog.String("sheet", name),
						slog.Int("row", r+1),
						slog.Int("col", c+1),
						slog.Any("error", err),
					)
					continue
				}
				if ok {
					changed++
				}
			}
		}
	}
	return changed, nil
}

func (w *Workbook) formatCell(name string, r, c int, raw string) (bool, error) {
	if strings.TrimSpace(raw) == "" {
		return false, nil
	}
	norm := cell.Normalize(raw)
	if !norm.IsNumeric() {
		return false, nil
	}
	ref, err := excelize.CoordinatesToCellName(c+1, r+1)
	if err != nil {
		return false, fmt.Errorf("invalid cell position: %w", err)
	}
	typ, err := w.file.GetCellType(name, ref)
	if err != nil {
		return false, fmt.Errorf("failed to read %s!%s: %w", name, ref, err)
	}
	switch {
	case isStringType(typ):
	case isTextType(typ):
		return false, nil
	default:
		if formula, _ := w.file.GetCellFormula(name, ref); formula != "" {
			return false, nil
		}
		styleID, err := w.file.GetCellStyle(name, ref)
		if err != nil {
			return false, fmt.Errorf("failed to read style of %s!%s: %w", name, ref, err)
		}
		if w.isDate(styleID) || w.formatOf(styleID) == norm.Format() {
			return false, nil
		}
	}
	if err := w.setCell(name, r, c, norm); err != nil {
		return false, err
	}
	return true, nil
}

// ApplyMonthly derives the "Monthly" sheet and writes it, replacing any
// previous one. It returns report.ErrNotFound, wrapped, when no sheet has a
// monthly section.
func (w *Workbook) ApplyMonthly(ex *monthly.Extractor) (cleaner.Result, error) {
	sheets, err := w.Sheets()
	if err != nil {
		return cleaner.Result{}, err
	}
	out, res, err := ex.Extract(sheets)
	if err != nil {
		return cleaner.Result{}, err
	}
	if err := w.WriteSheet(out); err != nil {
		return cleaner.Result{}, err
	}
	return res, nil
}

// WriteTo writes the xlsx bytes to wr.
func (w *Workbook) WriteTo(wr io.Writer) (int64, error) {
	if idx, err := w.file.GetSheetIndex(w.SheetNames()[0]); err == nil && idx >= 0 {
		w.file.SetActiveSheet(idx)
	}
	n, err := w.file.WriteTo(wr)
	if err != nil {
		return n, fmt.Errorf("failed to write workbook: %w", err)
	}
	return n, nil
}

// Bytes returns the serialised workbook.
func (w *Workbook) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
