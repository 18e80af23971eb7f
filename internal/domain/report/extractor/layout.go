package extractor

import (
	"math"
	"sort"
	"strings"
)

// Layout tunes how text runs are grouped into lines, cells and tables.
// Distances are fractions of the font size.
type Layout struct {
	// LineTolerance is the largest baseline difference within one line.
	LineTolerance float64
	// CellGap is the smallest horizontal gap that starts a new cell.
	CellGap float64
	// WordGap is the smallest gap that inserts a space when joining runs.
	WordGap float64
	// MinTableRows is the number of multi-cell lines a table needs.
	MinTableRows int
	// CaptionLines is how many single-cell lines directly above a table
	// are kept as its caption rows.
	CaptionLines int
}

// DefaultLayout returns the settings used for registration reports.
func DefaultLayout() Layout {
	return Layout{
		LineTolerance: 0.5,
		CellGap:       1.0,
		WordGap:       0.15,
		MinTableRows:  2,
		CaptionLines:  2,
	}
}

type span struct {
	X0, X1 float64
	Text   string
}

func (s span) center() float64 { return (s.X0 + s.X1) / 2 }

type line struct {
	Y     float64
	Size  float64
	Cells []span
}

func (l line) text() string {
	parts := make([]string, 0, len(l.Cells))
	for _, c := range l.Cells {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, " ")
}

// Table is a block of rows detected on a page. Rows may be ragged.
type Table [][]string

// lines groups runs into reading-order lines of cells.
func (l Layout) lines(runs []run) []line {
	if len(runs) == 0 {
		return nil
	}
	sorted := make([]run, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var (
		out     []line
		current []run
		baseY   float64
		size    float64
	)
	flush := func() {
		if len(current) > 0 {
			out = append(out, l.cells(current, baseY, size))
		}
		current = nil
	}
	for _, r := range sorted {
		tol := math.Max(r.Size, size) * l.LineTolerance
		if len(current) > 0 && math.Abs(baseY-r.Y) <= math.Max(tol, 1) {
			current = append(current, r)
			size = math.Max(size, r.Size)
			continue
		}
		flush()
		current = []run{r}
		baseY, size = r.Y, r.Size
	}
	flush()
	return out
}

func (l Layout) cells(runs []run, y, size float64) line {
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].X < runs[j].X })

	var spans []span
	for _, r := range runs {
		text := strings.TrimSpace(r.Text)
		x0 := r.X + leadingSpace(r.Text)*r.Width/float64(max(len([]rune(r.Text)), 1))
		if n := len(spans); n > 0 {
			prev := &spans[n-1]
			gap := x0 - prev.X1
			em := math.Max(r.Size, 1)
			if gap < l.CellGap*em {
				if gap >= l.WordGap*em {
					prev.Text += " "
				}
				prev.Text += text
				prev.X1 = math.Max(prev.X1, r.end())
				continue
			}
		}
		spans = append(spans, span{X0: x0, X1: r.end(), Text: text})
	}
	return line{Y: y, Size: size, Cells: spans}
}

func leadingSpace(s string) float64 {
	n := 0
	for _, r := range s {
		if r != ' ' {
			break
		}
		n++
	}
	return float64(n)
}

// tables finds blocks of multi-cell lines and aligns their columns.
func (l Layout) tables(lines []line) []Table {
	var out []Table
	for i := 0; i < len(lines); {
		if len(lines[i].Cells) < 2 {
			i++
			continue
		}
		start, end, rows := i, i, 0
		for j := i; j < len(lines); j++ {
			if len(lines[j].Cells) >= 2 {
				end = j + 1
				rows++
				continue
			}
			// a single label line inside a table, e.g. a section heading
			if j+1 < len(lines) && len(lines[j+1].Cells) >= 2 {
				continue
			}
			break
		}
		if rows < l.MinTableRows {
			i = end
			continue
		}
		caption := start
		for caption > 0 && start-caption < l.CaptionLines && len(lines[caption-1].Cells) == 1 {
			caption--
		}
		out = append(out, align(lines[caption:end]))
		i = end
	}
	return out
}

// align assigns every cell to a column. Column extents come from the lines
// with the most cells; single-cell lines are labels and stay in the first
// column, other cells go to the column they overlap most or the nearest one.
func align(lines []line) Table {
	width := 0
	for _, ln := range lines {
		width = max(width, len(ln.Cells))
	}
	cols := make([]span, width)
	seen := false
	for _, ln := range lines {
		if len(ln.Cells) != width {
			continue
		}
		for k, c := range ln.Cells {
			if !seen {
				cols[k] = span{X0: c.X0, X1: c.X1}
				continue
			}
			cols[k].X0 = math.Min(cols[k].X0, c.X0)
			cols[k].X1 = math.Max(cols[k].X1, c.X1)
		}
		seen = true
	}

	table := make(Table, 0, len(lines))
	for _, ln := range lines {
		row := make([]string, width)
		if len(ln.Cells) == width {
			for k, c := range ln.Cells {
				row[k] = c.Text
			}
			table = append(table, row)
			continue
		}
		if len(ln.Cells) == 1 {
			row[0] = ln.Cells[0].Text
			table = append(table, row)
			continue
		}
		for _, c := range ln.Cells {
			k := column(cols, c)
			if row[k] != "" {
				row[k] += " "
			}
			row[k] += c.Text
		}
		table = append(table, row)
	}
	return table
}

func column(cols []span, c span) int {
	best, bestOverlap := -1, 0.0
	for k, col := range cols {
		if o := math.Min(col.X1, c.X1) - math.Max(col.X0, c.X0); o > bestOverlap {
			best, bestOverlap = k, o
		}
	}
	if best >= 0 {
		return best
	}
	best, bestDist := 0, math.Inf(1)
	for k, col := range cols {
		if d := math.Abs(col.center() - c.center()); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

// fallback renders every line as a one-cell row.
func fallback(lines []line) Table {
	table := make(Table, 0, len(lines))
	for _, ln := range lines {
		table = append(table, []string{ln.text()})
	}
	return table
}
