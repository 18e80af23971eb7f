package extractor

import (
	"bytes"
	"fmt"
	"math"

	"github.com/ledongthuc/pdf"
)

// fallbackAdvance approximates a glyph advance, as a fraction of the font
// size, for fonts without a width table.
const fallbackAdvance = 0.5

// run is a piece of text placed on the page in user space.
type run struct {
	X, Y  float64
	Width float64
	Size  float64
	Text  string
}

func (r run) end() float64 { return r.X + r.Width }

// document wraps the text reader over a PDF held in memory.
type document struct {
	r *pdf.Reader
}

func openDocument(data []byte) (doc *document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return &document{r: r}, nil
}

// runs returns the text runs of a one-based page number. Fonts are decoded
// through their encoding or ToUnicode map.
func (d *document) runs(pageNr int) (runs []run, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("content stream panic: %v", r)
		}
	}()
	p := d.r.Page(pageNr)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page %d not found", pageNr)
	}
	return joinGlyphs(p.Content().Text), nil
}

// joinGlyphs merges glyphs drawn one after another on the same baseline
// into runs. A glyph starts a new run when it moves back, leaves the
// baseline, changes size or lands past the end of the current run.
func joinGlyphs(glyphs []pdf.Text) []run {
	var (
		out  []run
		cur  run
		last pdf.Text
		open bool
	)
	flush := func() {
		if open && cur.Text != "" {
			out = append(out, cur)
		}
		open = false
	}
	for _, g := range glyphs {
		if g.S == "" || g.S == "\n" {
			flush()
			continue
		}
		advance := g.W
		if advance <= 0 {
			advance = g.FontSize * fallbackAdvance
		}
		if open && continues(cur, last, g) {
			cur.Text += g.S
			if g.W > 0 {
				cur.Width = math.Max(cur.Width, g.X+g.W-cur.X)
			} else {
				cur.Width += advance
			}
			last = g
			continue
		}
		flush()
		cur = run{X: g.X, Y: g.Y, Width: advance, Size: g.FontSize, Text: g.S}
		last, open = g, true
	}
	flush()
	return out
}

func continues(cur run, last, g pdf.Text) bool {
	eps := math.Max(g.FontSize, 1) * 0.01
	switch {
	case math.Abs(g.FontSize-last.FontSize) > eps:
		return false
	case math.Abs(g.Y-last.Y) > eps:
		return false
	case g.X < last.X-eps:
		return false
	}
	return g.X <= cur.end()+eps
}
