// Package extractor turns PDF pages into raw tables. Positioned text is read
// page by page and grouped by position; pages without a detectable table
// degrade to one row per text line.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/FACorreiaa/report-tracker/internal/domain/report"
)

// SummaryPageName names the first page's sheet.
const SummaryPageName = "Summary"

// PageName returns the sheet name for a zero-based page index.
func PageName(index int) string {
	if index == 0 {
		return SummaryPageName
	}
	return fmt.Sprintf("Page %d", index+1)
}

// Page holds the tables found on one page.
type Page struct {
	Index    int
	Name     string
	Tables   []Table
	Fallback bool // Tables holds a single one-column table of text lines
}

var disableConfigDir sync.Once

// Extractor reads tables out of PDF documents.
type Extractor struct {
	layout Layout
	logger *slog.Logger
}

// New creates an extractor with the default layout.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	disableConfigDir.Do(api.DisableConfigDir)
	return &Extractor{layout: DefaultLayout(), logger: logger}
}

// WithLayout overrides the grouping thresholds.
func (e *Extractor) WithLayout(l Layout) *Extractor {
	e.layout = l
	return e
}

func configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Extract returns one Page per PDF page in order. It fails only with
// report.ErrUnreadablePDF when the document itself cannot be parsed;
// problems on individual pages are logged and yield an empty page.
func (e *Extractor) Extract(ctx context.Context, pdf []byte) ([]Page, error) {
	pctx, err := readContext(pdf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", report.ErrUnreadablePDF, err)
	}
	doc, err := openDocument(pdf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", report.ErrUnreadablePDF, err)
	}

	pages := make([]Page, 0, pctx.PageCount)
	for i := 0; i < pctx.PageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages = append(pages, e.page(doc, i))
	}

	e.logger.Debug("pdf extracted", slog.Int("pages", len(pages)))
	return pages, nil
}

func readContext(pdf []byte) (pctx *model.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()
	pctx, err = api.ReadContext(bytes.NewReader(pdf), configuration())
	if err != nil {
		return nil, err
	}
	if err := api.ValidateContext(pctx); err != nil {
		return nil, err
	}
	return pctx, nil
}

func (e *Extractor) page(doc *document, index int) Page {
	page := Page{Index: index, Name: PageName(index)}

	runs, err := doc.runs(index + 1)
	if err != nil {
		e.logger.Warn("page content unreadable",
			slog.Int("page", index+1),
			slog.Any("error", err),
		)
		page.Fallback = true
		page.Tables = []Table{{}}
		return page
	}

	tables, isFallback := e.layout.detect(runs)
	page.Tables = tables
	page.Fallback = isFallback
	return page
}

// detect returns the tables found among runs, or the one-column text
// fallback when there are none.
func (l Layout) detect(runs []run) ([]Table, bool) {
	lines := l.lines(runs)
	if tables := l.tables(lines); len(tables) > 0 {
		return tables, false
	}
	return []Table{fallback(lines)}, true
}
