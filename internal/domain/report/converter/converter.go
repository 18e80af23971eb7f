// Package converter turns PDF bytes into xlsx bytes, either in process or
// through an external export service.
package converter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/FACorreiaa/report-tracker/internal/domain/report"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/extractor"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/fetcher"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/workbook"
)

// Mode selects the converter implementation.
type Mode string

const (
	ModeLocal   Mode = "local"
	ModeService Mode = "service"
)

// ParseMode validates a configured mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeLocal, ModeService:
		return m, nil
	case "":
		return ModeLocal, nil
	default:
		return "", fmt.Errorf("unknown extract mode %q", s)
	}
}

// Converter produces a workbook from a PDF. Failures wrap report.ErrConversionFailure.
type Converter interface {
	Convert(ctx context.Context, pdf []byte) ([]byte, error)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DefaultMaxResponseBytes caps a converted workbook.
const DefaultMaxResponseBytes = 128 << 20

// HTTPConverter posts the PDF to an export endpoint and expects xlsx back.
type HTTPConverter struct {
	client   fetcher.Doer
	endpoint string
	token    string
	maxBytes int64
	logger   *slog.Logger
}

// NewHTTPConverter creates a converter for endpoint authenticated with token.
func NewHTTPConverter(client fetcher.Doer, endpoint, token string, logger *slog.Logger) *HTTPConverter {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPConverter{
		client:   client,
		endpoint: endpoint,
		token:    token,
		maxBytes: DefaultMaxResponseBytes,
		logger:   logger,
	}
}

// WithMaxBytes caps the accepted workbook size.
func (c *HTTPConverter) WithMaxBytes(n int64) *HTTPConverter {
	if n > 0 {
		c.maxBytes = n
	}
	return c
}

// Convert sends pdf to the export service.
func (c *HTTPConverter) Convert(ctx context.Context, pdf []byte) ([]byte, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("%w: no export endpoint configured", report.ErrConversionFailure)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(pdf))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", report.ErrConversionFailure, err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Accept", xlsxContentType)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: export request failed: %v", report.ErrConversionFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read export response: %v", report.ErrConversionFailure, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: export service returned %d", report.ErrConversionFailure, resp.StatusCode)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("%w: export response larger than %d bytes", report.ErrConversionFailure, c.maxBytes)
	}
	if !bytes.HasPrefix(body, workbook.ZipMagic) {
		return nil, fmt.Errorf("%w: export service returned non-xlsx content", report.ErrConversionFailure)
	}

	c.logger.Info("pdf exported",
		slog.Int("pdf_bytes", len(pdf)),
		slog.Int("xlsx_bytes", len(body)),
		slog.Duration("duration", time.Since(start)),
	)
	return body, nil
}

// LocalConverter extracts tables in process and builds the workbook.
type LocalConverter struct {
	extractor *extractor.Extractor
}

// NewLocalConverter creates an in-process converter.
func NewLocalConverter(ex *extractor.Extractor) *LocalConverter {
	return &LocalConverter{extractor: ex}
}

// Convert extracts every page and writes one sheet per page.
func (c *LocalConverter) Convert(ctx context.Context, pdf []byte) ([]byte, error) {
	pages, err := c.extractor.Extract(ctx, pdf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", report.ErrConversionFailure, err)
	}

	wb, err := workbook.Build(pages)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", report.ErrConversionFailure, err)
	}
	defer wb.Close()

	data, err := wb.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", report.ErrConversionFailure, err)
	}
	return data, nil
}
