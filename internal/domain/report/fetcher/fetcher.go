// Package fetcher downloads candidate report documents with bounded retries
// and validates that what came back is a PDF before anyone persists it.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/FACorreiaa/report-tracker/internal/domain/report"
)

// pdfMagic is the header every PDF file starts with.
var pdfMagic = []byte("%PDF")

// DefaultUserAgent mimics a desktop browser; the publisher rejects bare clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// DefaultMaxBodyBytes caps a single download.
const DefaultMaxBodyBytes = 64 << 20

// Doer is the HTTP transport; *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Document is a validated PDF download.
type Document struct {
	URL          string
	Body         []byte
	LastModified time.Time
	Attempts     int
}

// Fetcher retrieves documents one URL at a time.
type Fetcher struct {
	client    Doer
	backoff   Backoff
	sleep     Sleeper
	limiter   *rate.Limiter
	logger    *slog.Logger
	userAgent string
	referer   string
	maxBody   int64
}

// New creates a fetcher with the default backoff and real sleeps.
func New(client Doer, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:    client,
		backoff:   DefaultBackoff(),
		sleep:     SleepContext,
		logger:    logger,
		userAgent: DefaultUserAgent,
		maxBody:   DefaultMaxBodyBytes,
	}
}

// WithBackoff sets the retry policy.
func (f *Fetcher) WithBackoff(b Backoff) *Fetcher {
	f.backoff = b
	return f
}

// WithSleeper replaces the wait between attempts (tests inject a recorder).
func (f *Fetcher) WithSleeper(s Sleeper) *Fetcher {
	f.sleep = s
	return f
}

// WithRateLimit spaces requests to at most perSecond, allowing burst.
// A non-positive rate disables limiting.
func (f *Fetcher) WithRateLimit(perSecond float64, burst int) *Fetcher {
	if perSecond <= 0 {
		f.limiter = nil
		return f
	}
	if burst < 1 {
		burst = 1
	}
	f.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return f
}

// WithReferer sets the Referer header sent with every request.
func (f *Fetcher) WithReferer(referer string) *Fetcher {
	f.referer = referer
	return f
}

// WithMaxBody caps the accepted body size. Larger documents are rejected.
func (f *Fetcher) WithMaxBody(n int64) *Fetcher {
	if n > 0 {
		f.maxBody = n
	}
	return f
}

// WithUserAgent overrides the User-Agent header.
func (f *Fetcher) WithUserAgent(ua string) *Fetcher {
	if ua != "" {
		f.userAgent = ua
	}
	return f
}

// IsPDF reports whether body starts with the PDF magic bytes.
func IsPDF(body []byte) bool {
	return bytes.HasPrefix(body, pdfMagic)
}

// statusError is a non-404, non-2xx response.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// Fetch downloads url. It returns report.ErrNotFound for 404 (no retry),
// report.ErrContentMismatch for a successful response that is not a PDF or
// is larger than the body cap (no retry), and report.ErrTransient once every attempt failed with a
// network error or another status.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Document, error) {
	log := f.logger.With(slog.String("url", url))
	attempts := f.backoff.Attempts()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		doc, err := f.attempt(ctx, url)
		switch {
		case err == nil:
			doc.Attempts = attempt
			return doc, nil
		case errors.Is(err, report.ErrNotFound), errors.Is(err, report.ErrContentMismatch):
			return nil, err
		case ctx.Err() != nil:
			return nil, fmt.Errorf("%w: %s: %v", report.ErrTransient, url, ctx.Err())
		}

		lastErr = err
		if attempt == attempts {
			break
		}

		delay := f.backoff.Delay(attempt)
		log.Warn("fetch failed, will retry",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("backoff", delay),
			slog.Any("error", err),
		)
		if err := f.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", report.ErrTransient, url, err)
		}
	}

	return nil, fmt.Errorf("%w: %s failed after %d attempts: %v", report.ErrTransient, url, attempts, lastErr)
}

func (f *Fetcher) attempt(ctx context.Context, url string) (*Document, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		// A malformed URL will not improve with retries.
		return nil, fmt.Errorf("%w: invalid url %s: %v", report.ErrNotFound, url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/pdf,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	if f.referer != "" {
		req.Header.Set("Referer", f.referer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %s", report.ErrNotFound, url)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > f.maxBody {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", report.ErrContentMismatch, url, f.maxBody)
	}
	if !IsPDF(body) {
		return nil, fmt.Errorf("%w: %s (content-type %q)", report.ErrContentMismatch, url, resp.Header.Get("Content-Type"))
	}

	doc := &Document{URL: url, Body: body}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			doc.LastModified = t
		}
	}
	return doc, nil
}
