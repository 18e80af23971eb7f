package crawler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/report-tracker/internal/domain/report"
)

const listingHTML = `<html><body>
<div class="post container pr-pc global-competitive">
  <h2><a href="/pr-car-registrations-september-2025/">New car registrations: September 2025</a></h2>
  <span class="terms">21 October 2025</span>
</div>
<div class="post container pr-cv global-competitive">
  <h2><a href="/pr-cv-registrations-q3-2025/">Commercial vehicles Q3 2025</a></h2>
</div>
<div class="post container pr-cv global-competitive">
  <h2><a href="/pr-cv-registrations-q2-2025/">Commercial vehicles Q2 2025</a></h2>
</div>
<div class="post container pr-pc global-competitive">
  <h2><a href="/pr-without-pdf/">Broken post</a></h2>
</div>
<div class="post container pr-pc global-competitive"><h2>no link</h2></div>
</body></html>`

const reportPageHTML = `<html><body>
<div class="_pdf_ block-container">
  <a class="btn has-file-icon" href="/files/Press_release_car_registrations_September_2025.pdf"> Download PDF </a>
</div></body></html>`

const cvPageHTML = `<html><body>
<div class="_pdf_ block-container">
  <a class="btn has-file-icon" href="https://cdn.example.org/download?id=42">Download</a>
</div></body></html>`

const cvQ2PageHTML = `<html><body>
<div class="_pdf_ block-container">
  <a class="btn has-file-icon" href="https://cdn.example.org/download?id=43">Download</a>
</div></body></html>`

// hits counts requests per path.
type hits struct {
	mu sync.Mutex
	n  map[string]int
}

func (h *hits) add(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.n[path]++
}

func (h *hits) get(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.n[path]
}

func newServer(t *testing.T) (*httptest.Server, *hits) {
	t.Helper()
	h := &hits{n: make(map[string]int)}
	pages := map[string]string{
		"/nav/":                                 listingHTML,
		"/pr-car-registrations-september-2025/": reportPageHTML,
		"/pr-cv-registrations-q3-2025/":         cvPageHTML,
		"/pr-cv-registrations-q2-2025/":         cvQ2PageHTML,
		"/pr-without-pdf/":                      "<html><body>nothing</body></html>",
	}
	mux := http.NewServeMux()
	for path, body := range pages {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			h.add(path)
			_, _ = io.WriteString(w, body)
		})
	}
	return httptest.NewServer(mux), h
}

type knownPages struct {
	urls map[string]bool
	err  error
}

func (k knownPages) Exists(_ context.Context, url, _ string) (bool, error) {
	return k.urls[url], k.err
}

func newCrawler(t *testing.T, base string) *Crawler {
	t.Helper()
	c, err := New(http.DefaultClient, base, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2025, time.October, 22, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestListPosts(t *testing.T) {
	srv, _ := newServer(t)
	defer srv.Close()

	posts, err := newCrawler(t, srv.URL).ListPosts(context.Background(), report.CategoryPassenger)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, srv.URL+"/pr-car-registrations-september-2025/", posts[0].PageURL)
	assert.Equal(t, "21 October 2025", posts[0].Date)
}

func TestDiscover_Passenger(t *testing.T) {
	srv, _ := newServer(t)
	defer srv.Close()

	cands := newCrawler(t, srv.URL).Discover(context.Background(), report.CategoryPassenger)
	require.Len(t, cands, 1)
	assert.Equal(t, srv.URL+"/files/Press_release_car_registrations_September_2025.pdf", cands[0].URL)
	assert.Equal(t, srv.URL+"/pr-car-registrations-september-2025/", cands[0].SourceURL)
	assert.Equal(t, "Press_release_car_registrations_September_2025.pdf", cands[0].FileName)
	assert.Equal(t, "Download PDF", cands[0].Title)
}

func TestDiscover_FallbackFileName(t *testing.T) {
	srv, _ := newServer(t)
	defer srv.Close()

	cands := newCrawler(t, srv.URL).Discover(context.Background(), report.CategoryCommercial)
	require.Len(t, cands, 2)

	assert.Equal(t, "https://cdn.example.org/download?id=42", cands[0].URL)
	assert.Equal(t, srv.URL+"/pr-cv-registrations-q3-2025/", cands[0].SourceURL)
	assert.Equal(t, "https://cdn.example.org/download?id=43", cands[1].URL)
	assert.Equal(t, srv.URL+"/pr-cv-registrations-q2-2025/", cands[1].SourceURL)

	for _, c := range cands {
		assert.Regexp(t, `^CV_20251022_[0-9a-f]{8}\.pdf$`, c.FileName)
	}
	assert.NotEqual(t, cands[0].FileName, cands[1].FileName)
}

func TestFileName_StablePerDocument(t *testing.T) {
	c := newCrawler(t, "https://example.org")
	a := c.fileName("https://cdn.example.org/download?id=42", report.CategoryCommercial)
	assert.Equal(t, a, c.fileName("https://cdn.example.org/download?id=42", report.CategoryCommercial))
	assert.NotEqual(t, a, c.fileName("https://cdn.example.org/download?id=43", report.CategoryCommercial))
	assert.Equal(t, "report.pdf", c.fileName("https://cdn.example.org/files/report.pdf", report.CategoryCommercial))
}

func TestDiscover_SkipsKnownPages(t *testing.T) {
	srv, h := newServer(t)
	defer srv.Close()

	known := knownPages{urls: map[string]bool{srv.URL + "/pr-cv-registrations-q3-2025/": true}}
	cands := newCrawler(t, srv.URL).WithKnown(known).Discover(context.Background(), report.CategoryCommercial)

	require.Len(t, cands, 1)
	assert.Equal(t, "https://cdn.example.org/download?id=43", cands[0].URL)
	assert.Equal(t, 0, h.get("/pr-cv-registrations-q3-2025/"))
	assert.Equal(t, 1, h.get("/pr-cv-registrations-q2-2025/"))
}

func TestDiscover_RegistryErrorStillCrawls(t *testing.T) {
	srv, h := newServer(t)
	defer srv.Close()

	known := knownPages{err: errors.New("connection refused")}
	cands := newCrawler(t, srv.URL).WithKnown(known).Discover(context.Background(), report.CategoryCommercial)

	assert.Len(t, cands, 2)
	assert.Equal(t, 1, h.get("/pr-cv-registrations-q3-2025/"))
}

func TestDiscover_ListingDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cands := newCrawler(t, srv.URL).Discover(context.Background(), report.CategoryPassenger)
	assert.Empty(t, cands)
}
