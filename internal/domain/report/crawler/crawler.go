// Package crawler discovers report documents by walking the publisher's
// press-release listing. The markup is unstable, so this is only ever a
// secondary source of candidates next to the locator.
package crawler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/FACorreiaa/report-tracker/internal/domain/report"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/fetcher"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/locator"
)

// DefaultListingPath is the press-release index relative to the base URL.
const DefaultListingPath = "/nav/?content=press-releases"

// Selectors for the listing and report pages.
var postSelectors = map[report.Category]string{
	report.CategoryPassenger:  "div.post.pr-pc",
	report.CategoryCommercial: "div.post.pr-cv",
}

const (
	postLinkSelector = "h2 a"
	postDateSelector = "span.terms"
	pdfLinkSelector  = "div._pdf_.block-container a.btn.has-file-icon"
)

// Known reports whether a report page or document was already ingested.
// The report repository satisfies it.
type Known interface {
	Exists(ctx context.Context, url, fileName string) (bool, error)
}

// Crawler scrapes the listing page for report links.
type Crawler struct {
	client      fetcher.Doer
	known       Known
	baseURL     *url.URL
	listingPath string
	userAgent   string
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a crawler rooted at baseURL.
func New(client fetcher.Doer, baseURL string, logger *slog.Logger) (*Crawler, error) {
	if baseURL == "" {
		baseURL = locator.DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		client:      client,
		baseURL:     u,
		listingPath: DefaultListingPath,
		userAgent:   fetcher.DefaultUserAgent,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// WithKnown makes Discover skip report pages that are already registered
// without opening them.
func (c *Crawler) WithKnown(k Known) *Crawler {
	c.known = k
	return c
}

// Post is one entry of the listing page.
type Post struct {
	PageURL string
	Title   string
	Date    string
}

// Discover returns candidates for category found through the listing page.
// It never fails: problems are logged and yield fewer candidates.
func (c *Crawler) Discover(ctx context.Context, category report.Category) []locator.Candidate {
	log := c.logger.With(slog.String("category", string(category)))

	posts, err := c.ListPosts(ctx, category)
	if err != nil {
		log.Warn("press release listing unavailable", slog.Any("error", err))
		return nil
	}

	out := make([]locator.Candidate, 0, len(posts))
	skipped := 0
	for _, p := range posts {
		if c.seen(ctx, p.PageURL) {
			skipped++
			continue
		}
		pdfURL, title, err := c.DocumentLink(ctx, p.PageURL)
		if err != nil {
			log.Warn("no document link on report page",
				slog.String("page", p.PageURL),
				slog.Any("error", err),
			)
			continue
		}
		if title == "" {
			title = p.Title
		}
		out = append(out, locator.Candidate{
			URL:       pdfURL,
			SourceURL: p.PageURL,
			Category:  category,
			Year:      c.now().Year(),
			FileName:  c.fileName(pdfURL, category),
			Title:     title,
		})
	}

	log.Info("crawl finished",
		slog.Int("posts", len(posts)),
		slog.Int("known", skipped),
		slog.Int("documents", len(out)),
	)
	return out
}

// ListPosts parses the listing page for posts of category.
func (c *Crawler) ListPosts(ctx context.Context, category report.Category) ([]Post, error) {
	sel, ok := postSelectors[category]
	if !ok {
		return nil, fmt.Errorf("no listing selector for category %s", category)
	}

	doc, err := c.document(ctx, c.resolve(c.listingPath))
	if err != nil {
		return nil, err
	}

	var posts []Post
	doc.Find(sel).Each(func(_ int, post *goquery.Selection) {
		link := post.Find(postLinkSelector).First()
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		posts = append(posts, Post{
			PageURL: c.resolve(href),
			Title:   strings.TrimSpace(link.Text()),
			Date:    strings.TrimSpace(post.Find(postDateSelector).First().Text()),
		})
	})
	return posts, nil
}

// DocumentLink finds the PDF link on a report page.
func (c *Crawler) DocumentLink(ctx context.Context, pageURL string) (string, string, error) {
	doc, err := c.document(ctx, pageURL)
	if err != nil {
		return "", "", err
	}
	link := doc.Find(pdfLinkSelector).First()
	href, ok := link.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", "", fmt.Errorf("%w: pdf link on %s", report.ErrNotFound, pageURL)
	}
	return c.resolve(href), strings.TrimSpace(link.Text()), nil
}

// seen is true when the page is registered. Lookup errors count as unseen;
// the ingest step checks again before fetching.
func (c *Crawler) seen(ctx context.Context, pageURL string) bool {
	if c.known == nil {
		return false
	}
	ok, err := c.known.Exists(ctx, pageURL, "")
	if err != nil {
		c.logger.Warn("registry lookup failed",
			slog.String("page", pageURL),
			slog.Any("error", err),
		)
		return false
	}
	return ok
}

func (c *Crawler) document(ctx context.Context, target string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Referer", c.baseURL.String()+"/")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, target)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", target, err)
	}
	return doc, nil
}

func (c *Crawler) resolve(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return c.baseURL.ResolveReference(ref).String()
}

// fileName is the URL basename for .pdf links, else
// {CATEGORY}_{YYYYMMDD}_{hash}.pdf where hash identifies the document URL.
func (c *Crawler) fileName(pdfURL string, category report.Category) string {
	name := report.BaseName(pdfURL)
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return name
	}
	sum := sha256.Sum256([]byte(pdfURL))
	return fmt.Sprintf("%s_%s_%s.pdf", category, c.now().Format("20060102"), hex.EncodeToString(sum[:4]))
}
