// Package service runs the ingestion pipeline: candidate discovery, dedup
// check, download, conversion, number formatting, artifact storage and
// registration.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/report-tracker/internal/domain/report"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/cleaner"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/converter"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/fetcher"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/locator"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/monthly"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/repository"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/workbook"
	"github.com/FACorreiaa/report-tracker/pkg/storage"
)

const tracerName = "github.com/FACorreiaa/report-tracker/internal/domain/report/service"

// Artifact key prefixes inside the store.
const (
	PDFPrefix         = "pdfs"
	SpreadsheetPrefix = "xlsx"
	contentTypePDF    = "application/pdf"
	contentTypeXLSX   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// CandidateSource generates speculative candidates
type CandidateSource interface {
	Candidates(now time.Time, category report.Category) []locator.Candidate
}

// Discoverer finds candidates by crawling; it never fails
type Discoverer interface {
	Discover(ctx context.Context, category report.Category) []locator.Candidate
}

// DocumentFetcher downloads one PDF
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Document, error)
}

// Outcome classifies what happened to one candidate.
type Outcome string

const (
	OutcomeIngested   Outcome = "ingested"
	OutcomeKnown      Outcome = "already_known"
	OutcomeNotFound   Outcome = "not_found"
	OutcomeMismatch   Outcome = "content_mismatch"
	OutcomeTransient  Outcome = "transient"
	OutcomeConversion Outcome = "conversion_failure"
	OutcomeConflict   Outcome = "conflict"
	OutcomeStorage    Outcome = "storage_failure"
	OutcomeRegistry   Outcome = "registry_failure"
)

// RunResult summarises one pipeline run
type RunResult struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Candidates int
	Outcomes   map[Outcome]int
	Ingested   []*report.Report
}

// Count returns how many candidates ended with o.
func (r *RunResult) Count(o Outcome) int {
	return r.Outcomes[o]
}

// IngestService orchestrates the pipeline
type IngestService struct {
	repo       repository.ReportRepository
	locator    CandidateSource
	crawler    Discoverer // Optional: nil disables crawling
	fetcher    DocumentFetcher
	converter  converter.Converter
	store      storage.Storage
	monthly    *monthly.Extractor // Optional: nil skips the Monthly sheet on ingest
	metrics    *Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
	now        func() time.Time
	categories []report.Category
}

// NewIngestService creates a pipeline service
func NewIngestService(
	repo repository.ReportRepository,
	loc CandidateSource,
	f DocumentFetcher,
	conv converter.Converter,
	store storage.Storage,
	logger *slog.Logger,
) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		repo:       repo,
		locator:    loc,
		fetcher:    f,
		converter:  conv,
		store:      store,
		metrics:    NewMetrics(nil),
		tracer:     otel.Tracer(tracerName),
		logger:     logger,
		now:        time.Now,
		categories: report.Categories(),
	}
}

// WithCrawler adds the crawler as a secondary candidate source.
func (s *IngestService) WithCrawler(d Discoverer) *IngestService {
	s.crawler = d
	return s
}

// WithMonthly derives the Monthly sheet for every ingested workbook.
func (s *IngestService) WithMonthly(ex *monthly.Extractor) *IngestService {
	s.monthly = ex
	return s
}

// WithMetrics sets the collectors.
func (s *IngestService) WithMetrics(m *Metrics) *IngestService {
	if m != nil {
		s.metrics = m
	}
	return s
}

// WithClock replaces time.Now.
func (s *IngestService) WithClock(now func() time.Time) *IngestService {
	s.now = now
	return s
}

// WithCategories limits the run to cats.
func (s *IngestService) WithCategories(cats ...report.Category) *IngestService {
	if len(cats) > 0 {
		s.categories = cats
	}
	return s
}

// Run processes every candidate sequentially. Per-candidate failures are
// counted and logged; a run with nothing ingested is the only failure signal.
func (s *IngestService) Run(ctx context.Context) *RunResult {
	res := &RunResult{
		RunID:     uuid.New(),
		StartedAt: s.now(),
		Outcomes:  make(map[Outcome]int),
	}
	log := s.logger.With(slog.String("run_id", res.RunID.String()))

	ctx, span := s.tracer.Start(ctx, "ingest.run",
		trace.WithAttributes(attribute.String("run.id", res.RunID.String())))
	defer span.End()

	s.metrics.Runs.Inc()
	log.Info("pipeline run started")

	for _, cand := range s.candidates(ctx, res.StartedAt) {
		if ctx.Err() != nil {
			log.Warn("pipeline run cancelled", slog.Any("error", ctx.Err()))
			break
		}
		res.Candidates++

		outcome, rep := s.process(ctx, log, cand)
		res.Outcomes[outcome]++
		s.metrics.Candidates.WithLabelValues(string(cand.Category), string(outcome)).Inc()
		if rep != nil {
			res.Ingested = append(res.Ingested, rep)
			s.metrics.Ingested.WithLabelValues(string(cand.Category)).Inc()
		}
	}

	res.FinishedAt = s.now()
	s.metrics.RunDuration.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
	span.SetAttributes(
		attribute.Int("run.candidates", res.Candidates),
		attribute.Int("run.ingested", len(res.Ingested)),
	)

	attrs := []any{
		slog.Int("candidates", res.Candidates),
		slog.Int("ingested", len(res.Ingested)),
		slog.Duration("duration", res.FinishedAt.Sub(res.StartedAt)),
	}
	for o, n := range res.Outcomes {
		attrs = append(attrs, slog.Int(string(o), n))
	}
	if len(res.Ingested) == 0 {
		log.Warn("pipeline run finished without new reports", attrs...)
	} else {
		log.Info("pipeline run finished", attrs...)
	}
	return res
}

// candidates merges locator and crawler candidates, first occurrence of a URL wins.
func (s *IngestService) candidates(ctx context.Context, now time.Time) []locator.Candidate {
	seen := make(map[string]bool)
	var out []locator.Candidate
	add := func(cs []locator.Candidate) {
		for _, c := range cs {
			if c.URL == "" || seen[c.URL] {
				continue
			}
			seen[c.URL] = true
			out = append(out, c)
		}
	}
	for _, cat := range s.categories {
		add(s.locator.Candidates(now, cat))
		if s.crawler != nil {
			add(s.crawler.Discover(ctx, cat))
		}
	}
	return out
}

func (s *IngestService) process(ctx context.Context, runLog *slog.Logger, cand locator.Candidate) (Outcome, *report.Report) {
	ctx, span := s.tracer.Start(ctx, "ingest.candidate", trace.WithAttributes(
		attribute.String("report.category", string(cand.Category)),
		attribute.String("report.url", cand.URL),
	))
	defer span.End()

	log := runLog.With(
		slog.String("category", string(cand.Category)),
		slog.String("url", cand.URL),
	)

	outcome, rep, err := s.ingest(ctx, log, cand)
	span.SetAttributes(attribute.String("report.outcome", string(outcome)))

	switch outcome {
	case OutcomeIngested:
		log.Info("report ingested",
			slog.Int64("report_id", rep.ID),
			slog.String("file_name", rep.FileName),
		)
	case OutcomeKnown:
		log.Debug("report already registered")
	case OutcomeNotFound, OutcomeMismatch:
		log.Debug("candidate skipped", slog.String("outcome", string(outcome)), slog.Any("error", err))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, string(outcome))
		log.Warn("candidate failed", slog.String("outcome", string(outcome)), slog.Any("error", err))
	}
	return outcome, rep
}

func (s *IngestService) ingest(ctx context.Context, log *slog.Logger, cand locator.Candidate) (Outcome, *report.Report, error) {
	fileName := cand.FileName
	if fileName == "" {
		fileName = report.BaseName(cand.URL)
	}

	sourceURL := cand.SourceURL
	if sourceURL == "" {
		sourceURL = cand.URL
	}

	known, err := s.repo.Exists(ctx, cand.URL, fileName)
	if err == nil && !known && sourceURL != cand.URL {
		known, err = s.repo.Exists(ctx, sourceURL, "")
	}
	if err != nil {
		return OutcomeRegistry, nil, fmt.Errorf("failed to check registry: %w", err)
	}
	if known {
		return OutcomeKnown, nil, nil
	}

	doc, err := s.fetcher.Fetch(ctx, cand.URL)
	if err != nil {
		return fetchOutcome(err), nil, err
	}
	s.metrics.FetchTries.Add(float64(doc.Attempts))

	xlsx, err := s.converter.Convert(ctx, doc.Body)
	if err != nil {
		return OutcomeConversion, nil, err
	}
	xlsx = s.format(log, xlsx)

	pdfKey := ArtifactKey(PDFPrefix, cand.Category, fileName)
	xlsxKey := ArtifactKey(SpreadsheetPrefix, cand.Category, SpreadsheetName(fileName))

	pdfInfo, err := s.store.Put(ctx, pdfKey, contentTypePDF, bytes.NewReader(doc.Body))
	if err != nil {
		return OutcomeStorage, nil, fmt.Errorf("failed to store pdf: %w", err)
	}
	xlsxInfo, err := s.store.Put(ctx, xlsxKey, contentTypeXLSX, bytes.NewReader(xlsx))
	if err != nil {
		if derr := s.store.Delete(ctx, pdfKey); derr != nil {
			log.Warn("failed to remove orphaned pdf", slog.String("key", pdfKey), slog.Any("error", derr))
		}
		return OutcomeStorage, nil, fmt.Errorf("failed to store spreadsheet: %w", err)
	}

	publish := doc.LastModified
	if publish.IsZero() {
		publish = s.now()
	}
	rep := &report.Report{
		Category:        cand.Category,
		Title:           cand.Title,
		SourceURL:       sourceURL,
		DocumentURL:     doc.URL,
		LocalPath:       pdfInfo.Path,
		FileName:        fileName,
		SpreadsheetPath: xlsxInfo.Path,
		PublishDate:     publish.UTC(),
	}
	if _, err := s.repo.Insert(ctx, rep); err != nil {
		// The artifacts stay: their keys belong to whichever run registered the report.
		if errors.Is(err, report.ErrConflict) {
			return OutcomeConflict, nil, err
		}
		return OutcomeRegistry, nil, fmt.Errorf("failed to register report: %w", err)
	}
	return OutcomeIngested, rep, nil
}

// format applies number formatting and the optional Monthly sheet. Failures
// keep the converter output as it was.
func (s *IngestService) format(log *slog.Logger, xlsx []byte) []byte {
	wb, err := workbook.OpenBytes(xlsx)
	if err != nil {
		log.Warn("failed to open spreadsheet for formatting", slog.Any("error", err))
		return xlsx
	}
	defer wb.Close()
	wb.WithLogger(log)

	changed, err := wb.FormatNumbers()
	if err != nil {
		log.Warn("failed to format numbers", slog.Any("error", err))
		return xlsx
	}

	if s.monthly != nil {
		res, err := wb.ApplyMonthly(s.monthly)
		switch {
		case errors.Is(err, report.ErrNotFound):
			log.Debug("no monthly section")
		case err != nil:
			log.Warn("failed to derive monthly sheet", slog.Any("error", err))
		default:
			changed++
			log.Debug("monthly sheet written",
				slog.Int("rows", res.FinalRowCount),
				slog.Int("redacted", len(res.RedactedRows)),
			)
		}
	}

	if changed == 0 {
		return xlsx
	}
	out, err := wb.Bytes()
	if err != nil {
		log.Warn("failed to serialise formatted spreadsheet", slog.Any("error", err))
		return xlsx
	}
	return out
}

func fetchOutcome(err error) Outcome {
	switch {
	case errors.Is(err, report.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, report.ErrContentMismatch):
		return OutcomeMismatch
	default:
		return OutcomeTransient
	}
}

// ArtifactKey is the storage key of an artifact: prefix/category/name.
func ArtifactKey(prefix string, category report.Category, name string) string {
	return path.Join(prefix, string(category), name)
}

// SpreadsheetName maps a PDF file name to its workbook name.
func SpreadsheetName(pdfName string) string {
	base := pdfName
	if ext := path.Ext(base); strings.EqualFold(ext, ".pdf") {
		base = strings.TrimSuffix(base, ext)
	}
	return base + ".xlsx"
}

// PostProcess derives the Monthly sheet of the stored workbook at key and
// writes it back. A missing monthly section returns report.ErrNotFound, wrapped.
func (s *IngestService) PostProcess(ctx context.Context, key string) (cleaner.Result, error) {
	ex := s.monthly
	if ex == nil {
		ex = monthly.NewExtractor(cleaner.MustNew(cleaner.DefaultConfig()))
	}
	return PostProcess(ctx, s.store, key, ex)
}

// PostProcess runs Monthly then Cleaner on the workbook stored at key.
func PostProcess(ctx context.Context, store storage.Storage, key string, ex *monthly.Extractor) (cleaner.Result, error) {
	r, err := store.Open(ctx, key)
	if err != nil {
		return cleaner.Result{}, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	wb, err := workbook.Open(r)
	r.Close()
	if err != nil {
		return cleaner.Result{}, err
	}
	defer wb.Close()

	res, err := wb.ApplyMonthly(ex)
	if err != nil {
		return cleaner.Result{}, err
	}
	data, err := wb.Bytes()
	if err != nil {
		return cleaner.Result{}, err
	}
	if _, err := store.Put(ctx, key, contentTypeXLSX, bytes.NewReader(data)); err != nil {
		return cleaner.Result{}, fmt.Errorf("failed to store spreadsheet: %w", err)
	}
	return res, nil
}

// Remove unregisters a report and deletes its artifacts
func (s *IngestService) Remove(ctx context.Context, id int64) error {
	rep, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	for _, key := range []string{
		ArtifactKey(PDFPrefix, rep.Category, rep.FileName),
		ArtifactKey(SpreadsheetPrefix, rep.Category, SpreadsheetName(rep.FileName)),
	} {
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to delete artifact",
				slog.Int64("report_id", id),
				slog.String("key", key),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

// List returns the newest reports of category
func (s *IngestService) List(ctx context.Context, category report.Category, limit int) ([]*report.Report, error) {
	return s.repo.ListByCategory(ctx, category, limit)
}

// Stats returns registry statistics
func (s *IngestService) Stats(ctx context.Context) (*report.Stats, error) {
	return s.repo.Stats(ctx)
}
