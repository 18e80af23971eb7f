package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/FACorreiaa/report-tracker/internal/domain/report"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/cleaner"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/converter"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/crawler"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/extractor"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/fetcher"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/locator"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/monthly"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/repository"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/service"
	"github.com/FACorreiaa/report-tracker/pkg/config"
	"github.com/FACorreiaa/report-tracker/pkg/cron"
	"github.com/FACorreiaa/report-tracker/pkg/db"
	"github.com/FACorreiaa/report-tracker/pkg/storage"
)

// converterTimeout bounds one remote PDF conversion.
const converterTimeout = 5 * time.Minute

// Dependencies holds all application dependencies
type Dependencies struct {
	Config   *config.Config
	DB       *db.DB
	Logger   *slog.Logger
	Registry *prometheus.Registry

	// Repositories
	ReportRepo repository.ReportRepository

	// Pipeline components
	HTTPClient *http.Client
	Fetcher    *fetcher.Fetcher
	Locator    *locator.Locator
	Crawler    *crawler.Crawler
	Converter  converter.Converter
	Monthly    *monthly.Extractor
	Storage    storage.Storage

	// Services
	IngestService *service.IngestService
	Scheduler     *cron.Scheduler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	deps.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize database
	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	// Initialize repositories
	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	// Initialize pipeline components
	if err := deps.initComponents(ctx); err != nil {
		return nil, fmt.Errorf("failed to init pipeline components: %w", err)
	}

	// Initialize services
	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase(ctx context.Context) error {
	database, err := db.New(ctx, db.Config{
		Driver:          db.Driver(d.Config.Database.Driver),
		DSN:             d.Config.Database.DSN(),
		SQLitePath:      d.Config.Database.SQLitePath,
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	// Run migrations
	if err := d.DB.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully",
		slog.String("driver", string(d.DB.Driver)),
	)
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	switch d.DB.Driver {
	case db.DriverPostgres:
		d.ReportRepo = repository.NewPostgresReportRepository(d.DB.Pool)
	case db.DriverSQLite:
		d.ReportRepo = repository.NewSQLiteReportRepository(d.DB.SQL)
	default:
		return fmt.Errorf("no report repository for driver %q", d.DB.Driver)
	}

	d.Logger.Info("repositories initialized")
	return nil
}

// initComponents builds the fetch, conversion and storage stages
func (d *Dependencies) initComponents(ctx context.Context) error {
	fc := d.Config.Fetcher

	d.HTTPClient = &http.Client{Timeout: fc.Timeout}
	d.Fetcher = fetcher.New(d.HTTPClient, d.Logger).
		WithBackoff(fetcher.Backoff{MaxAttempts: fc.MaxAttempts, BaseDelay: fc.BaseDelay}).
		WithReferer(fc.BaseURL).
		WithMaxBody(fc.MaxBodyBytes)
	if fc.UserAgent != "" {
		d.Fetcher.WithUserAgent(fc.UserAgent)
	}
	if fc.RatePerSecond > 0 {
		d.Fetcher.WithRateLimit(fc.RatePerSecond, fc.RateBurst)
	}

	d.Locator = locator.New(fc.BaseURL)

	if d.Config.Pipeline.CrawlEnabled {
		c, err := crawler.New(d.HTTPClient, fc.BaseURL, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to init crawler: %w", err)
		}
		d.Crawler = c.WithKnown(d.ReportRepo)
	}

	mode, err := converter.ParseMode(d.Config.Converter.Mode)
	if err != nil {
		return err
	}
	switch mode {
	case converter.ModeService:
		client := &http.Client{Timeout: converterTimeout}
		d.Converter = converter.NewHTTPConverter(client, d.Config.Converter.Endpoint, d.Config.Converter.Token, d.Logger)
	default:
		d.Converter = converter.NewLocalConverter(extractor.New(d.Logger))
	}

	cleanerCfg := cleaner.DefaultConfig()
	if len(d.Config.Cleaner.BlankColumns) > 0 {
		cleanerCfg.BlankColumns = d.Config.Cleaner.BlankColumns
	}
	if len(d.Config.Cleaner.RedactLabels) > 0 {
		cleanerCfg.RedactLabels = d.Config.Cleaner.RedactLabels
	}
	cl, err := cleaner.New(cleanerCfg)
	if err != nil {
		return fmt.Errorf("invalid cleaner config: %w", err)
	}
	d.Monthly = monthly.NewExtractor(cl)

	sc := d.Config.Storage
	d.Storage, err = storage.New(ctx, &storage.Config{
		Type:               storage.StorageType(sc.Type),
		LocalPath:          sc.LocalPath,
		GCSBucket:          sc.GCSBucket,
		GCSPrefix:          sc.GCSPrefix,
		GCSCredentialsFile: sc.GCSCredentialsFile,
		GCSEndpoint:        sc.GCSEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to init file storage: %w", err)
	}

	d.Logger.Info("pipeline components initialized",
		slog.String("extract_mode", string(mode)),
		slog.String("storage", sc.Type),
		slog.Bool("crawl", d.Crawler != nil),
	)
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	cats := make([]report.Category, 0, len(d.Config.Pipeline.Categories))
	for _, s := range d.Config.Pipeline.Categories {
		c, err := report.ParseCategory(s)
		if err != nil {
			return err
		}
		cats = append(cats, c)
	}

	d.IngestService = service.NewIngestService(d.ReportRepo, d.Locator, d.Fetcher, d.Converter, d.Storage, d.Logger).
		WithMetrics(service.NewMetrics(d.Registry)).
		WithCategories(cats...)
	if d.Crawler != nil {
		d.IngestService.WithCrawler(d.Crawler)
	}
	if d.Config.Pipeline.MonthlyOnIngest {
		d.IngestService.WithMonthly(d.Monthly)
	}

	d.Scheduler = cron.NewScheduler(d.IngestService, d.Config.Scheduler.Spec, d.Config.Scheduler.RunTimeout, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if closer, ok := d.Storage.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			d.Logger.Warn("failed to close storage", slog.Any("error", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
