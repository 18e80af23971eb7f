// Command ingest runs the registration report pipeline: once, on a schedule,
// or as a Monthly post-process over an existing workbook.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FACorreiaa/report-tracker/internal/domain/report"
	"github.com/FACorreiaa/report-tracker/internal/domain/report/service"
	"github.com/FACorreiaa/report-tracker/pkg/config"
	"github.com/FACorreiaa/report-tracker/pkg/storage"
)

func main() {
	once := flag.Bool("once", false, "run the pipeline once and exit")
	postprocess := flag.String("postprocess", "", "derive the Monthly sheet of this xlsx file and exit")
	list := flag.String("list", "", "print the registered reports of a category (PC or CV) as CSV and exit")
	limit := flag.Int("limit", 50, "maximum rows printed by -list")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Observability)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := options{once: *once, postprocess: *postprocess, list: *list, limit: *limit}
	if err := run(ctx, cfg, logger, opts); err != nil {
		logger.Error("ingest failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// options are the one-shot modes selected on the command line.
type options struct {
	once        bool
	postprocess string
	list        string
	limit       int
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts options) error {
	deps, err := InitDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	if opts.postprocess != "" {
		return runPostProcess(ctx, deps, opts.postprocess)
	}

	if opts.list != "" {
		return exportReports(ctx, deps, opts.list, opts.limit, os.Stdout)
	}

	if opts.once {
		res := deps.Scheduler.RunNow(ctx)
		logger.Info("single run finished",
			slog.Int("candidates", res.Candidates),
			slog.Int("ingested", len(res.Ingested)),
		)
		return nil
	}

	var srv *http.Server
	if cfg.Observability.MetricsEnabled {
		srv = metricsServer(deps, cfg.Observability.MetricsPort)
		go func() {
			logger.Info("metrics server listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", slog.Any("error", err))
			}
		}()
	}

	if cfg.Scheduler.Enabled {
		if err := deps.Scheduler.Start(); err != nil {
			return err
		}
	}

	// first run at startup, as the schedule only fires after one interval
	initial := make(chan struct{})
	go func() {
		defer close(initial)
		deps.Scheduler.RunNow(ctx)
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")
	<-initial

	if cfg.Scheduler.Enabled {
		<-deps.Scheduler.Stop().Done()
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", slog.Any("error", err))
		}
	}
	return nil
}

// runPostProcess treats the file's directory as a local store.
func runPostProcess(ctx context.Context, deps *Dependencies, path string) error {
	store, err := storage.NewLocalStorage(filepath.Dir(path))
	if err != nil {
		return err
	}
	res, err := service.PostProcess(ctx, store, filepath.Base(path), deps.Monthly)
	if errors.Is(err, report.ErrNotFound) {
		deps.Logger.Warn("no monthly section found", slog.String("file", path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to post-process %s: %w", path, err)
	}
	deps.Logger.Info("monthly sheet written",
		slog.String("file", path),
		slog.Int("rows", res.FinalRowCount),
		slog.Int("columns", res.FinalWidth),
		slog.Int("redacted_rows", len(res.RedactedRows)),
	)
	return nil
}

func metricsServer(deps *Dependencies, port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func newLogger(cfg config.ObservabilityConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
