// Command indexbuild builds (or overwrites) the site search index file from
// a directory of HTML pages.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rdejong/sitesearch/internal/index/builder"
	"github.com/rdejong/sitesearch/internal/index/source"
	"github.com/rdejong/sitesearch/pkg/config"
	"github.com/rdejong/sitesearch/pkg/logger"
	"github.com/rdejong/sitesearch/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	pagesDir := flag.String("pages", "", "pages directory (overrides config)")
	outPath := flag.String("out", "", "index file path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *pagesDir != "" {
		cfg.Index.PagesDir = *pagesDir
	}
	if *outPath != "" {
		cfg.Index.IndexPath = *outPath
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	docs, err := source.Dir(cfg.Index.PagesDir)
	if err != nil {
		slog.Error("failed to list pages", "dir", cfg.Index.PagesDir, "error", err)
		os.Exit(1)
	}
	if len(docs) == 0 {
		slog.Warn("no pages found, writing empty index", "dir", cfg.Index.PagesDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Index.BuildTimeout)
	defer cancel()

	// The scrape endpoint stays up for the duration of the build, which can
	// run for minutes on large page sets.
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	slog.Info("building index",
		"pages_dir", cfg.Index.PagesDir,
		"index_path", cfg.Index.IndexPath,
		"documents", len(docs),
	)
	start := time.Now()
	if err := builder.DoIndex(ctx, docs, cfg.Index.IndexPath); err != nil {
		slog.Error("index build failed, output is unusable", "error", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	if m != nil {
		m.DocsIndexedTotal.Add(float64(len(docs)))
		m.IndexBuildDuration.Observe(elapsed.Seconds())
		if info, err := os.Stat(cfg.Index.IndexPath); err == nil {
			m.IndexSizeBytes.Set(float64(info.Size()))
		}
	}
	slog.Info("index build complete", "duration", elapsed.Round(time.Millisecond))
}
