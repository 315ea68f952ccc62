package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"price-tracker/config"
	"price-tracker/internal/collector"
	"price-tracker/internal/models"
	"price-tracker/internal/redisclient"
	"price-tracker/internal/render"
	"price-tracker/internal/service"
	"price-tracker/internal/store"
	"price-tracker/internal/util"

	"go.uber.org/zap"
)

// Exit codes
const (
	exitOK      = 0
	exitAnomaly = 1
	exitTimeout = 2
	exitFatal   = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	mode := flag.String("mode", "scan", "run mode: scan (full catalog) or sale (on-sale listing)")
	headless := flag.Bool("headless", true, "render pages without a visible browser window")
	noHeadless := flag.Bool("no-headless", false, "show the browser window")
	pages := flag.Int("pages", 0, "stop after N listing pages (0 = all)")
	flag.Parse()

	cfg := config.Load()
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "headless" {
			cfg.Render.Headless = *headless
		}
	})
	if *noHeadless {
		cfg.Render.Headless = false
	}

	if err := cfg.Validate(); err != nil {
		log.Printf("Invalid configuration: %v", err)
		return exitFatal
	}

	listingName, err := listingForMode(*mode)
	if err != nil {
		log.Print(err)
		return exitFatal
	}

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Printf("Failed to initialize logger: %v", err)
		return exitFatal
	}
	defer util.SyncLogger()

	logger := util.GetLogger()

	tp, err := util.InitTracer("price-tracker-scanner", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Error("Failed to initialize tracer", zap.Error(err))
		return exitFatal
	}
	if tp != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Warn("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.Store)
	if err != nil {
		logger.Error("Failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
		return exitFatal
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("Failed to migrate store", zap.Error(err))
		return exitFatal
	}

	var guard service.ObservationGuard
	if cfg.Redis.Addr != "" {
		rc, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			logger.Warn("Redis unavailable, running without observation guard", zap.Error(err))
		} else {
			defer rc.Close()
			guard = rc
		}
	}

	tracker := service.NewTracker(collector.New(cfg.Scrape.MinDelay, cfg.Scrape.MaxDelay, logger), db, guard)
	runner := service.NewRunner(tracker, cfg.Listings(), func(ctx context.Context) (render.Session, error) {
		return render.Open(ctx, cfg.Render, logger)
	})

	stats, err := runner.RunListing(ctx, listingName, *pages)
	printSummary(stats, err)

	if cfg.Observ.PushgatewayURL != "" {
		if perr := util.PushMetrics(cfg.Observ.PushgatewayURL, "price-tracker-"+listingName); perr != nil {
			logger.Warn("Failed to push metrics", zap.Error(perr))
		}
	}

	code := exitCode(err)
	switch code {
	case exitAnomaly:
		logger.Warn("Anomalously few records collected, check for a site change or access block", zap.Error(err))
	case exitTimeout:
		logger.Error("Run exceeded its time budget", zap.Error(err))
	case exitFatal:
		logger.Error("Run failed", zap.Error(err))
	}
	return code
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, service.ErrTooFewRecords):
		return exitAnomaly
	case errors.Is(err, context.DeadlineExceeded):
		return exitTimeout
	default:
		return exitFatal
	}
}

func listingForMode(mode string) (string, error) {
	switch mode {
	case "scan":
		return config.ListingCatalog, nil
	case "sale":
		return config.ListingSale, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want scan or sale)", mode)
	}
}

func printSummary(stats service.RunStats, err error) {
	status := "ok"
	if err != nil {
		status = err.Error()
	}

	fmt.Printf("\nRun %s (%s): %s\n", stats.RunID, stats.Listing, status)
	fmt.Printf("  collected:    %d\n", stats.Collected)
	fmt.Printf("  processed:    %d\n", stats.Processed)
	fmt.Printf("  skipped:      %d\n", stats.Skipped)
	fmt.Printf("  new products: %d\n", stats.NewProducts)
	fmt.Printf("  observations: %d\n", stats.Observations)

	for _, kind := range models.AlertKinds {
		if n := stats.Alerts[kind]; n > 0 {
			fmt.Printf("  %-14s%d\n", string(kind)+":", n)
		}
	}
	fmt.Printf("  duration:     %s\n", stats.Duration.Round(time.Millisecond))
}
