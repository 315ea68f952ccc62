package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"price-tracker/config"
	"price-tracker/internal/api"
	"price-tracker/internal/collector"
	"price-tracker/internal/redisclient"
	"price-tracker/internal/render"
	"price-tracker/internal/service"
	"price-tracker/internal/store"
	"price-tracker/internal/util"
	"price-tracker/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting price tracker server")

	tp, err := util.InitTracer("price-tracker", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
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

	db, err := store.Open(cfg.Store)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	logger.Info("Database ready", zap.String("driver", cfg.Store.Driver))

	var (
		guard       service.ObservationGuard
		redisClient *redisclient.Client
	)
	if cfg.Redis.Addr != "" {
		redisClient, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		guard = redisClient
		logger.Info("Redis connected")
	}

	tracker := service.NewTracker(collector.New(cfg.Scrape.MinDelay, cfg.Scrape.MaxDelay, logger), db, guard)
	runner := service.NewRunner(tracker, cfg.Listings(), func(ctx context.Context) (render.Session, error) {
		return render.Open(ctx, cfg.Render, logger)
	})

	scheduler := worker.NewScheduler(func(ctx context.Context, listing string) error {
		stats, err := runner.RunListing(ctx, listing, 0)
		logger.Info("Run summary",
			zap.String("run_id", stats.RunID),
			zap.String("listing", listing),
			zap.Int("processed", stats.Processed),
			zap.Int("new_products", stats.NewProducts),
			zap.Int("alerts", stats.AlertCount()),
			zap.Duration("duration", stats.Duration))
		return err
	},
		worker.Job{Listing: config.ListingCatalog, Interval: cfg.Schedule.ScanInterval},
		worker.Job{Listing: config.ListingSale, Interval: cfg.Schedule.SaleInterval},
	)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(db, scheduler)
	if redisClient != nil {
		handler.AddReadinessCheck("redis", redisClient)
	}
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scheduler.Start(gctx)
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		util.SyncLogger()
		os.Exit(1)
	}

	logger.Info("Server exited")
}
