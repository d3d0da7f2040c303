package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/config"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/database"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/httpserver"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/inspector"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/metrics"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/middleware"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/presenter"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/telemetry"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/sdk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use logger yet
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	baseLogger, err := middleware.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer baseLogger.Sync()

	// Everything the SDK logs also lands in the inspector
	recorder := inspector.NewRecorder(cfg.Inspector.MaxLogs, cfg.Inspector.MaxEvents)
	logger := recorder.Wrap(baseLogger)

	logger.Info("starting Kasrah SDK demo host",
		zap.String("api", cfg.API.BaseURL),
		zap.String("sdk_version", cfg.API.SDKVersion),
		zap.String("inspector_addr", cfg.Inspector.Addr),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(cfg.Metrics.Namespace, reg)

	opts := []sdk.Option{
		sdk.WithLogger(logger),
		sdk.WithMetrics(m),
	}
	checks := make(map[string]httpserver.HealthChecker)

	// Player id persistence
	switch cfg.Identity.Store {
	case "redis":
		rdb, err := database.NewRedisDB(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer rdb.Close()
		opts = append(opts, sdk.WithPlayerStore(rdb.PlayerStore("kasrah:")))
		checks["redis"] = rdb
	case "postgres":
		db, err := database.NewPostgresDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
		}
		defer db.Close()
		opts = append(opts, sdk.WithPlayerStore(db.PlayerStore()))
		checks["postgres"] = db
	}

	// Analytics mirror
	if cfg.Telemetry.ClickHouse.Enabled {
		conn, err := database.NewClickHouse(ctx, cfg.Telemetry.ClickHouse, logger)
		if err != nil {
			logger.Fatal("failed to connect to ClickHouse", zap.Error(err))
		}
		defer conn.Close()
		opts = append(opts, sdk.WithSink(telemetry.NewClickHouseSink(conn, cfg.Telemetry.ClickHouse.Table)))
	}

	// The demo host has no DOM; presentations wait on the HTTP surface
	headless := presenter.NewHeadless(logger)
	opts = append(opts, sdk.WithPresenter(headless))

	client, err := sdk.New(cfg, opts...)
	if err != nil {
		logger.Fatal("failed to create SDK client", zap.Error(err))
	}
	recorder.ObserveHooks(client.Hooks())
	recorder.SetIdentity(func() (string, string) { return client.GameID(), client.PlayerID() })

	if !client.Init(ctx, sdk.InitOptions{}) {
		logger.Fatal("SDK initialization aborted")
	}

	if !cfg.Inspector.Enabled {
		logger.Info("inspector disabled, waiting for signal")
		waitForSignal()
		shutdownClient(client, cfg, logger)
		return
	}

	handler := httpserver.NewServer(&httpserver.Dependencies{
		Client:    client,
		Presenter: headless,
		Recorder:  recorder,
		Config:    cfg,
		Logger:    logger,
		Gatherer:  reg,
		Checks:    checks,
	})

	// Recovery -> Logging -> RateLimit -> Handler
	recoveryMW := middleware.NewRecoveryMiddleware(baseLogger)
	loggingMW := middleware.NewLoggingMiddleware(baseLogger)
	rateLimitMW := middleware.NewRateLimitMiddleware(cfg.RateLimit, baseLogger)
	rateLimitMW.SetMetrics(m)

	finalHandler := middleware.Chain(handler,
		recoveryMW.Handler,
		loggingMW.Handler,
		rateLimitMW.Handler,
	)

	srv := &http.Server{
		Addr:              cfg.Inspector.Addr,
		Handler:           finalHandler,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("inspector server starting", zap.String("addr", cfg.Inspector.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Start rate limiter cleanup goroutine
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rateLimitMW.CleanupIPLimiters()
			case <-ctx.Done():
				return
			}
		}
	}()

	waitForSignal()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Inspector.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	shutdownClient(client, cfg, logger)

	// Cancel main context to stop background goroutines
	cancel()

	logger.Info("stopped")
}

func waitForSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}

// shutdownClient flushes queued telemetry before exit.
func shutdownClient(client *sdk.Client, cfg *config.Config, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Inspector.ShutdownTimeout)
	defer cancel()
	if err := client.Close(ctx); err != nil {
		logger.Warn("telemetry not fully flushed", zap.Error(err))
	}
}
