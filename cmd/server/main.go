package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appsync "github.com/erp/odoosync/internal/application/ordersync"
	"github.com/erp/odoosync/internal/domain/ordersync"
	"github.com/erp/odoosync/internal/infrastructure/activitylog"
	"github.com/erp/odoosync/internal/infrastructure/auth"
	"github.com/erp/odoosync/internal/infrastructure/cache"
	"github.com/erp/odoosync/internal/infrastructure/config"
	"github.com/erp/odoosync/internal/infrastructure/logger"
	"github.com/erp/odoosync/internal/infrastructure/odoo"
	"github.com/erp/odoosync/internal/infrastructure/persistence"
	"github.com/erp/odoosync/internal/infrastructure/scheduler"
	"github.com/erp/odoosync/internal/infrastructure/storage"
	"github.com/erp/odoosync/internal/infrastructure/telemetry"
	"github.com/erp/odoosync/internal/interfaces/http/handler"
	"github.com/erp/odoosync/internal/interfaces/http/middleware"
	"github.com/erp/odoosync/internal/interfaces/http/router"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx := context.Background()

	// Initialize logger, optionally bridged to the OTLP collector
	logsProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    Version,
		Insecure:          cfg.Telemetry.Insecure,
		Level:             cfg.Log.Level,
	})
	if err != nil {
		panic("Failed to initialize log export: " + err.Error())
	}
	var extraCores []zapcore.Core
	if cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled {
		extraCores = append(extraCores, logsProvider.Core())
	}
	log := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}, extraCores...)
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info("Starting odoosync",
		zap.String("version", Version),
		zap.String("port", cfg.App.Port),
		zap.String("odoo", cfg.Odoo.BaseURL),
	)

	// Initialize telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	// Connect to the store database
	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName),
	)
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled: cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBName:  cfg.Database.DBName,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	orders := persistence.NewGormOrderRepository(db.DB)

	// Token store and order locks (Redis or in-memory)
	stores, err := cache.NewStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStores()
	if err != nil {
		log.Fatal("Failed to create token store", zap.Error(err))
	}

	// Odoo client
	odooClient, err := odoo.NewClient(&odoo.Config{
		BaseURL:        cfg.Odoo.BaseURL,
		Database:       cfg.Odoo.Database,
		Login:          cfg.Odoo.Login,
		Password:       cfg.Odoo.Password,
		LocationID:     cfg.Odoo.LocationID,
		SendTimeout:    cfg.Odoo.SendTimeout,
		RequestTimeout: cfg.Odoo.RequestTimeout,
		TokenTTL:       cfg.Odoo.TokenTTL,
	}, odoo.WithLogger(log))
	if err != nil {
		log.Fatal("Invalid Odoo configuration", zap.Error(err))
	}
	retryPolicy := ordersync.RetryPolicy{MaxRetries: cfg.Sync.MaxRetries, Base: cfg.Sync.RetryBase}
	tokens := odoo.NewTokenCache(odooClient, stores.Tokens,
		odoo.WithTokenTTL(cfg.Odoo.TokenTTL),
		odoo.WithAuthRetryPolicy(retryPolicy),
		odoo.WithTokenLogger(log),
	)
	stock := odoo.NewStockChecker(odooClient, tokens, orders, log)

	// Activity log, archived to S3 on cleanup when enabled
	activityOpts := []activitylog.Option{
		activitylog.WithLegacyFallback(cfg.ActivityLog.LegacyFallback),
		activitylog.WithLogger(log),
	}
	var archiver *storage.S3Archiver
	if cfg.Storage.ArchiveEnabled {
		archiver, err = storage.NewS3Archiver(ctx, cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to create activity log archiver", zap.Error(err))
		}
		activityOpts = append(activityOpts, activitylog.WithArchiver(archiver))
	}
	activity := activitylog.NewStore(cfg.ActivityLog.RootDir, activityOpts...)

	// Sync engine
	syncOpts := []appsync.OrchestratorOption{
		appsync.WithRetryPolicy(retryPolicy),
		appsync.WithLocalizer(appsync.NewLocalizer(cfg.Odoo.Locale)),
	}
	if cfg.Sync.OrderLockEnabled {
		syncOpts = append(syncOpts, appsync.WithOrderLocker(stores.Locker, cfg.Sync.OrderLockTTL))
	}
	syncMetrics, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:       meterProvider.Meter("odoosync/sync"),
		Logger:      log,
		FailedQueue: orders,
	})
	if err != nil {
		log.Fatal("Failed to register sync metrics", zap.Error(err))
	}
	syncOpts = append(syncOpts, appsync.WithMetrics(syncMetrics))
	syncMetrics.StartPeriodicCollection(ctx, cfg.Scheduler.MetricsInterval)

	orchestrator := appsync.NewOrchestrator(appsync.Dependencies{
		Orders:   orders,
		Gateway:  odooClient,
		Tokens:   tokens,
		Stock:    stock,
		Activity: activity,
	}, log, syncOpts...)

	// Background jobs
	schedCfg := scheduler.DefaultConfig()
	if cfg.Scheduler.JobTimeout > 0 {
		schedCfg.JobTimeout = cfg.Scheduler.JobTimeout
	}
	sched, err := scheduler.New(schedCfg, log)
	if err != nil {
		log.Fatal("Failed to create scheduler", zap.Error(err))
	}
	if cfg.Scheduler.ResendEnabled {
		job := scheduler.NewResendFailedJob(orchestrator, cfg.Scheduler.ResendBatchSize)
		if err := sched.Register(job, cfg.Scheduler.ResendInterval); err != nil {
			log.Fatal("Failed to register job", zap.String("job", job.Name()), zap.Error(err))
		}
	}
	if cfg.Scheduler.CleanupEnabled {
		job := scheduler.NewActivityCleanupJob(activity, cfg.ActivityLog.RetentionDays)
		if err := sched.Register(job, cfg.Scheduler.CleanupInterval); err != nil {
			log.Fatal("Failed to register job", zap.String("job", job.Name()), zap.Error(err))
		}
	}
	if err := sched.Start(ctx); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// JWT authentication
	jwtService, err := auth.NewJWTService(cfg.JWT)
	if err != nil {
		log.Fatal("Failed to create JWT service", zap.Error(err))
	}

	// HTTP engine
	middleware.SetupValidator()
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	engine := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		Meter:          meterProvider.Meter("odoosync/http"),
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		CORS:           corsCfg,
		Logger:         log,
	})

	checks := map[string]handler.ReadinessCheck{
		"database": func(context.Context) error { return db.Ping() },
	}
	if stores.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return stores.Redis.Ping(ctx).Err() }
	}
	if archiver != nil {
		checks["archive"] = archiver.Check
	}
	systemHandler := handler.NewSystemHandler(cfg.App.Name, Version, checks, sched, cfg.JWT.AdminRoles...)
	systemHandler.RegisterProbes(engine)

	jwtCfg := middleware.DefaultJWTConfig(jwtService)
	jwtCfg.Logger = log
	r := router.NewRouter(engine,
		router.WithMiddleware(middleware.JWTAuth(jwtCfg), middleware.SpanEnricher()),
	)
	r.Register(handler.NewOrderSyncHandler(orchestrator, orders, stock,
		handler.WithActivityLoggingDefault(cfg.Sync.ActivityLogging),
	)).
		Register(handler.NewActivityHandler(activity, cfg.ActivityLog.RetentionDays, cfg.JWT.AdminRoles...)).
		Register(systemHandler)
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Warn("Scheduler did not stop cleanly", zap.Error(err))
	}
	syncMetrics.Stop()
	if err := stores.Close(); err != nil {
		log.Warn("Failed to close Redis", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Warn("Failed to close database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Failed to stop profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to shutdown meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to shutdown tracer provider", zap.Error(err))
	}
	if err := logsProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to shutdown logger provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
