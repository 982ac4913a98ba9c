package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appintegration "github.com/erp/invoicesync/internal/application/integration"
	"github.com/erp/invoicesync/internal/domain/shared"
	"github.com/erp/invoicesync/internal/infrastructure/auth"
	"github.com/erp/invoicesync/internal/infrastructure/billing"
	"github.com/erp/invoicesync/internal/infrastructure/cache"
	"github.com/erp/invoicesync/internal/infrastructure/config"
	"github.com/erp/invoicesync/internal/infrastructure/ecommerce"
	"github.com/erp/invoicesync/internal/infrastructure/event"
	"github.com/erp/invoicesync/internal/infrastructure/logger"
	"github.com/erp/invoicesync/internal/infrastructure/migration"
	"github.com/erp/invoicesync/internal/infrastructure/persistence"
	"github.com/erp/invoicesync/internal/infrastructure/scheduler"
	"github.com/erp/invoicesync/internal/infrastructure/storage"
	"github.com/erp/invoicesync/internal/infrastructure/telemetry"
	"github.com/erp/invoicesync/internal/interfaces/http/handler"
	"github.com/erp/invoicesync/internal/interfaces/http/middleware"
	"github.com/erp/invoicesync/internal/interfaces/http/router"
	"github.com/erp/invoicesync/migrations"
)

// shutdownTimeout bounds draining the HTTP server and the sync queue
const shutdownTimeout = 30 * time.Second

func main() {
	issueToken := flag.String("issue-token", "", "Print an operator token for the given username and exit")
	flag.Parse()

	cfg, v, err := config.LoadWithViper()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	if *issueToken != "" {
		if err := printOperatorToken(cfg.JWT, *issueToken); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	log, err := logger.New(logger.FromLogConfig(cfg.Log))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting invoice sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	syncMetrics, err := telemetry.NewSyncMetrics(meterProvider.Meter(telemetry.TracerName))
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}
	logProvider, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	exportLevel, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		exportLevel = zapcore.InfoLevel
	}
	log = logProvider.Bridge(log, exportLevel)

	// Database
	if cfg.Database.AutoMigrate {
		if err := runMigrations(cfg.Database, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), 200*time.Millisecond)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingFromConfig(cfg.Telemetry), log); err != nil {
		log.Fatal("Failed to enable database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	syncRecordRepo := persistence.NewGormSyncRecordRepository(db.DB)
	paymentMappingRepo := persistence.NewGormPaymentMappingRepository(db.DB)

	// Order locks and webhook dedup
	backends, err := cache.NewFactory(cfg.Redis, cache.WithLogger(log)).Build(ctx)
	if err != nil {
		log.Fatal("Failed to initialize coordination backends", zap.Error(err))
	}
	defer func() {
		if err := backends.Close(); err != nil {
			log.Error("Error closing coordination backends", zap.Error(err))
		}
	}()

	// Settings are re-read on every operation; file edits apply without restart
	settings := config.NewSettingsProvider(cfg, paymentMappingRepo, log)
	settings.Watch(v)

	// Remote systems
	billingClient, err := billing.NewClient(&billing.Config{
		TimeoutSeconds:     int(cfg.Billing.Timeout.Seconds()),
		RateLimit:          cfg.Billing.RateLimit,
		RateBurst:          cfg.Billing.RateBurst,
		BreakerFailures:    cfg.Billing.BreakerFailures,
		BreakerOpenTimeout: cfg.Billing.BreakerOpenTimeout,
	}, log, billing.WithObserver(syncMetrics.ObserveRemoteRequest))
	if err != nil {
		log.Fatal("Failed to create billing client", zap.Error(err))
	}
	gateway := billing.NewRepairShoprGateway(billingClient, log)

	storeConfig := &ecommerce.WooCommerceConfig{
		BaseURL:        cfg.Store.BaseURL,
		ConsumerKey:    cfg.Store.ConsumerKey,
		ConsumerSecret: cfg.Store.ConsumerSecret,
		WebhookSecret:  cfg.Store.WebhookSecret,
		TimeoutSeconds: int(cfg.Store.Timeout.Seconds()),
	}
	orders, err := ecommerce.NewWooCommerceAdapter(storeConfig, log)
	if err != nil {
		log.Fatal("Failed to create WooCommerce adapter", zap.Error(err))
	}

	// Sync engine
	orchestratorOpts := []appintegration.OrchestratorOption{
		appintegration.WithSyncRecords(syncRecordRepo),
		appintegration.WithLocker(backends.Locker),
		appintegration.WithLockTTL(cfg.Sync.LockTTL),
		appintegration.WithSyncMetrics(syncMetrics),
	}
	if cfg.Storage.Enabled {
		archive, err := storage.NewS3DiagnosticsArchive(ctx, &cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to create diagnostics archive", zap.Error(err))
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			log.Warn("Diagnostics bucket check failed, archiving may fail", zap.Error(err))
		}
		orchestratorOpts = append(orchestratorOpts, appintegration.WithDiagnosticsArchive(archive))
	}
	orchestrator := appintegration.NewSyncOrchestrator(orders, settings, gateway, log, orchestratorOpts...)
	mappingService := appintegration.NewPaymentMappingService(paymentMappingRepo, gateway, settings)

	// Order-paid events run on worker goroutines after the webhook is acknowledged
	bus := event.NewInMemoryEventBus(log, event.WithAsyncDispatch(cfg.Sync.Workers, cfg.Sync.QueueSize))
	orderPaid := event.NewIdempotentHandler(
		appintegration.NewOrderPaidHandler(orchestrator, log),
		backends.Idempotency,
		log,
		event.WithKeyFunc(appintegration.DeliveryDedupKey),
		event.WithIdempotencyConfig(shared.IdempotencyConfig{TTL: cfg.Sync.WebhookDedupTTL, Enabled: true}),
	)
	bus.Subscribe(orderPaid)
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	maintenance, err := scheduler.NewDailyTrigger(scheduler.DailyTriggerConfig{
		Hour:          cfg.Sync.MaintenanceHour,
		CheckInterval: time.Minute,
	}, log)
	if err != nil {
		log.Fatal("Invalid maintenance schedule", zap.Error(err))
	}
	if cfg.Sync.RecordRetentionDays > 0 {
		retention := time.Duration(cfg.Sync.RecordRetentionDays) * 24 * time.Hour
		if err := maintenance.Register("sync-record-retention", scheduler.RecordRetentionTask(syncRecordRepo, retention, log)); err != nil {
			log.Fatal("Failed to register retention task", zap.Error(err))
		}
	}
	if err := maintenance.Start(ctx); err != nil {
		log.Fatal("Failed to start maintenance trigger", zap.Error(err))
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Order matters: the request id must exist before logging and tracing read it
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName))
	engine.Use(middleware.SpanEnricher())
	engine.Use(middleware.Secure())

	systemHandler := handler.NewSystemHandler(cfg.App.Name, telemetry.ServiceVersion).
		AddCheck("database", db.Ping).
		AddCheck("redis", backends.Ping).
		AddStat("webhook_dedup", func() any { return orderPaid.Metrics().Stats() }).
		AddStat("database_pool", func() any {
			stats, err := db.Stats()
			if err != nil {
				return err.Error()
			}
			return stats
		})

	jwtService := auth.NewJWTService(cfg.JWT)
	webhookLimiter := middleware.NewRateLimiter(cfg.HTTP.WebhookRateLimit, cfg.HTTP.WebhookRateBurst)

	router.Mount(engine, router.Handlers{
		Sync:           handler.NewSyncHandler(orchestrator),
		PaymentMapping: handler.NewPaymentMappingHandler(mappingService),
		Webhook:        handler.NewWebhookHandler(ecommerce.NewWebhookVerifier(storeConfig), bus, log),
		System:         systemHandler,
	}, router.Guards{
		Operator: []gin.HandlerFunc{
			middleware.BodyLimit(cfg.HTTP.MaxBodySize),
			middleware.JWTAuth(jwtService, log),
			middleware.RequirePermission(auth.PermissionEditOrders, log),
		},
		Webhook: []gin.HandlerFunc{
			webhookLimiter.Middleware(),
			middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		},
	})

	pruneCtx, stopPrune := context.WithCancel(ctx)
	defer stopPrune()
	go pruneLimiter(pruneCtx, webhookLimiter)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := maintenance.Stop(shutdownCtx); err != nil {
		log.Error("Maintenance trigger did not stop", zap.Error(err))
	}
	// Webhooks already acknowledged with 202 finish before exit
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("Sync queue did not drain", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracer provider shutdown failed", zap.Error(err))
	}
	log.Info("Server exited gracefully")
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Logger provider shutdown failed", zap.Error(err))
	}
}

// runMigrations applies the embedded migrations on a dedicated connection,
// so closing the migrator never touches the application pool.
func runMigrations(cfg config.DatabaseConfig, log *zap.Logger) error {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer sqlDB.Close()

	m, err := migration.NewFromFS(sqlDB, migrations.FS, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()
	return m.Up()
}

// pruneLimiter drops idle per-client limiters so the map stays bounded
func pruneLimiter(ctx context.Context, limiter *middleware.RateLimiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Prune()
		}
	}
}

// printOperatorToken issues a token carrying the edit_orders permission
func printOperatorToken(cfg config.JWTConfig, username string) error {
	if cfg.Secret == "" {
		return errors.New("jwt.secret must be set to issue tokens")
	}
	token, expiresAt, err := auth.NewJWTService(cfg).GenerateAccessToken(auth.GenerateTokenInput{
		UserID:      uuid.NewString(),
		Username:    username,
		Permissions: []string{auth.PermissionEditOrders},
	})
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
