package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/seu-repo/ocpp-central/internal/adapter/cache"
	"github.com/seu-repo/ocpp-central/internal/adapter/http/fiber/handlers"
	"github.com/seu-repo/ocpp-central/internal/adapter/http/fiber/middleware"
	v16 "github.com/seu-repo/ocpp-central/internal/adapter/ocpp/v16"
	"github.com/seu-repo/ocpp-central/internal/adapter/queue"
	"github.com/seu-repo/ocpp-central/internal/adapter/storage/postgres"
	"github.com/seu-repo/ocpp-central/internal/observability/telemetry"
	"github.com/seu-repo/ocpp-central/internal/ports"
	"github.com/seu-repo/ocpp-central/internal/service/authorization"
	"github.com/seu-repo/ocpp-central/internal/service/health"
	"github.com/seu-repo/ocpp-central/internal/service/reservation"
	"github.com/seu-repo/ocpp-central/internal/service/station"
	"github.com/seu-repo/ocpp-central/internal/service/transaction"
	"github.com/seu-repo/ocpp-central/pkg/config"
)

const (
	serviceName    = "ocpp-central"
	serviceVersion = "v1.0.0"
)

// Exit codes: 0 clean stop, 1 configuration error, 2 database unreachable,
// 130 interrupted.
const (
	exitOK     = 0
	exitConfig = 1
	exitDB     = 2
	exitSigint = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Println("Failed to load configuration:", err)
		return exitConfig
	}

	// 2. Initialize Logger
	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		log.Println("Failed to initialize logger:", err)
		return exitConfig
	}
	defer logger.Sync()

	logger.Info("Starting OCPP Central System",
		zap.String("service", serviceName),
		zap.String("version", serviceVersion),
	)

	// 3. Initialize OpenTelemetry (Distributed Tracing)
	if cfg.Telemetry.JaegerEndpoint != "" {
		shutdownTracer, err := telemetry.InitTracer(serviceName, serviceVersion, cfg.Telemetry.JaegerEndpoint, logger)
		if err != nil {
			logger.Error("Failed to initialize tracer", zap.Error(err))
			return exitConfig
		}
		defer shutdownTracer(context.Background())
	}

	// 4. Initialize PostgreSQL Connection Pool
	db, err := postgres.NewConnection(cfg.Database.URL, logger)
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		return exitDB
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get underlying SQL DB", zap.Error(err))
		return exitDB
	}
	defer sqlDB.Close()

	if err := postgres.RunMigrations(db); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return exitDB
	}

	// 5. Initialize Cache (Redis, or in-process when REDIS_URL is unset)
	var cacheStore ports.Cache
	if cfg.Redis.URL != "" {
		cacheStore, err = cache.NewRedisCache(cfg.Redis.URL, logger)
		if err != nil {
			logger.Error("Failed to connect to Redis", zap.Error(err))
			return exitConfig
		}
	} else {
		cacheStore = cache.NewMemoryCache(time.Minute, logger)
	}
	defer cacheStore.Close()

	// 6. Initialize Message Queue (EVENTS_DRIVER: nats, rabbitmq or none)
	messageQueue, err := queue.New(cfg.Events.Driver, cfg.Events.URL, logger)
	if err != nil {
		logger.Error("Failed to connect to message queue", zap.Error(err))
		return exitConfig
	}
	defer messageQueue.Close()

	// 7. Initialize Repositories
	guard := postgres.NewGuard(logger)
	stationRepo := postgres.NewStationRepository(db, guard, logger)
	transactionRepo := postgres.NewTransactionRepository(db, guard, logger)
	authorizationRepo := postgres.NewAuthorizationRepository(db, guard, logger)
	reservationRepo := postgres.NewReservationRepository(db, guard, logger)

	// 8. Initialize Services (Business Logic Layer)
	stationService := station.NewService(stationRepo, messageQueue, cfg.Server.DenylistIDs(), logger)
	transactionService := transaction.NewService(transactionRepo, messageQueue, cfg.OCPP.MeterBuffer, logger)
	authorizationService := authorization.NewService(authorizationRepo, cacheStore,
		cfg.Auth.CacheTTL(), cfg.Auth.FailOpen(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		transactionService.Run(ctx)
	}()

	// 9. Initialize OCPP 1.6 Action Handlers
	router := v16.NewRouter(logger)
	ocppHandlers := v16.NewHandlers(stationService, transactionService, authorizationService,
		cfg.OCPP.HeartbeatIntervalSec, logger)
	ocppHandlers.RegisterVendor("seu-repo.diag", v16.EchoDataTransfer)
	ocppHandlers.RegisterAll(router)

	// 10. Initialize Station Registry and OCPP WebSocket Listener
	registry := v16.NewStationRegistry(logger)
	go registry.SweepExpiredCalls(ctx)

	ocppServer := v16.NewServer(v16.ServerConfig{
		Addr:                 cfg.Server.ListenAddr,
		AllowUnknownStations: cfg.Server.AllowUnknownStations,
		AllowedOrigins:       cfg.Server.AllowedOrigins,
		Session: v16.SessionConfig{
			CallTimeout: cfg.OCPP.CallTimeout(),
		},
	}, registry, router, stationService, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- ocppServer.Start()
	}()

	// 11. Initialize Operator Command Plane
	commands := v16.NewCommands(registry, logger)
	reservationService := reservation.NewService(reservationRepo, commands, logger)
	go reservation.RunSweeper(ctx, reservationService, cfg.Reservations.SweepInterval(), logger)

	// 12. Initialize Admin HTTP Server (Fiber)
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		ServerHeader:          serviceName,
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(middleware.NewCORS(cfg.Server.AllowedOrigins))
	app.Use(middleware.CircuitBreaker(logger))

	healthService := health.NewService(&health.Config{
		Version:      serviceVersion,
		DB:           sqlDB,
		Cache:        cacheStore,
		EventsDriver: cfg.Events.Driver,
	}, logger)
	health.NewFiberHandler(healthService).RegisterRoutes(app)

	app.Get("/metrics", func(c *fiber.Ctx) error {
		handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		handler(c.Context())
		return nil
	})

	v1 := app.Group("/api/v1")

	stationHandler := handlers.NewStationHandler(stationService, transactionService, commands, logger)
	v1.Get("/stations", stationHandler.List)
	v1.Get("/stations/:id", stationHandler.Get)
	v1.Get("/stations/:id/connection", stationHandler.GetConnection)
	v1.Get("/stations/:id/transactions", stationHandler.ListTransactions)
	v1.Get("/transactions/:id", stationHandler.GetTransaction)

	commandHandler := handlers.NewCommandHandler(commands, stationService, reservationService, logger)
	v1.Post("/stations/:id/remote-start", commandHandler.RemoteStart)
	v1.Post("/stations/:id/remote-stop", commandHandler.RemoteStop)
	v1.Post("/stations/:id/reset", commandHandler.Reset)
	v1.Get("/stations/:id/configuration", commandHandler.GetConfiguration)
	v1.Post("/stations/:id/configuration", commandHandler.ChangeConfiguration)
	v1.Post("/stations/:id/reserve", commandHandler.Reserve)
	v1.Get("/stations/:id/reservations/:reservationId", commandHandler.GetReservation)
	v1.Delete("/stations/:id/reservations/:reservationId", commandHandler.CancelReservation)
	v1.Post("/stations/:id/data-transfer", commandHandler.DataTransfer)
	v1.Post("/stations/:id/trigger/:message", commandHandler.TriggerMessage)
	v1.Post("/stations/:id/unlock", commandHandler.Unlock)

	adminErr := make(chan error, 1)
	go func() {
		logger.Info("Starting admin HTTP server", zap.String("addr", cfg.Server.AdminAddr))
		adminErr <- app.Listen(cfg.Server.AdminAddr)
	}()

	// 13. Wait for Shutdown Signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := exitOK
	select {
	case sig := <-quit:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
		if sig == syscall.SIGINT {
			exitCode = exitSigint
		}
	case err := <-serverErr:
		if err != nil {
			logger.Error("OCPP server failed", zap.Error(err))
			exitCode = exitConfig
		}
	case err := <-adminErr:
		if err != nil {
			logger.Error("Admin HTTP server failed", zap.Error(err))
			exitCode = exitConfig
		}
	}

	// 14. Graceful Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := ocppServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("OCPP server shutdown failed", zap.Error(err))
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Admin HTTP server shutdown failed", zap.Error(err))
	}

	cancel()
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		logger.Warn("Background workers did not drain in time")
	}

	logger.Info("Server exited gracefully")
	return exitCode
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}
