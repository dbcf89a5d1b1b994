// Command server runs the easy-law case service API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kingbora/easy-law-sub001/internal/api"
	"github.com/kingbora/easy-law-sub001/pkg/common/cache"
	"github.com/kingbora/easy-law-sub001/pkg/common/config"
	"github.com/kingbora/easy-law-sub001/pkg/database"
	"github.com/kingbora/easy-law-sub001/pkg/database/migration"
	"github.com/kingbora/easy-law-sub001/pkg/observability"
	"github.com/kingbora/easy-law-sub001/pkg/repository/interfaces"
	"github.com/kingbora/easy-law-sub001/pkg/repository/memory"
	"github.com/kingbora/easy-law-sub001/pkg/repository/postgres"
	"github.com/kingbora/easy-law-sub001/pkg/services"
)

var (
	configFile    = flag.String("config", "", "Path to the config file (overrides EASYLAW_CONFIG_FILE)")
	migrateOnly   = flag.Bool("migrate", false, "Run database migrations and exit")
	skipMigration = flag.Bool("skip-migration", false, "Skip database migration on startup")
	healthCheck   = flag.Bool("health-check", false, "Probe the running server's health endpoint and exit")
	memoryMode    = flag.Bool("memory", false, "Run against an in-memory store (local development, no database)")
)

func main() {
	flag.Parse()

	// A local .env is optional; container environments set real variables.
	_ = godotenv.Load()

	if *configFile != "" {
		if err := os.Setenv("EASYLAW_CONFIG_FILE", *configFile); err != nil {
			fmt.Fprintf(os.Stderr, "failed to set config file: %v\n", err)
			os.Exit(1)
		}
	}

	if *healthCheck {
		os.Exit(runHealthCheck())
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLoggerFromConfig("easy-law", cfg.Observability.Logging)
	metrics := observability.NewMetricsClientWithConfig(cfg.Observability.Metrics)
	defer func() { _ = metrics.Close() }()

	tracer, shutdownTracing, err := observability.InitTracing(cfg.Observability.Tracing, logger)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", map[string]interface{}{"error": err.Error()})
	}
	defer shutdownTracing()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cfg, logger, metrics, tracer); err != nil {
		logger.Fatal("Server exited with error", map[string]interface{}{"error": err.Error()})
	}
}

func run(ctx context.Context, cfg *config.Config, logger observability.Logger, metrics observability.MetricsClient, tracer observability.StartSpanFunc) error {
	health := api.NewHealthChecker(logger)

	var repo interfaces.CaseRepository
	if *memoryMode {
		logger.Warn("Running with the in-memory store; data will not survive a restart", nil)
		repo = memory.NewCaseRepository()
	} else {
		db, err := database.NewDatabase(ctx, toDatabaseConfig(cfg.Database), logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() { _ = db.Close() }()

		if *migrateOnly {
			manager, err := migration.NewManager(db.WriteDB(), migration.Config{
				MigrationsPath: cfg.Database.MigrationsPath,
			}, cfg.Database.Driver, logger)
			if err != nil {
				return err
			}
			defer func() { _ = manager.Close() }()
			return manager.RunMigrations(ctx)
		}

		cacheClient, err := cache.NewCache(ctx, cfg.Cache)
		if err != nil {
			// The service degrades gracefully without a cache.
			logger.Warn("Cache unavailable, continuing without one", map[string]interface{}{"error": err.Error()})
			cacheClient = cache.NewNoOpCache()
		}
		defer func() { _ = cacheClient.Close() }()

		repo = postgres.NewCaseRepository(db.WriteDB(), db.ReadDB(), cacheClient, logger, tracer, metrics)

		readiness := database.NewReadinessChecker(db.WriteDB(), logger)
		health.RegisterCheck("database", db.Ping)
		health.RegisterCheck("schema", readiness.HealthCheck)
		health.RegisterCheck("cache", func(ctx context.Context) error {
			_, err := cacheClient.Exists(ctx, "health-probe")
			return err
		})
	}

	svc, err := services.NewCaseService(services.ServiceConfig{
		Logger:  logger,
		Metrics: metrics,
		Tracer:  tracer,
	}, repo, nil)
	if err != nil {
		return fmt.Errorf("failed to build case service: %w", err)
	}

	server := api.NewServer(cfg.API, svc, health, logger, metrics)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("Shutdown signal received", map[string]interface{}{"signal": sig.String()})
	}

	shutdownTimeout := cfg.API.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func toDatabaseConfig(cfg config.DatabaseConfig) database.Config {
	dbCfg := database.Config{
		Driver:               cfg.Driver,
		DSN:                  cfg.DSN,
		ReadDSN:              cfg.ReadDSN,
		Host:                 cfg.Host,
		Port:                 cfg.Port,
		Database:             cfg.Database,
		Username:             cfg.Username,
		Password:             cfg.Password,
		SSLMode:              cfg.SSLMode,
		SearchPath:           cfg.SearchPath,
		MaxOpenConns:         cfg.MaxOpenConns,
		MaxIdleConns:         cfg.MaxIdleConns,
		ConnMaxLifetime:      cfg.ConnMaxLifetime,
		ConnMaxIdleTime:      cfg.ConnMaxIdleTime,
		AutoMigrate:          cfg.AutoMigrate && !*skipMigration && !*migrateOnly,
		MigrationsPath:       cfg.MigrationsPath,
		FailOnMigrationError: cfg.FailOnMigrationError,
	}
	return dbCfg
}

func runHealthCheck() int {
	address := os.Getenv("EASYLAW_API_LISTEN_ADDRESS")
	if address == "" {
		address = ":8080"
	}
	port := address
	if idx := strings.LastIndex(address, ":"); idx >= 0 {
		port = address[idx+1:]
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%s/health", port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
		return 1
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "health check failed with status %d\n", resp.StatusCode)
		return 1
	}
	return 0
}
