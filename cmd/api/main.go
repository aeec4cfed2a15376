package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vendor-wallet-ledger/config"
	kafkaEvents "vendor-wallet-ledger/internal/adapter/events/kafka"
	httpHandler "vendor-wallet-ledger/internal/adapter/http/handler"
	pgStorage "vendor-wallet-ledger/internal/adapter/storage/postgres"
	redisStorage "vendor-wallet-ledger/internal/adapter/storage/redis"
	"vendor-wallet-ledger/internal/core/ports"
	"vendor-wallet-ledger/internal/service"
	"vendor-wallet-ledger/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Vendor Wallet Ledger")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize Kafka publisher
	publisher := kafkaEvents.NewPublisher(cfg.Kafka)
	defer publisher.Close()

	// Initialize repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	legacyRepo := pgStorage.NewLegacyRepo(pool)
	auditRepo := pgStorage.NewRecalcAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool)
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)

	// Ledger parameters (validated at config load)
	securityDeposit, _ := cfg.Ledger.SecurityDepositAmount()
	tolerance, _ := cfg.Ledger.RecalcToleranceAmount()

	// Initialize services
	tokenSvc := service.NewJWTTokenService(cfg.Auth.Secret, cfg.Auth.Expiry, cfg.Auth.Issuer)
	ledgerSvc := service.NewLedgerService(
		txRepo,
		walletRepo,
		idempotencyCache,
		publisher,
		transactor,
		securityDeposit,
		cfg.Database.StatementTimeout,
		log,
	)
	reconSvc := service.NewReconciliationService(
		walletRepo,
		txRepo,
		legacyRepo,
		auditRepo,
		transactor,
		securityDeposit,
		tolerance,
		log,
	)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletHandler:         httpHandler.NewWalletHandler(ledgerSvc),
		ReconciliationHandler: httpHandler.NewReconciliationHandler(reconSvc),
		AuthHandler:           httpHandler.NewAuthHandler(tokenSvc, cfg.Auth.Secret),
		TokenService:          tokenSvc,
		HealthCheckers:        []ports.HealthChecker{pgHealth, redisHealth},
		Logger:                log,
		Mode:                  cfg.Server.Mode,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
