package main

import (
	"context"
	"fmt"
	"os"

	"giftledger/internal/config"
	"giftledger/internal/database"
	"giftledger/internal/events"
	"giftledger/internal/logger"
	"giftledger/internal/server"
	"giftledger/internal/services"
)

// @title           giftledger API
// @version         1.0
// @description     giftledger keeps prepaid accounts and budgets on a double-entry ledger.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()
	ctx := context.Background()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	// Run migrations
	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	publisher := events.Connect(ctx, appConfig.RedisAddr, appConfig.RedisPassword, appConfig.RedisDB, appConfig.EventsQueue)

	// Initialize services
	svc := server.NewServices(dbManager.DB(), services.SettingsFromConfig(appConfig), publisher)
	if err := svc.Accounts.EnsureCoreAccounts(ctx); err != nil {
		return fmt.Errorf("failed to create designated accounts: %w", err)
	}

	if appConfig.InternalAPIKey == "" {
		log.Warn("INTERNAL_API_KEY not set, operational endpoints are disabled")
	}

	router := server.NewRouter(svc, server.Options{
		JWTSecret:      []byte(appConfig.JWTSecret),
		InternalAPIKey: appConfig.InternalAPIKey,
	})

	log.Infof("Starting giftledger server on port %s", appConfig.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
