package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// InternalAPIKey guards the operational endpoints used by schedulers.
	InternalAPIKey string

	// Redis event queue
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	EventsQueue   string

	// Designated accounts
	BankAccountName        string
	RedemptionsAccountName string
	ExpiredAccountName     string

	// Bounds for the initial amount of accounts created from the dashboard.
	// A nil bound is not enforced.
	MinInitialValue *decimal.Decimal
	MaxInitialValue *decimal.Decimal

	// Sweeper cron specs
	SweepSchedule     string
	ReconcileSchedule string
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		JWTSecret:      getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
		InternalAPIKey: getEnv("INTERNAL_API_KEY", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		EventsQueue:   getEnv("EVENTS_QUEUE", "ledger:events"),

		BankAccountName:        getEnv("ACCOUNTS_BANK_NAME", "Bank"),
		RedemptionsAccountName: getEnv("ACCOUNTS_REDEMPTIONS_NAME", "Redemptions"),
		ExpiredAccountName:     getEnv("ACCOUNTS_EXPIRED_NAME", "Expired"),

		MinInitialValue: getEnvDecimal("ACCOUNTS_MIN_INITIAL_VALUE"),
		MaxInitialValue: getEnvDecimal("ACCOUNTS_MAX_INITIAL_VALUE"),

		SweepSchedule:     getEnv("SWEEP_SCHEDULE", "@daily"),
		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "@hourly"),
	}

	expStr := getEnv("JWT_EXPIRES_IN", "24h")
	expDur, err := time.ParseDuration(expStr)
	if err != nil {
		log.Printf("Warning: invalid JWT_EXPIRES_IN value '%s', falling back to 24h\n", expStr)
		expDur = 24 * time.Hour
	}
	config.JWTExpirationDur = expDur

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return v
}

func getEnvDecimal(key string) *decimal.Decimal {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', ignoring\n", key, raw)
		return nil
	}
	return &v
}
