package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"auctioneer/database"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// NATS configuration
	NATSServers string // NATS server addresses (comma-separated)

	// Account configuration
	StartingBalance int64 // Initial available balance for new users, in minor units

	// Bidding configuration
	DefaultBidIncrement int64         // Fallback increment when an auction does not set one
	AntiSnipeWindow     time.Duration // Remaining time below which a bid extends the auction
	AntiSnipeExtension  time.Duration // How much the end time is extended by

	// Reconciliation configuration
	ReconcileInterval time.Duration // Cadence of the auction sweep
	EndingSoonWindow  time.Duration // How far ahead the ending-soon reminder looks

	// Withdrawal configuration
	WithdrawalMinAmount      int64 // Minimum withdrawal amount, in minor units
	WithdrawalFeeBps         int64 // Fee in basis points of the requested amount
	WithdrawalDailyMaxCount  int   // Max withdrawal requests per user per day
	WithdrawalDailyMaxAmount int64 // Max total requested per user per day
	OtpTTL                   time.Duration
	OtpMaxAttempts           int

	// Observability
	OTelEnabled      bool
	OTelEndpoint     string
	OTelExportPeriod time.Duration

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		NATSServers: getEnvWithDefault("NATS_SERVERS", "nats://nats:4222"),

		StartingBalance: 0,

		DefaultBidIncrement: 1000,
		AntiSnipeWindow:     30 * time.Second,
		AntiSnipeExtension:  2 * time.Minute,

		ReconcileInterval: 1 * time.Minute,
		EndingSoonWindow:  15 * time.Minute,

		WithdrawalMinAmount:      10000,
		WithdrawalFeeBps:         100, // 1%
		WithdrawalDailyMaxCount:  3,
		WithdrawalDailyMaxAmount: 10000000,
		OtpTTL:                   10 * time.Minute,
		OtpMaxAttempts:           5,

		OTelEnabled:      os.Getenv("OTEL_ENABLED") == "true",
		OTelEndpoint:     getEnvWithDefault("OTEL_ENDPOINT", "localhost:4317"),
		OTelExportPeriod: 30 * time.Second,

		Environment: os.Getenv("ENVIRONMENT"),
	}

	if balance := os.Getenv("STARTING_BALANCE"); balance != "" {
		if parsed, err := strconv.ParseInt(balance, 10, 64); err == nil {
			config.StartingBalance = parsed
		}
	}
	if increment := os.Getenv("DEFAULT_BID_INCREMENT"); increment != "" {
		if parsed, err := strconv.ParseInt(increment, 10, 64); err == nil && parsed > 0 {
			config.DefaultBidIncrement = parsed
		}
	}
	if interval := os.Getenv("RECONCILE_INTERVAL"); interval != "" {
		if parsed, err := time.ParseDuration(interval); err == nil && parsed > 0 {
			config.ReconcileInterval = parsed
		}
	}
	if minAmount := os.Getenv("WITHDRAWAL_MIN_AMOUNT"); minAmount != "" {
		if parsed, err := strconv.ParseInt(minAmount, 10, 64); err == nil && parsed > 0 {
			config.WithdrawalMinAmount = parsed
		}
	}
	if feeBps := os.Getenv("WITHDRAWAL_FEE_BPS"); feeBps != "" {
		if parsed, err := strconv.ParseInt(feeBps, 10, 64); err == nil && parsed >= 0 {
			config.WithdrawalFeeBps = parsed
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:              "test",
		StartingBalance:          0,
		DefaultBidIncrement:      1000,
		AntiSnipeWindow:          30 * time.Second,
		AntiSnipeExtension:       2 * time.Minute,
		ReconcileInterval:        time.Minute,
		EndingSoonWindow:         15 * time.Minute,
		WithdrawalMinAmount:      10000,
		WithdrawalFeeBps:         100,
		WithdrawalDailyMaxCount:  3,
		WithdrawalDailyMaxAmount: 10000000,
		OtpTTL:                   10 * time.Minute,
		OtpMaxAttempts:           5,
	}
}
