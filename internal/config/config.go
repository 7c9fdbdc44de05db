package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	App      AppConfig
	Neynar   NeynarConfig
	RapidAPI RapidAPIConfig
	Chain    ChainConfig
	Redis    RedisConfig
	Logging  LoggingConfig
	Jobs     JobsConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret       string
	CastPrice       decimal.Decimal
	MaxEmbeds       int
	ThreadPostDelay time.Duration
	FrontendURL     string
}

// NeynarConfig holds Farcaster (Neynar) API settings
type NeynarConfig struct {
	APIKey  string
	BaseURL string
}

// RapidAPIConfig holds settings for the secondary tweet-detail API
type RapidAPIConfig struct {
	Key               string
	Host              string
	RequestsPerWindow int
	Window            time.Duration
}

// ChainConfig holds EVM chain and USDC contract settings
type ChainConfig struct {
	RPCURL            string
	ChainID           int64
	USDCAddress       string
	SpenderAddress    string
	SpenderPrivateKey string
}

// RedisConfig holds the optional Redis connection used for distributed locks
type RedisConfig struct {
	URL string
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string
}

// JobsConfig holds background job settings
type JobsConfig struct {
	BalanceSyncInterval time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	castPrice, err := decimal.NewFromString(getEnv("CAST_PRICE_USDC", "0.1"))
	if err != nil {
		return nil, fmt.Errorf("invalid CAST_PRICE_USDC: %w", err)
	}

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "cast_bridge"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		App: AppConfig{
			JWTSecret:       getEnv("JWT_SECRET", ""),
			CastPrice:       castPrice,
			MaxEmbeds:       getEnvInt("MAX_EMBEDS", 2),
			ThreadPostDelay: getEnvDuration("THREAD_POST_DELAY", time.Second),
			FrontendURL:     getEnv("FRONTEND_URL", ""),
		},
		Neynar: NeynarConfig{
			APIKey:  getEnv("NEYNAR_API_KEY", ""),
			BaseURL: getEnv("NEYNAR_BASE_URL", "https://api.neynar.com"),
		},
		RapidAPI: RapidAPIConfig{
			Key:               getEnv("RAPIDAPI_KEY", ""),
			Host:              getEnv("RAPIDAPI_HOST", "twitter-api45.p.rapidapi.com"),
			RequestsPerWindow: getEnvInt("RAPIDAPI_REQUESTS_PER_WINDOW", 5),
			Window:            getEnvDuration("RAPIDAPI_WINDOW", time.Second),
		},
		Chain: ChainConfig{
			RPCURL:            getEnv("CHAIN_RPC_URL", "https://mainnet.base.org"),
			ChainID:           int64(getEnvInt("CHAIN_ID", 8453)),
			USDCAddress:       getEnv("USDC_CONTRACT_ADDRESS", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
			SpenderAddress:    getEnv("SPENDER_ADDRESS", ""),
			SpenderPrivateKey: getEnv("SPENDER_PRIVATE_KEY", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Jobs: JobsConfig{
			BalanceSyncInterval: getEnvDuration("BALANCE_SYNC_INTERVAL", 15*time.Minute),
		},
	}

	// Validate required fields
	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if config.App.CastPrice.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("CAST_PRICE_USDC must be positive")
	}

	if config.App.MaxEmbeds < 1 {
		return nil, fmt.Errorf("MAX_EMBEDS must be at least 1")
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
