package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	// Chain provider endpoints
	Chains ChainsConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// API server configuration
	API APIConfig

	// Ingestion pipeline tuning
	Ingestion IngestionConfig

	// Token metadata resolution
	Resolver ResolverConfig

	// Cross-chain portfolio settings
	Portfolio PortfolioConfig

	// Background sync worker
	Worker WorkerConfig

	// LLM question answering
	AI AIConfig

	// Logging configuration
	Log LogConfig
}

// ChainsConfig holds RPC and data API connection settings
type ChainsConfig struct {
	EthereumRPCURL string        `envconfig:"ETH_RPC_URL" default:"https://ethereum-rpc.publicnode.com"`
	BaseRPCURL     string        `envconfig:"BASE_RPC_URL" default:"https://mainnet.base.org"`
	SolanaRPCURL   string        `envconfig:"SOLANA_RPC_URL" default:"https://api.mainnet-beta.solana.com"`
	HistoryAPIURL  string        `envconfig:"HISTORY_API_URL" default:"https://api.tatum.io/v4/data/transactions"`
	HistoryAPIKey  string        `envconfig:"HISTORY_API_KEY" default:""`
	HistoryAPIRPS  float64       `envconfig:"HISTORY_API_RPS" default:"3"`
	RequestTimeout time.Duration `envconfig:"CHAIN_REQUEST_TIMEOUT" default:"30s"`
	MaxRetries     int           `envconfig:"CHAIN_MAX_RETRIES" default:"3"`
	RetryDelay     time.Duration `envconfig:"CHAIN_RETRY_DELAY" default:"1s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"indexer"`
	Password        string        `envconfig:"DB_PASSWORD" default:"indexer"`
	Name            string        `envconfig:"DB_NAME" default:"wallet_indexer"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	MigrationsPath  string        `envconfig:"DB_MIGRATIONS_PATH" default:"migrations"`
	AutoMigrate     bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// APIConfig holds API server settings
type APIConfig struct {
	Host            string        `envconfig:"API_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"API_PORT" default:"8081"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"5m"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    int           `envconfig:"API_RATE_LIMIT_RPS" default:"100"`
	CacheTTL        time.Duration `envconfig:"API_CACHE_TTL" default:"30s"`
}

// IngestionConfig controls paging and upstream pacing during ingestion
type IngestionConfig struct {
	BatchSize      int           `envconfig:"INGEST_BATCH_SIZE" default:"2"`
	BatchDelay     time.Duration `envconfig:"INGEST_BATCH_DELAY" default:"1s"`
	PageDelay      time.Duration `envconfig:"INGEST_PAGE_DELAY" default:"100ms"`
	MaxPages       int           `envconfig:"INGEST_MAX_PAGES" default:"100"`
	EVMPageSize    int           `envconfig:"INGEST_EVM_PAGE_SIZE" default:"100"`
	SolanaPageSize int           `envconfig:"INGEST_SOLANA_PAGE_SIZE" default:"1000"`
	DustThreshold  string        `envconfig:"INGEST_DUST_THRESHOLD" default:"0.000001"`
	Timeout        time.Duration `envconfig:"INGEST_TIMEOUT" default:"10m"`
}

// ResolverConfig holds token metadata resolution settings
type ResolverConfig struct {
	CacheTTL     time.Duration `envconfig:"RESOLVER_CACHE_TTL" default:"1h"`
	TokenListURL string        `envconfig:"RESOLVER_TOKEN_LIST_URL" default:"https://token.jup.ag/all"`
	CacheDir     string        `envconfig:"RESOLVER_CACHE_DIR" default:""`
}

// PortfolioConfig holds portfolio aggregation settings
type PortfolioConfig struct {
	Chains   []string      `envconfig:"PORTFOLIO_CHAINS" default:"ethereum-mainnet,base-mainnet,solana-mainnet"`
	CacheTTL time.Duration `envconfig:"PORTFOLIO_CACHE_TTL" default:"10m"`
}

// WorkerConfig holds sync worker settings
type WorkerConfig struct {
	PollInterval  time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"5m"`
	WatchlistFile string        `envconfig:"WORKER_WATCHLIST_FILE" default:"watchlist.yaml"`
	MetricsPort   int           `envconfig:"WORKER_METRICS_PORT" default:"8080"`
}

// AIConfig holds LLM settings
type AIConfig struct {
	OpenAIKey   string  `envconfig:"OPENAI_API_KEY" default:""`
	Model       string  `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	BaseURL     string  `envconfig:"OPENAI_BASE_URL" default:""`
	Temperature float32 `envconfig:"OPENAI_TEMPERATURE" default:"0.3"`
	MaxTokens   int     `envconfig:"OPENAI_MAX_TOKENS" default:"800"`
	MaxEvents   int     `envconfig:"AI_MAX_EVENTS" default:"200"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load loads configuration from a .env file (when present) and environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as golang-migrate expects
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}
