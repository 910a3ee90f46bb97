package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `env:", prefix=SERVER_"`
	Binance   BinanceConfig   `env:", prefix=BINANCE_"`
	CoinGecko CoinGeckoConfig `env:", prefix=COINGECKO_"`
	Market    MarketConfig    `env:", prefix=MARKET_"`
	Chart     ChartConfig     `env:", prefix=CHART_"`
	Session   SessionConfig   `env:", prefix=SESSION_"`
	Redis     RedisConfig     `env:", prefix=REDIS_"`
	NATS      NATSConfig      `env:", prefix=NATS_"`
	Security  SecurityConfig  `env:", prefix=SECURITY_"`
	Logging   LoggingConfig   `env:", prefix=LOG_"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string        `env:"HOST, default=0.0.0.0"`
	Port         int           `env:"PORT, default=8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT, default=120s"`
}

// BinanceConfig holds the ticker/kline provider endpoints
type BinanceConfig struct {
	APIURL    string        `env:"API_URL, default=https://api.binance.com"`
	StreamURL string        `env:"STREAM_URL, default=wss://stream.binance.com:9443"`
	Timeout   time.Duration `env:"TIMEOUT, default=10s"`
	RateLimit time.Duration `env:"RATE_LIMIT, default=100ms"`
	CandleCap int           `env:"CANDLE_CAP, default=1000"`
}

// CoinGeckoConfig holds the metadata provider endpoints
type CoinGeckoConfig struct {
	APIURL    string        `env:"API_URL, default=https://api.coingecko.com/api/v3"`
	APIKey    string        `env:"API_KEY"`
	Timeout   time.Duration `env:"TIMEOUT, default=10s"`
	RateLimit time.Duration `env:"RATE_LIMIT, default=0s"` // minimum spacing between calls, 0 disables
}

// MarketConfig holds currency normalization and synchronization settings
type MarketConfig struct {
	TargetCurrency    string        `env:"TARGET_CURRENCY, default=INR"`
	ForeignQuote      string        `env:"FOREIGN_QUOTE, default=USDT"`
	RateBaseID        string        `env:"RATE_BASE_ID, default=tether"`
	FallbackRate      float64       `env:"FALLBACK_RATE, default=83"`
	PageSize          int           `env:"PAGE_SIZE, default=50"`
	MetadataBatchSize int           `env:"METADATA_BATCH_SIZE, default=50"`
	MetadataDelay     time.Duration `env:"METADATA_DELAY, default=1s"`
	ReconnectDelay    time.Duration `env:"RECONNECT_DELAY, default=1s"`
}

// ChartConfig holds chart geometry defaults
type ChartConfig struct {
	Width     float64 `env:"WIDTH, default=1170"`
	Height    float64 `env:"HEIGHT, default=250"`
	MaxLabels int     `env:"MAX_LABELS, default=12"`
	Timezone  string  `env:"TIMEZONE, default=Local"`
}

// SessionConfig holds synchronizer session settings
type SessionConfig struct {
	IdleTimeout   time.Duration `env:"IDLE_TIMEOUT, default=30m"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL, default=1m"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled      bool          `env:"ENABLED, default=false"`
	Host         string        `env:"HOST, default=localhost"`
	Port         int           `env:"PORT, default=6379"`
	Password     string        `env:"PASSWORD"`
	DB           int           `env:"DB, default=0"`
	PoolSize     int           `env:"POOL_SIZE, default=10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS, default=2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT, default=5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=3s"`
	KeyPrefix    string        `env:"KEY_PREFIX, default=coinpulse:"`
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	Enabled       bool          `env:"ENABLED, default=false"`
	URL           string        `env:"URL, default=nats://localhost:4222"`
	MaxReconnect  int           `env:"MAX_RECONNECT, default=10"`
	ReconnectWait time.Duration `env:"RECONNECT_WAIT, default=2s"`
	SubjectPrefix string        `env:"SUBJECT_PREFIX, default=ticks"`
}

// SecurityConfig holds CORS configuration
type SecurityConfig struct {
	CORSEnabled bool     `env:"CORS_ENABLED, default=true"`
	CORSOrigins []string `env:"CORS_ORIGINS, default=*"`
	CORSMethods []string `env:"CORS_METHODS, default=GET,POST,PUT,DELETE,OPTIONS"`
	CORSHeaders []string `env:"CORS_HEADERS, default=*"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LEVEL, default=info"`
	Format string `env:"FORMAT, default=text"`
	Output string `env:"OUTPUT, default=stdout"`
}

// Load loads configuration from environment variables using go-envconfig
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	cfg.Market.TargetCurrency = strings.ToUpper(cfg.Market.TargetCurrency)
	cfg.Market.ForeignQuote = strings.ToUpper(cfg.Market.ForeignQuote)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if !strings.HasPrefix(c.Binance.StreamURL, "ws://") && !strings.HasPrefix(c.Binance.StreamURL, "wss://") {
		return fmt.Errorf("invalid Binance stream URL: %s", c.Binance.StreamURL)
	}

	if c.Binance.CandleCap <= 0 || c.Binance.CandleCap > 1000 {
		return fmt.Errorf("candle cap must be within 1..1000, got %d", c.Binance.CandleCap)
	}

	if c.Market.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}

	if c.Market.MetadataBatchSize <= 0 || c.Market.MetadataBatchSize > 250 {
		return fmt.Errorf("metadata batch size must be within 1..250, got %d", c.Market.MetadataBatchSize)
	}

	if c.Market.FallbackRate <= 0 {
		return fmt.Errorf("fallback rate must be positive")
	}

	if c.Market.TargetCurrency == "" || c.Market.TargetCurrency == c.Market.ForeignQuote {
		return fmt.Errorf("target currency %q must differ from foreign quote %q",
			c.Market.TargetCurrency, c.Market.ForeignQuote)
	}

	if c.Chart.Width <= 0 || c.Chart.Height <= 0 || c.Chart.MaxLabels <= 0 {
		return fmt.Errorf("chart dimensions and max labels must be positive")
	}

	return nil
}

// GetRedisAddr returns Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// GetServerAddr returns server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
