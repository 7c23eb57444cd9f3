package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// VenueConfig holds connection and fee settings for one venue.
type VenueConfig struct {
	Name              string  `yaml:"name"`
	BaseURL           string  `yaml:"base_url"`
	WSURL             string  `yaml:"ws_url"`
	APIKey            string  `yaml:"api_key"`
	TakerFee          float64 `yaml:"taker_fee"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string `yaml:"log_level"`
	HTTPPort string `yaml:"http_port"`

	// Venues
	VenueA VenueConfig `yaml:"venue_a"`
	VenueB VenueConfig `yaml:"venue_b"`

	// Arbitrage evaluation
	MinArbitrageThreshold float64 `yaml:"min_arbitrage_threshold"`
	MaxTradeSize          float64 `yaml:"max_trade_size"`
	MaxPositionPerMarket  float64 `yaml:"max_position_per_market"`
	SlippageTolerance     float64 `yaml:"slippage_tolerance"`
	EnableCrossSell       bool    `yaml:"enable_cross_sell"`

	// Execution
	ExecutionMode      string        `yaml:"execution_mode"` // "paper" or "live"
	OrderTimeout       time.Duration `yaml:"order_timeout"`
	CooldownPeriod     time.Duration `yaml:"cooldown_period"`
	UnwindMaxAttempts  int           `yaml:"unwind_max_attempts"`
	GatewayMaxRetries  int           `yaml:"gateway_max_retries"`
	GatewayRetryDelay  time.Duration `yaml:"gateway_retry_delay"`
	PaperFillDelay     time.Duration `yaml:"paper_fill_delay"`
	PaperPartialChance float64       `yaml:"paper_partial_chance"`

	// Monitoring
	PriceFetchInterval time.Duration `yaml:"price_fetch_interval"`
	QuoteFreshness     time.Duration `yaml:"quote_freshness"`

	// Notifications
	WebhookURL string `yaml:"webhook_url"`

	// Storage
	StorageMode  string `yaml:"storage_mode"` // "postgres", "sqlite" or "console"
	SQLitePath   string `yaml:"sqlite_path"`
	PostgresHost string `yaml:"postgres_host"`
	PostgresPort string `yaml:"postgres_port"`
	PostgresUser string `yaml:"postgres_user"`
	PostgresPass string `yaml:"postgres_password"`
	PostgresDB   string `yaml:"postgres_db"`
	PostgresSSL  string `yaml:"postgres_sslmode"`
}

// Load builds configuration from an optional YAML file overridden by
// environment variables. An empty path skips the file step.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		err = yaml.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func defaults() *Config {
	return &Config{
		LogLevel: "info",
		HTTPPort: "8080",

		VenueA: VenueConfig{
			Name:              "kalshi",
			BaseURL:           "https://api.elections.kalshi.com/trade-api/v2",
			TakerFee:          0.01,
			RequestsPerSecond: 10,
		},
		VenueB: VenueConfig{
			Name:              "polymarket",
			BaseURL:           "https://clob.polymarket.com",
			WSURL:             "wss://ws-subscriptions-clob.polymarket.com/ws/market",
			TakerFee:          0.02,
			RequestsPerSecond: 10,
		},

		MinArbitrageThreshold: 0.01,
		MaxTradeSize:          1000.0,
		MaxPositionPerMarket:  5000.0,
		SlippageTolerance:     0.02,

		ExecutionMode:      "paper",
		OrderTimeout:       30 * time.Second,
		CooldownPeriod:     5 * time.Second,
		UnwindMaxAttempts:  3,
		GatewayMaxRetries:  3,
		GatewayRetryDelay:  500 * time.Millisecond,
		PaperFillDelay:     200 * time.Millisecond,
		PaperPartialChance: 0.1,

		PriceFetchInterval: 5 * time.Second,
		// Quotes older than 2x the poll interval are treated as absent.
		QuoteFreshness: 10 * time.Second,

		StorageMode:  "console",
		SQLitePath:   "arb.db",
		PostgresHost: "localhost",
		PostgresPort: "5432",
		PostgresUser: "arb",
		PostgresPass: "arb",
		PostgresDB:   "crossvenue_arb",
		PostgresSSL:  "disable",
	}
}

func (c *Config) applyEnv() {
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.HTTPPort, "HTTP_PORT")

	setString(&c.VenueA.Name, "VENUE_A_NAME")
	setString(&c.VenueA.BaseURL, "VENUE_A_BASE_URL")
	setString(&c.VenueA.WSURL, "VENUE_A_WS_URL")
	setString(&c.VenueA.APIKey, "VENUE_A_API_KEY")
	setFloat(&c.VenueA.TakerFee, "VENUE_A_TAKER_FEE")
	setFloat(&c.VenueA.RequestsPerSecond, "VENUE_A_RPS")

	setString(&c.VenueB.Name, "VENUE_B_NAME")
	setString(&c.VenueB.BaseURL, "VENUE_B_BASE_URL")
	setString(&c.VenueB.WSURL, "VENUE_B_WS_URL")
	setString(&c.VenueB.APIKey, "VENUE_B_API_KEY")
	setFloat(&c.VenueB.TakerFee, "VENUE_B_TAKER_FEE")
	setFloat(&c.VenueB.RequestsPerSecond, "VENUE_B_RPS")

	setFloat(&c.MinArbitrageThreshold, "MIN_ARBITRAGE_THRESHOLD")
	setFloat(&c.MaxTradeSize, "MAX_TRADE_SIZE")
	setFloat(&c.MaxPositionPerMarket, "MAX_POSITION_PER_MARKET")
	setFloat(&c.SlippageTolerance, "SLIPPAGE_TOLERANCE")
	setBool(&c.EnableCrossSell, "ENABLE_CROSS_SELL")

	setString(&c.ExecutionMode, "EXECUTION_MODE")
	setSeconds(&c.OrderTimeout, "ORDER_TIMEOUT_SECONDS")
	setSeconds(&c.CooldownPeriod, "COOLDOWN_PERIOD_SECONDS")
	setInt(&c.UnwindMaxAttempts, "UNWIND_MAX_ATTEMPTS")
	setInt(&c.GatewayMaxRetries, "GATEWAY_MAX_RETRIES")
	setDuration(&c.GatewayRetryDelay, "GATEWAY_RETRY_DELAY")
	setDuration(&c.PaperFillDelay, "PAPER_FILL_DELAY")
	setFloat(&c.PaperPartialChance, "PAPER_PARTIAL_CHANCE")

	setSeconds(&c.PriceFetchInterval, "PRICE_FETCH_INTERVAL")
	setDuration(&c.QuoteFreshness, "QUOTE_FRESHNESS")

	setString(&c.WebhookURL, "WEBHOOK_URL")

	setString(&c.StorageMode, "STORAGE_MODE")
	setString(&c.SQLitePath, "SQLITE_PATH")
	setString(&c.PostgresHost, "POSTGRES_HOST")
	setString(&c.PostgresPort, "POSTGRES_PORT")
	setString(&c.PostgresUser, "POSTGRES_USER")
	setString(&c.PostgresPass, "POSTGRES_PASSWORD")
	setString(&c.PostgresDB, "POSTGRES_DB")
	setString(&c.PostgresSSL, "POSTGRES_SSLMODE")
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.MinArbitrageThreshold <= 0 || c.MinArbitrageThreshold >= 1.0 {
		return fmt.Errorf("MIN_ARBITRAGE_THRESHOLD must be between 0 and 1.0, got %f", c.MinArbitrageThreshold)
	}

	if c.SlippageTolerance < 0 || c.SlippageTolerance >= 1.0 {
		return fmt.Errorf("SLIPPAGE_TOLERANCE must be between 0 and 1.0, got %f", c.SlippageTolerance)
	}

	if c.MaxTradeSize <= 0 {
		return fmt.Errorf("MAX_TRADE_SIZE must be positive, got %f", c.MaxTradeSize)
	}

	if c.MaxPositionPerMarket <= 0 {
		return fmt.Errorf("MAX_POSITION_PER_MARKET must be positive, got %f", c.MaxPositionPerMarket)
	}

	if c.OrderTimeout <= 0 {
		return fmt.Errorf("ORDER_TIMEOUT_SECONDS must be positive")
	}

	if c.PriceFetchInterval <= 0 {
		return fmt.Errorf("PRICE_FETCH_INTERVAL must be positive")
	}

	if c.UnwindMaxAttempts < 1 {
		return fmt.Errorf("UNWIND_MAX_ATTEMPTS must be at least 1, got %d", c.UnwindMaxAttempts)
	}

	if c.ExecutionMode != "paper" && c.ExecutionMode != "live" {
		return fmt.Errorf("EXECUTION_MODE must be 'paper' or 'live', got %q", c.ExecutionMode)
	}

	if c.StorageMode != "postgres" && c.StorageMode != "sqlite" && c.StorageMode != "console" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres', 'sqlite' or 'console', got %q", c.StorageMode)
	}

	if c.QuoteFreshness < c.PriceFetchInterval {
		return fmt.Errorf("QUOTE_FRESHNESS must be at least PRICE_FETCH_INTERVAL")
	}

	return nil
}

func setString(dst *string, key string) {
	value := os.Getenv(key)
	if value != "" {
		*dst = value
	}
}

func setFloat(dst *float64, key string) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err == nil {
		*dst = parsed
	}
}

func setInt(dst *int, key string) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	parsed, err := strconv.Atoi(value)
	if err == nil {
		*dst = parsed
	}
}

func setBool(dst *bool, key string) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	parsed, err := strconv.ParseBool(value)
	if err == nil {
		*dst = parsed
	}
}

func setDuration(dst *time.Duration, key string) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	parsed, err := time.ParseDuration(value)
	if err == nil {
		*dst = parsed
	}
}

// setSeconds parses an integer number of seconds, matching the *_SECONDS
// env var naming.
func setSeconds(dst *time.Duration, key string) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	parsed, err := strconv.Atoi(value)
	if err == nil && parsed > 0 {
		*dst = time.Duration(parsed) * time.Second
	}
}
