// Package config loads the application configuration from an optional
// JSON file and environment variable overrides, layered on the package
// defaults. Environment variables take precedence over the file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"coinone-trading-bot/internal/api"
	"coinone-trading-bot/internal/backtest"
	"coinone-trading-bot/internal/bandwalk"
	"coinone-trading-bot/internal/cache"
	"coinone-trading-bot/internal/coinone"
	"coinone-trading-bot/internal/database"
	"coinone-trading-bot/internal/market"
	"coinone-trading-bot/internal/strategy"
)

// Config is the full application configuration.
type Config struct {
	Coinone    CoinoneConfig            `json:"coinone"`
	Market     MarketConfig             `json:"market"`
	Classifier *market.ClassifierConfig `json:"classifier"`
	BandWalk   *bandwalk.Config         `json:"band_walk"`
	Strategy   *strategy.Config         `json:"strategy"`
	Backtest   *backtest.Config         `json:"backtest"`
	Server     *api.ServerConfig        `json:"server"`
	Database   *database.Config         `json:"database"`
	Redis      *cache.Config            `json:"redis"`
	Logging    LoggingConfig            `json:"logging"`
}

// CoinoneConfig holds the exchange endpoints. Public market data only, no
// credentials.
type CoinoneConfig struct {
	BaseURL string `json:"base_url"` // Default: https://api.coinone.co.kr
	WSURL   string `json:"ws_url"`   // Default: wss://stream.coinone.co.kr
}

// MarketConfig selects the traded pair and analysis intervals.
type MarketConfig struct {
	QuoteCurrency   string `json:"quote_currency"`   // Default: KRW
	TargetCurrency  string `json:"target_currency"`  // Default: XRP
	PrimaryInterval string `json:"primary_interval"` // Default: 5m
	HigherInterval  string `json:"higher_interval"`  // Default: 30m
}

// LoggingConfig controls the root logger.
type LoggingConfig struct {
	Level      string `json:"level"`  // Default: INFO
	Output     string `json:"output"` // Default: stdout
	JSONFormat bool   `json:"json_format"`
}

// Default returns a configuration with every option at its documented
// default.
func Default() *Config {
	return &Config{
		Coinone: CoinoneConfig{
			BaseURL: "https://api.coinone.co.kr",
			WSURL:   "wss://stream.coinone.co.kr",
		},
		Market: MarketConfig{
			QuoteCurrency:   "KRW",
			TargetCurrency:  "XRP",
			PrimaryInterval: string(coinone.Interval5m),
			HigherInterval:  string(coinone.Interval30m),
		},
		Classifier: market.DefaultClassifierConfig(),
		BandWalk:   bandwalk.DefaultConfig(),
		Strategy:   strategy.DefaultConfig(),
		Backtest:   backtest.DefaultConfig(),
		Server:     api.DefaultServerConfig(),
		Database:   database.DefaultConfig(),
		Redis:      cache.DefaultConfig(),
		Logging: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
	}
}

// Load reads the configuration: defaults, then the JSON file at path if it
// exists, then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Coinone.BaseURL = getEnvOrDefault("COINONE_BASE_URL", cfg.Coinone.BaseURL)
	cfg.Coinone.WSURL = getEnvOrDefault("COINONE_WS_URL", cfg.Coinone.WSURL)

	cfg.Market.QuoteCurrency = getEnvOrDefault("MARKET_QUOTE", cfg.Market.QuoteCurrency)
	cfg.Market.TargetCurrency = getEnvOrDefault("MARKET_TARGET", cfg.Market.TargetCurrency)
	cfg.Market.PrimaryInterval = getEnvOrDefault("MARKET_INTERVAL", cfg.Market.PrimaryInterval)
	cfg.Market.HigherInterval = getEnvOrDefault("MARKET_HIGHER_INTERVAL", cfg.Market.HigherInterval)

	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvIntOrDefault("SERVER_PORT", cfg.Server.Port)
	cfg.Server.ProductionMode = getEnvBoolOrDefault("SERVER_PRODUCTION", cfg.Server.ProductionMode)

	cfg.Database.Enabled = getEnvBoolOrDefault("DB_ENABLED", cfg.Database.Enabled)
	cfg.Database.Host = getEnvOrDefault("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvIntOrDefault("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnvOrDefault("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnvOrDefault("DB_NAME", cfg.Database.Database)
	cfg.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.Database.SSLMode)

	cfg.Redis.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.Redis.Address)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvIntOrDefault("REDIS_DB", cfg.Redis.DB)

	cfg.Backtest.InitialCapital = getEnvFloatOrDefault("BACKTEST_CAPITAL", cfg.Backtest.InitialCapital)
	cfg.Backtest.SizeFraction = getEnvFloatOrDefault("BACKTEST_SIZE_FRACTION", cfg.Backtest.SizeFraction)
	cfg.Backtest.Leverage = getEnvFloatOrDefault("BACKTEST_LEVERAGE", cfg.Backtest.Leverage)
	cfg.Backtest.FeeRate = getEnvFloatOrDefault("BACKTEST_FEE_RATE", cfg.Backtest.FeeRate)
	cfg.Backtest.WarmupWindow = getEnvIntOrDefault("BACKTEST_WARMUP", cfg.Backtest.WarmupWindow)

	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Output = getEnvOrDefault("LOG_OUTPUT", cfg.Logging.Output)
	cfg.Logging.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.Logging.JSONFormat)
}

// Validate checks the cross-cutting constraints a merged configuration
// must satisfy.
func (c *Config) Validate() error {
	if err := c.Classifier.Validate(); err != nil {
		return err
	}
	if _, err := coinone.Interval(c.Market.PrimaryInterval).Duration(); err != nil {
		return fmt.Errorf("primary interval: %w", err)
	}
	if _, err := coinone.Interval(c.Market.HigherInterval).Duration(); err != nil {
		return fmt.Errorf("higher interval: %w", err)
	}
	if c.Market.QuoteCurrency == "" || c.Market.TargetCurrency == "" {
		return fmt.Errorf("market pair must be configured")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return defaultValue
}
