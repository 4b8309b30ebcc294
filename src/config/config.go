package config

import (
	"fmt"
	"os"

	"trade-sim/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// applyDefaults fills optional fields that have sensible defaults.
func (c *Config) applyDefaults() {
	if c.Auth.TokenTTLHours <= 0 {
		c.Auth.TokenTTLHours = 24
	}
	if c.Storage.NewsRetentionDays <= 0 {
		c.Storage.NewsRetentionDays = 30
	}
	if c.Feed.UpdateIntervalSeconds <= 0 {
		c.Feed.UpdateIntervalSeconds = 15
	}
	if c.Feed.NewsIntervalMinutes <= 0 {
		c.Feed.NewsIntervalMinutes = 15
	}
	if c.Feed.VolatilityPercent <= 0 {
		c.Feed.VolatilityPercent = 0.35
	}
	if c.Feed.TickHistorySize <= 0 {
		c.Feed.TickHistorySize = 400
	}
	if c.Trading.InitialCashDollars <= 0 {
		c.Trading.InitialCashDollars = 10000
	}
	if c.Trading.MaxOrderQuantity <= 0 {
		c.Trading.MaxOrderQuantity = 100000
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt_secret cannot be empty")
	}

	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("connection string cannot be empty for postgres")
		}
	case "memory":
		// Nothing to check
	default:
		return fmt.Errorf("unsupported db_type: %s", c.Storage.DBType)
	}

	if len(c.Stocks) == 0 {
		return fmt.Errorf("at least one stock must be configured")
	}
	seen := make(map[string]bool)
	for i, s := range c.Stocks {
		if s.Ticker == "" {
			return fmt.Errorf("stock %d must have a ticker", i)
		}
		if seen[s.Ticker] {
			return fmt.Errorf("duplicate stock ticker: %s", s.Ticker)
		}
		seen[s.Ticker] = true
		if s.OpeningPrice <= 0 {
			return fmt.Errorf("stock '%s' must have a positive opening price", s.Ticker)
		}
	}

	if len(c.Feed.Sources) == 0 {
		return fmt.Errorf("at least one price source must be configured")
	}
	for i, src := range c.Feed.Sources {
		if src.Name == "" {
			return fmt.Errorf("source %d must have a name", i)
		}
		if len(src.Symbols) == 0 {
			return fmt.Errorf("source '%s' must have at least one symbol", src.Name)
		}
		for _, sym := range src.Symbols {
			if !seen[sym] {
				return fmt.Errorf("source '%s' references unknown ticker '%s'", src.Name, sym)
			}
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
