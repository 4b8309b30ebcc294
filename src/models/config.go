package models

// MConfig Structure
type MConfig struct {
	Name     string `yaml:"name"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	Auth    MAuthConfig    `yaml:"auth"`
	Storage MStorageConfig `yaml:"storage"`
	Trading MTradingConfig `yaml:"trading"`
	Feed    MFeedConfig    `yaml:"feed"`
	Stocks  []MStockSeed   `yaml:"stocks"`
}

type MAuthConfig struct {
	JWTSecret      string `yaml:"jwt_secret"`
	TokenTTLHours  int    `yaml:"token_ttl_hours"`
	RequireWSToken bool   `yaml:"require_ws_token"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"` // sqlite | postgres | memory
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	NewsRetentionDays  int    `yaml:"news_retention_days"`
}

type MTradingConfig struct {
	InitialCashDollars float64 `yaml:"initial_cash_dollars"`
	AllowShort         bool    `yaml:"allow_short"`
	MaxOrderQuantity   int64   `yaml:"max_order_quantity"`
}

type MFeedConfig struct {
	UpdateIntervalSeconds int             `yaml:"update_interval_seconds"`
	NewsIntervalMinutes   int             `yaml:"news_interval_minutes"`
	VolatilityPercent     float64         `yaml:"volatility_percent"`
	RespectMarketHours    bool            `yaml:"respect_market_hours"`
	TickHistorySize       int             `yaml:"tick_history_size"`
	Sources               []MSourceConfig `yaml:"sources"`
}

type MSourceConfig struct {
	Name    string   `yaml:"name"`
	Symbols []string `yaml:"symbols"`
	Seed    int64    `yaml:"seed"` // Optional, for reproducible walks
}

// MStockSeed defines one instrument created at first startup.
type MStockSeed struct {
	Ticker       string  `yaml:"ticker"`
	Name         string  `yaml:"name"`
	OpeningPrice float64 `yaml:"opening_price"`
}
