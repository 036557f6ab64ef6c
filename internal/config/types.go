package config

// Config is the top-level configuration carrier, loaded once at startup.
type Config struct {
	App     AppConfig     `toml:"app"`
	Market  MarketConfig  `toml:"market"`
	Broker  BrokerConfig  `toml:"broker"`
	Gann    GannConfig    `toml:"gann"`
	Risk    RiskConfig    `toml:"risk"`
	Retry   RetryConfig   `toml:"retry"`
	Monitor MonitorConfig `toml:"monitor"`
	Symbols SymbolsConfig `toml:"symbols"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	HTTPAddr  string `toml:"http_addr"`
	LogPath   string `toml:"log_path"`
	StorePath string `toml:"store_path"`
}

// MarketConfig describes the data feed and the per-symbol scan cadence.
type MarketConfig struct {
	DataURL              string `toml:"data_url"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
	Timeframe            string `toml:"timeframe"`
	ScanIntervalSeconds  int    `toml:"scan_interval_seconds"`
	ErrorIntervalSeconds int    `toml:"error_interval_seconds"`
	SessionStart         string `toml:"session_start"` // "09:15" IST
	SessionEnd           string `toml:"session_end"`   // "15:30" IST
}

// BrokerConfig selects the execution path. In paper mode orders are posted to
// the webhook URL instead of the AlgoMojo REST API.
type BrokerConfig struct {
	Mode            string `toml:"mode"` // "paper" | "live"
	APIURL          string `toml:"api_url"`
	APIKey          string `toml:"api_key"`
	APISecret       string `toml:"api_secret"`
	BrokerCode      string `toml:"broker_code"`
	Strategy        string `toml:"strategy"`
	WebhookURL      string `toml:"webhook_url"`
	DefaultProduct  string `toml:"default_product"`  // MIS | NRML
	DefaultExchange string `toml:"default_exchange"` // NSE, NFO, MCX
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// GannConfig parameterizes Square-of-9 level generation.
type GannConfig struct {
	Increments       []float64 `toml:"increments"`
	NumValues        int       `toml:"num_values"`
	BufferPercentage float64   `toml:"buffer_percentage"`
	IncludeLower     *bool     `toml:"include_lower"`
	TargetCount      int       `toml:"target_count"`
}

type RiskConfig struct {
	AccountBalance  float64 `toml:"account_balance"`
	MaxRiskPerTrade float64 `toml:"max_risk_per_trade"`
	MaxPositions    int     `toml:"max_positions"`
	MaxDailyLoss    float64 `toml:"max_daily_loss"`
	MaxDrawdown     float64 `toml:"max_drawdown"`
}

type RetryConfig struct {
	MaxAttempts    int     `toml:"max_attempts"`
	DelaySeconds   float64 `toml:"delay_seconds"`
	BackoffFactor  float64 `toml:"backoff_factor"`
	MonitorSeconds int     `toml:"monitor_seconds"`
}

type MonitorConfig struct {
	PollIntervalSeconds  int `toml:"poll_interval_seconds"`
	ErrorIntervalSeconds int `toml:"error_interval_seconds"`
}

// SymbolsConfig points at the watchlist + mapping-rule file (YAML).
type SymbolsConfig struct {
	Path string `toml:"path"`
}

func (g GannConfig) LowerHalf() bool {
	if g.IncludeLower == nil {
		return true
	}
	return *g.IncludeLower
}
