package config

// Defaults mirror the parameters the strategy was tuned with; anything the
// file sets explicitly wins.
func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":9880"
	}
	if c.App.StorePath == "" {
		c.App.StorePath = "data/positions.db"
	}

	if c.Market.TimeoutSeconds <= 0 {
		c.Market.TimeoutSeconds = 10
	}
	if c.Market.Timeframe == "" {
		c.Market.Timeframe = "1d"
	}
	if c.Market.ScanIntervalSeconds <= 0 {
		c.Market.ScanIntervalSeconds = 10
	}
	if c.Market.ErrorIntervalSeconds <= 0 {
		c.Market.ErrorIntervalSeconds = 30
	}
	if c.Market.SessionStart == "" {
		c.Market.SessionStart = "09:15"
	}
	if c.Market.SessionEnd == "" {
		c.Market.SessionEnd = "15:30"
	}

	if c.Broker.Mode == "" {
		c.Broker.Mode = "paper"
	}
	if c.Broker.DefaultProduct == "" {
		c.Broker.DefaultProduct = "MIS"
	}
	if c.Broker.DefaultExchange == "" {
		c.Broker.DefaultExchange = "NSE"
	}
	if c.Broker.Strategy == "" {
		c.Broker.Strategy = "Gann Square of 9"
	}
	if c.Broker.TimeoutSeconds <= 0 {
		c.Broker.TimeoutSeconds = 15
	}

	if len(c.Gann.Increments) == 0 {
		c.Gann.Increments = []float64{0.125, 0.25, 0.5, 0.75, 1.0, 0.75, 0.5, 0.25}
	}
	if c.Gann.NumValues <= 0 {
		c.Gann.NumValues = 20
	}
	if c.Gann.BufferPercentage <= 0 {
		c.Gann.BufferPercentage = 0.002
	}
	if c.Gann.TargetCount <= 0 {
		c.Gann.TargetCount = 3
	}

	if c.Risk.MaxRiskPerTrade <= 0 {
		c.Risk.MaxRiskPerTrade = 0.01
	}
	if c.Risk.MaxPositions <= 0 {
		c.Risk.MaxPositions = 5
	}
	if c.Risk.MaxDailyLoss <= 0 {
		c.Risk.MaxDailyLoss = 0.05
	}
	if c.Risk.MaxDrawdown <= 0 {
		c.Risk.MaxDrawdown = 0.10
	}

	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.DelaySeconds <= 0 {
		c.Retry.DelaySeconds = 2
	}
	if c.Retry.BackoffFactor <= 0 {
		c.Retry.BackoffFactor = 2
	}
	if c.Retry.MonitorSeconds <= 0 {
		c.Retry.MonitorSeconds = 45
	}

	if c.Monitor.PollIntervalSeconds <= 0 {
		c.Monitor.PollIntervalSeconds = 10
	}
	if c.Monitor.ErrorIntervalSeconds <= 0 {
		c.Monitor.ErrorIntervalSeconds = 30
	}

	if c.Symbols.Path == "" {
		c.Symbols.Path = "configs/symbols.yaml"
	}
}
