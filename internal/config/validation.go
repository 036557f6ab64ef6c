package config

import (
	"fmt"
	"strings"
	"time"
)

const angleCount = 8

func validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	switch strings.ToLower(cfg.Broker.Mode) {
	case "paper":
		if strings.TrimSpace(cfg.Broker.WebhookURL) == "" {
			return fmt.Errorf("broker.webhook_url is required in paper mode")
		}
	case "live":
		if strings.TrimSpace(cfg.Broker.APIURL) == "" {
			return fmt.Errorf("broker.api_url is required in live mode")
		}
		if strings.TrimSpace(cfg.Broker.APIKey) == "" || strings.TrimSpace(cfg.Broker.APISecret) == "" {
			return fmt.Errorf("broker.api_key / broker.api_secret are required in live mode")
		}
	default:
		return fmt.Errorf("broker.mode must be paper or live, got %q", cfg.Broker.Mode)
	}

	if len(cfg.Gann.Increments) != angleCount {
		return fmt.Errorf("gann.increments must list %d values (one per angle), got %d",
			angleCount, len(cfg.Gann.Increments))
	}
	for i, inc := range cfg.Gann.Increments {
		if inc <= 0 {
			return fmt.Errorf("gann.increments[%d] must be positive, got %v", i, inc)
		}
	}
	if cfg.Gann.NumValues%2 != 0 {
		return fmt.Errorf("gann.num_values must be even, got %d", cfg.Gann.NumValues)
	}
	if cfg.Gann.BufferPercentage >= 1 {
		return fmt.Errorf("gann.buffer_percentage is a fraction, got %v", cfg.Gann.BufferPercentage)
	}

	if cfg.Risk.AccountBalance <= 0 {
		return fmt.Errorf("risk.account_balance must be positive")
	}
	if cfg.Risk.MaxRiskPerTrade >= 1 {
		return fmt.Errorf("risk.max_risk_per_trade is a fraction of balance, got %v", cfg.Risk.MaxRiskPerTrade)
	}
	if cfg.Risk.MaxDailyLoss >= 1 || cfg.Risk.MaxDrawdown >= 1 {
		return fmt.Errorf("risk.max_daily_loss / risk.max_drawdown are fractions")
	}

	if cfg.Retry.BackoffFactor < 1 {
		return fmt.Errorf("retry.backoff_factor must be >= 1, got %v", cfg.Retry.BackoffFactor)
	}

	for _, field := range []struct{ name, val string }{
		{"market.session_start", cfg.Market.SessionStart},
		{"market.session_end", cfg.Market.SessionEnd},
	} {
		if _, err := time.Parse("15:04", field.val); err != nil {
			return fmt.Errorf("%s must be HH:MM, got %q", field.name, field.val)
		}
	}
	return nil
}
