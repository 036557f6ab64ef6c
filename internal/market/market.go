package market

import (
	"context"
	"time"
)

// Candle is one OHLCV bar in the instrument's native session timezone.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// DataProvider supplies prices to the scan loops and the position monitor.
// GetPreviousCandle returns the last fully closed bar for the timeframe; its
// close is the level-set anchor.
type DataProvider interface {
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
	GetPreviousCandle(ctx context.Context, symbol, timeframe string) (*Candle, error)
	GetHistoricalData(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
}
