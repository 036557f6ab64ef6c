package types

import "time"

// InstrumentClass decides the trading rule applied to a signal: equities take
// a stock leg plus an option leg, indices trade options only, commodities
// trade the futures symbol directly.
type InstrumentClass string

const (
	ClassEquity    InstrumentClass = "equity"
	ClassIndex     InstrumentClass = "index"
	ClassCommodity InstrumentClass = "commodity"
)

type Direction string

const (
	DirectionBuyAbove  Direction = "buy_above"
	DirectionSellBelow Direction = "sell_below"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Sign is +1 for long exposure, -1 for short, used in P&L math.
func (s Side) Sign() float64 {
	if s == SideSell {
		return -1
	}
	return 1
}

func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Signal is a level crossing enriched with the context the risk manager
// needs. Consumed exactly once: accepted into a Position or rejected.
type Signal struct {
	Symbol        string          `json:"symbol"`
	Class         InstrumentClass `json:"instrument_class"`
	Direction     Direction       `json:"direction"`
	TriggerLevel  float64         `json:"trigger_level"`
	ObservedPrice float64         `json:"observed_price"`
	BuyAbove      float64         `json:"buy_above"`
	SellBelow     float64         `json:"sell_below"`
	StopLoss      float64         `json:"stop_loss"`
	Targets       []float64       `json:"targets,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type PositionStatus string

const (
	PositionPending PositionStatus = "pending"
	PositionOpen    PositionStatus = "open"
	PositionClosing PositionStatus = "closing"
	PositionClosed  PositionStatus = "closed"
)

// Position is owned by the risk manager for risk state and by the position
// monitor for lifecycle transitions. Archived once Closed.
type Position struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"order_id,omitempty"`
	Symbol       string          `json:"symbol"`
	BrokerSymbol string          `json:"broker_symbol,omitempty"`
	Exchange     string          `json:"exchange,omitempty"`
	Product      string          `json:"product,omitempty"`
	Class        InstrumentClass `json:"instrument_class"`
	Side         Side            `json:"side"`
	Quantity     int             `json:"quantity"`
	EntryPrice   float64         `json:"entry_price"`
	StopLoss     float64         `json:"stop_loss"`
	Target       float64         `json:"target,omitempty"`
	Status       PositionStatus  `json:"status"`
	RiskAmount   float64         `json:"risk_amount"`
	EntryTime    time.Time       `json:"entry_time"`
	ExitTime     time.Time       `json:"exit_time,omitzero"`
	ExitPrice    float64         `json:"exit_price,omitempty"`
	RealizedPnL  float64         `json:"realized_pnl,omitempty"`
	ExitReason   string          `json:"exit_reason,omitempty"`
}

// RiskState is the single mutable account record, updated only by the risk
// manager under its own lock. Values here are copies for readers.
type RiskState struct {
	AccountBalance  float64 `json:"account_balance"`
	DailyPnL        float64 `json:"daily_pnl"`
	OpenPositions   int     `json:"open_positions"`
	PeakBalance     float64 `json:"peak_balance"`
	CurrentDrawdown float64 `json:"current_drawdown"`
}

// PerformanceSummary aggregates closed-trade statistics.
type PerformanceSummary struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	ProfitFactor  float64 `json:"profit_factor"`
	TotalProfit   float64 `json:"total_profit"`
	TotalLoss     float64 `json:"total_loss"`
	NetProfit     float64 `json:"net_profit"`
	DailyPnL      float64 `json:"daily_pnl"`
	Drawdown      float64 `json:"drawdown"`
	OpenPositions int     `json:"open_positions"`
}
