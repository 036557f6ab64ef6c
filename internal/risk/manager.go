package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mahekanna/gann-algomojo/internal/config"
	"github.com/mahekanna/gann-algomojo/internal/logger"
	"github.com/mahekanna/gann-algomojo/internal/types"
)

type RejectReason string

const (
	RejectMaxPositions RejectReason = "max_positions"
	RejectDailyLoss    RejectReason = "daily_loss"
	RejectDrawdown     RejectReason = "drawdown"
	RejectZeroQuantity RejectReason = "zero_quantity"
)

// Rejection explains why a signal was not turned into a position.
type Rejection struct {
	Reason RejectReason
	Detail string
}

func (r *Rejection) String() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

// Manager is the single gatekeeper between signals and orders. All account
// state lives behind one mutex; every accessor hands out copies.
type Manager struct {
	mu  sync.Mutex
	cfg config.RiskConfig

	balance   float64
	peak      float64
	dailyPnL  float64
	positions map[string]*types.Position
	closed    []types.Position
}

func NewManager(cfg config.RiskConfig) *Manager {
	return &Manager{
		cfg:       cfg,
		balance:   cfg.AccountBalance,
		peak:      cfg.AccountBalance,
		positions: make(map[string]*types.Position),
	}
}

// Evaluate runs the admission gates in a fixed order and, when all pass,
// reserves a Pending position. The pending reservation counts against
// maxPositions immediately so concurrent signals cannot oversubscribe.
func (m *Manager) Evaluate(sig *types.Signal, entry, stop float64) (*types.Position, *Rejection) {
	return m.evaluate(sig, entry, stop, 0)
}

// EvaluateLot runs the same gates but with a fixed quantity, for option legs
// where the size is the contract lot rather than risk-derived.
func (m *Manager) EvaluateLot(sig *types.Signal, entry, stop float64, quantity int) (*types.Position, *Rejection) {
	if quantity < 1 {
		return nil, &Rejection{Reason: RejectZeroQuantity, Detail: "lot size must be positive"}
	}
	return m.evaluate(sig, entry, stop, quantity)
}

func (m *Manager) evaluate(sig *types.Signal, entry, stop float64, fixedQty int) (*types.Position, *Rejection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := len(m.positions); n >= m.cfg.MaxPositions {
		return nil, &Rejection{
			Reason: RejectMaxPositions,
			Detail: fmt.Sprintf("%d of %d positions in use", n, m.cfg.MaxPositions),
		}
	}
	if limit := m.cfg.MaxDailyLoss * m.balance; m.dailyPnL <= -limit {
		return nil, &Rejection{
			Reason: RejectDailyLoss,
			Detail: fmt.Sprintf("daily pnl %.2f breaches limit -%.2f", m.dailyPnL, limit),
		}
	}
	if dd := m.drawdownLocked(); dd >= m.cfg.MaxDrawdown {
		return nil, &Rejection{
			Reason: RejectDrawdown,
			Detail: fmt.Sprintf("drawdown %.4f at or above limit %.4f", dd, m.cfg.MaxDrawdown),
		}
	}

	perUnit := math.Abs(entry - stop)
	if perUnit <= 0 {
		return nil, &Rejection{Reason: RejectZeroQuantity, Detail: "entry equals stop"}
	}
	quantity := fixedQty
	if quantity == 0 {
		quantity = int(math.Floor(m.balance * m.cfg.MaxRiskPerTrade / perUnit))
		if quantity < 1 {
			return nil, &Rejection{
				Reason: RejectZeroQuantity,
				Detail: fmt.Sprintf("per-unit risk %.2f too large for budget %.2f",
					perUnit, m.balance*m.cfg.MaxRiskPerTrade),
			}
		}
	}

	side := types.SideBuy
	if sig.Direction == types.DirectionSellBelow {
		side = types.SideSell
	}
	var target float64
	if len(sig.Targets) > 0 {
		target = sig.Targets[0]
	}
	pos := &types.Position{
		ID:         uuid.NewString(),
		Symbol:     sig.Symbol,
		Class:      sig.Class,
		Side:       side,
		Quantity:   quantity,
		EntryPrice: entry,
		StopLoss:   stop,
		Target:     target,
		Status:     types.PositionPending,
		RiskAmount: round2(float64(quantity) * perUnit),
		EntryTime:  time.Now(),
	}
	m.positions[pos.ID] = pos
	logger.Infof("Signal accepted: %s %s qty=%d entry=%.2f stop=%.2f",
		pos.Symbol, pos.Side, pos.Quantity, entry, stop)
	return copyOf(pos), nil
}

// Fill carries what the executor learned when the entry order completed.
type Fill struct {
	OrderID      string
	Price        float64
	BrokerSymbol string
	Exchange     string
	Product      string
}

// Register confirms the fill: Pending -> Open, recording the broker order ID,
// the venue route and, when known, the actual entry price.
func (m *Manager) Register(id string, fill Fill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[id]
	if !ok {
		return fmt.Errorf("risk: unknown position %s", id)
	}
	if pos.Status != types.PositionPending {
		return fmt.Errorf("risk: position %s is %s, not pending", id, pos.Status)
	}
	pos.OrderID = fill.OrderID
	pos.Status = types.PositionOpen
	if fill.Price > 0 {
		pos.EntryPrice = fill.Price
	}
	if fill.BrokerSymbol != "" {
		pos.BrokerSymbol = fill.BrokerSymbol
	}
	if fill.Exchange != "" {
		pos.Exchange = fill.Exchange
	}
	if fill.Product != "" {
		pos.Product = fill.Product
	}
	return nil
}

// Release drops a reservation whose order never made it to the broker.
func (m *Manager) Release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[id]
	if !ok {
		return
	}
	if pos.Status == types.PositionPending {
		delete(m.positions, id)
	}
}

// MarkClosing moves an open position to Closing so a second monitor tick
// cannot trigger a duplicate exit.
func (m *Manager) MarkClosing(id string) (*types.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[id]
	if !ok {
		return nil, fmt.Errorf("risk: unknown position %s", id)
	}
	if pos.Status != types.PositionOpen {
		return nil, fmt.Errorf("risk: position %s is %s, not open", id, pos.Status)
	}
	pos.Status = types.PositionClosing
	return copyOf(pos), nil
}

// Reopen reverts a Closing position whose exit order failed, so the monitor
// picks it up again on the next tick.
func (m *Manager) Reopen(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pos, ok := m.positions[id]; ok && pos.Status == types.PositionClosing {
		pos.Status = types.PositionOpen
	}
}

// ClosePosition realizes the P&L and updates the account: balance, daily
// P&L, peak and drawdown. The position moves to the closed journal.
func (m *Manager) ClosePosition(id string, exitPrice float64, reason string) (*types.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[id]
	if !ok {
		return nil, fmt.Errorf("risk: unknown position %s", id)
	}

	pnl := round2((exitPrice - pos.EntryPrice) * float64(pos.Quantity) * pos.Side.Sign())
	pos.Status = types.PositionClosed
	pos.ExitPrice = exitPrice
	pos.ExitTime = time.Now()
	pos.RealizedPnL = pnl
	pos.ExitReason = reason

	m.dailyPnL = round2(m.dailyPnL + pnl)
	m.balance = round2(m.balance + pnl)
	if m.balance > m.peak {
		m.peak = m.balance
	}

	delete(m.positions, id)
	m.closed = append(m.closed, *pos)
	logger.Infof("Position closed: %s %s pnl=%.2f reason=%s balance=%.2f",
		pos.Symbol, pos.Side, pnl, reason, m.balance)
	return copyOf(pos), nil
}

// Restore re-admits a position loaded from the store after a restart.
func (m *Manager) Restore(pos types.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := pos
	m.positions[p.ID] = &p
}

// ActivePositions returns copies of every non-closed position.
func (m *Manager) ActivePositions() []types.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Position, 0, len(m.positions))
	for _, pos := range m.positions {
		out = append(out, *pos)
	}
	return out
}

// State snapshots the account record.
func (m *Manager) State() types.RiskState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return types.RiskState{
		AccountBalance:  m.balance,
		DailyPnL:        m.dailyPnL,
		OpenPositions:   len(m.positions),
		PeakBalance:     m.peak,
		CurrentDrawdown: m.drawdownLocked(),
	}
}

// Performance aggregates the closed-trade journal.
func (m *Manager) Performance() types.PerformanceSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := types.PerformanceSummary{
		TotalTrades:   len(m.closed),
		DailyPnL:      m.dailyPnL,
		Drawdown:      m.drawdownLocked(),
		OpenPositions: len(m.positions),
	}
	for _, tr := range m.closed {
		switch {
		case tr.RealizedPnL > 0:
			s.WinningTrades++
			s.TotalProfit = round2(s.TotalProfit + tr.RealizedPnL)
		case tr.RealizedPnL < 0:
			s.LosingTrades++
			s.TotalLoss = round2(s.TotalLoss - tr.RealizedPnL)
		}
	}
	s.NetProfit = round2(s.TotalProfit - s.TotalLoss)
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades)
	}
	if s.TotalLoss > 0 {
		s.ProfitFactor = s.TotalProfit / s.TotalLoss
	}
	return s
}

// ResetDaily zeroes the daily P&L at session rollover.
func (m *Manager) ResetDaily() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyPnL = 0
}

func (m *Manager) drawdownLocked() float64 {
	if m.peak <= 0 {
		return 0
	}
	return (m.peak - m.balance) / m.peak
}

func copyOf(pos *types.Position) *types.Position {
	cp := *pos
	return &cp
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
