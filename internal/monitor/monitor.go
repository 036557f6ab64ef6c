package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/mahekanna/gann-algomojo/internal/broker"
	"github.com/mahekanna/gann-algomojo/internal/config"
	"github.com/mahekanna/gann-algomojo/internal/executor"
	"github.com/mahekanna/gann-algomojo/internal/logger"
	"github.com/mahekanna/gann-algomojo/internal/market"
	"github.com/mahekanna/gann-algomojo/internal/risk"
	"github.com/mahekanna/gann-algomojo/internal/types"
)

// Monitor walks the open positions on a shared poll loop and forces an exit
// when the stop or target is crossed. Exits go through the retrying executor
// with the position flipped to Closing first, so one crossing produces
// exactly one exit order.
type Monitor struct {
	risk *risk.Manager
	exec *executor.Executor
	data market.DataProvider
	cfg  config.MonitorConfig

	// onClose, when set, receives every closed position (persistence hook)
	onClose func(types.Position)

	sleep func(ctx context.Context, d time.Duration) error
}

func New(r *risk.Manager, e *executor.Executor, d market.DataProvider, cfg config.MonitorConfig) *Monitor {
	return &Monitor{
		risk:  r,
		exec:  e,
		data:  d,
		cfg:   cfg,
		sleep: ctxSleep,
	}
}

// OnClose registers the closed-position hook. Not safe to call after Run.
func (m *Monitor) OnClose(fn func(types.Position)) {
	m.onClose = fn
}

// Run polls until the context is cancelled. A tick with errors backs off to
// the error interval; a clean tick restores the normal cadence.
func (m *Monitor) Run(ctx context.Context) error {
	normal := time.Duration(m.cfg.PollIntervalSeconds) * time.Second
	onError := time.Duration(m.cfg.ErrorIntervalSeconds) * time.Second
	for {
		interval := normal
		if err := m.tick(ctx); err != nil {
			logger.Warnf("Monitor tick failed: %v", err)
			interval = onError
		}
		if err := m.sleep(ctx, interval); err != nil {
			return nil
		}
	}
}

func (m *Monitor) tick(ctx context.Context) error {
	var firstErr error
	for _, pos := range m.risk.ActivePositions() {
		if pos.Status != types.PositionOpen {
			continue
		}
		price, err := m.data.GetCurrentPrice(ctx, pos.Symbol)
		if err != nil {
			logger.Warnf("Price fetch failed for %s: %v", pos.Symbol, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if reason, hit := exitReason(pos, price); hit {
			if err := m.exit(ctx, pos, price, reason); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// exitReason checks the stop and target for the position's side. The stop
// wins when both would trigger on the same tick.
func exitReason(pos types.Position, price float64) (string, bool) {
	if pos.Side == types.SideBuy {
		if price <= pos.StopLoss {
			return "stop_loss", true
		}
		if pos.Target > 0 && price >= pos.Target {
			return "target", true
		}
		return "", false
	}
	if price >= pos.StopLoss {
		return "stop_loss", true
	}
	if pos.Target > 0 && price <= pos.Target {
		return "target", true
	}
	return "", false
}

func (m *Monitor) exit(ctx context.Context, pos types.Position, price float64, reason string) error {
	marked, err := m.risk.MarkClosing(pos.ID)
	if err != nil {
		// already closing or gone; nothing to do
		return nil
	}

	symbol := marked.BrokerSymbol
	if symbol == "" {
		symbol = marked.Symbol
	}
	req := broker.OrderRequest{
		Symbol:    symbol,
		Exchange:  marked.Exchange,
		Product:   marked.Product,
		Side:      marked.Side.Opposite(),
		Quantity:  marked.Quantity,
		OrderType: broker.OrderMarket,
	}
	res, err := m.exec.Submit(ctx, req)
	if err != nil {
		m.risk.Reopen(pos.ID)
		logger.Alertf("Exit order for %s (%s) failed, will retry next tick: %v",
			pos.Symbol, reason, err)
		return err
	}

	status, err := m.exec.Monitor(ctx, res.OrderID, 0)
	if err != nil {
		if errors.Is(err, executor.ErrMonitorTimeout) {
			// unknown fill state: pull the order back before re-arming
			if cerr := m.exec.Cancel(ctx, res.OrderID); cerr != nil {
				logger.Alertf("Cancel of stuck exit order %s failed: %v", res.OrderID, cerr)
			}
		}
		m.risk.Reopen(pos.ID)
		logger.Alertf("Exit order %s for %s (%s) not confirmed: %v",
			res.OrderID, pos.Symbol, reason, err)
		return err
	}
	if status != broker.StatusFilled {
		m.risk.Reopen(pos.ID)
		logger.Alertf("Exit order %s for %s ended %s, position re-armed", res.OrderID, pos.Symbol, status)
		return nil
	}

	// books at the trigger price; the broker's actual exit fill is not read
	// back, so realized P&L ignores exit slippage
	closed, err := m.risk.ClosePosition(pos.ID, price, reason)
	if err != nil {
		return err
	}
	if m.onClose != nil {
		m.onClose(*closed)
	}
	return nil
}

// CloseAll force-exits every position, open or mid-close, with the given
// reason. Used on shutdown and by the force-close API.
func (m *Monitor) CloseAll(ctx context.Context, reason string) {
	for _, pos := range m.risk.ActivePositions() {
		if pos.Status == types.PositionClosing {
			m.risk.Reopen(pos.ID)
		}
		price, err := m.data.GetCurrentPrice(ctx, pos.Symbol)
		if err != nil {
			// exit at the last known reference rather than skipping
			logger.Warnf("Price fetch failed for %s during close-all, using entry: %v", pos.Symbol, err)
			price = pos.EntryPrice
		}
		if err := m.exit(ctx, pos, price, reason); err != nil {
			logger.Alertf("Close-all failed for %s: %v", pos.Symbol, err)
		}
	}
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		d = time.Second
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
