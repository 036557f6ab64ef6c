package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mahekanna/gann-algomojo/internal/broker"
	"github.com/mahekanna/gann-algomojo/internal/config"
	"github.com/mahekanna/gann-algomojo/internal/executor"
	"github.com/mahekanna/gann-algomojo/internal/gann"
	"github.com/mahekanna/gann-algomojo/internal/logger"
	"github.com/mahekanna/gann-algomojo/internal/market"
	"github.com/mahekanna/gann-algomojo/internal/monitor"
	"github.com/mahekanna/gann-algomojo/internal/risk"
	"github.com/mahekanna/gann-algomojo/internal/symbol"
	"github.com/mahekanna/gann-algomojo/internal/types"
)

// Store is the persistence surface the bot needs; satisfied by the gorm
// store and by test fakes.
type Store interface {
	SavePosition(ctx context.Context, pos types.Position) error
	DeletePosition(ctx context.Context, id string) error
	LoadOpenPositions(ctx context.Context) ([]types.Position, error)
	SaveTrade(ctx context.Context, pos types.Position) error
}

// Bot drives one scan loop per watchlist symbol: previous close -> levels ->
// crossing -> instrument rule -> risk -> execution. Symbols fail
// independently; one bad feed never stalls the rest.
type Bot struct {
	cfg      *config.Config
	registry *symbol.Registry
	data     market.DataProvider
	riskMgr  *risk.Manager
	exec     *executor.Executor
	mon      *monitor.Monitor
	store    Store
	session  *market.Session
	params   gann.Params

	mu     sync.Mutex
	levels map[string]*gann.LevelSet
	traded map[string]float64 // trigger level already acted on, per symbol

	loopMu  sync.Mutex
	loopCtx context.Context
	loopWG  sync.WaitGroup
	loops   map[string]context.CancelFunc

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func New(cfg *config.Config, reg *symbol.Registry, data market.DataProvider,
	rm *risk.Manager, exec *executor.Executor, mon *monitor.Monitor, st Store) (*Bot, error) {

	session, err := market.NewSession(cfg.Market.SessionStart, cfg.Market.SessionEnd)
	if err != nil {
		return nil, err
	}
	b := &Bot{
		cfg:      cfg,
		registry: reg,
		data:     data,
		riskMgr:  rm,
		exec:     exec,
		mon:      mon,
		store:    st,
		session:  session,
		params: gann.Params{
			Increments:       cfg.Gann.Increments,
			NumValues:        cfg.Gann.NumValues,
			BufferPercentage: cfg.Gann.BufferPercentage,
			IncludeLower:     cfg.Gann.LowerHalf(),
			TargetCount:      cfg.Gann.TargetCount,
		},
		levels: make(map[string]*gann.LevelSet),
		traded: make(map[string]float64),
		loops:  make(map[string]context.CancelFunc),
		sleep:  ctxSleep,
		now:    time.Now,
	}
	mon.OnClose(b.persistClose)
	return b, nil
}

// Recover rebuilds risk state from persisted positions after a restart.
func (b *Bot) Recover(ctx context.Context) error {
	if b.store == nil {
		return nil
	}
	positions, err := b.store.LoadOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("recover positions: %w", err)
	}
	for _, pos := range positions {
		b.riskMgr.Restore(pos)
	}
	if len(positions) > 0 {
		logger.Infof("Recovered %d open positions from store", len(positions))
	}
	return nil
}

// Run starts the per-symbol scan loops, the position monitor and the daily
// reset, and keeps the loops in step with watchlist reloads. On cancellation
// every open position is force-closed before Run returns.
func (b *Bot) Run(ctx context.Context) error {
	snap := b.registry.Snapshot()
	if len(snap.Watchlist) == 0 {
		return fmt.Errorf("watchlist is empty")
	}

	g, gctx := errgroup.WithContext(ctx)
	b.loopMu.Lock()
	b.loopCtx = gctx
	b.loopMu.Unlock()

	b.applyWatchlist(snap)
	b.registry.OnChange(b.applyWatchlist)

	g.Go(func() error { return b.mon.Run(gctx) })
	g.Go(func() error {
		b.dailyResetLoop(gctx)
		return nil
	})

	err := g.Wait()
	b.loopWG.Wait()

	// scan loops are done; flatten the book with a fresh context
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	b.mon.CloseAll(shutdownCtx, "shutdown")
	return err
}

// applyWatchlist reconciles the running scan loops with a watchlist
// snapshot: new symbols gain a loop, removed symbols have theirs cancelled.
// Called at startup and again on every registry reload.
func (b *Bot) applyWatchlist(snap symbol.Snapshot) {
	b.loopMu.Lock()
	defer b.loopMu.Unlock()
	if b.loopCtx == nil || b.loopCtx.Err() != nil {
		return
	}
	keep := make(map[string]bool, len(snap.Watchlist))
	for _, ins := range snap.Watchlist {
		keep[ins.Symbol] = true
		if _, running := b.loops[ins.Symbol]; running {
			continue
		}
		loopCtx, cancel := context.WithCancel(b.loopCtx)
		b.loops[ins.Symbol] = cancel
		b.loopWG.Add(1)
		go func(ins symbol.Instrument) {
			defer b.loopWG.Done()
			b.scanLoop(loopCtx, ins)
		}(ins)
	}
	for sym, cancel := range b.loops {
		if !keep[sym] {
			logger.Infof("Symbol %s left the watchlist, stopping its scan loop", sym)
			cancel()
			delete(b.loops, sym)
		}
	}
}

func (b *Bot) scanLoop(ctx context.Context, ins symbol.Instrument) {
	normal := time.Duration(b.cfg.Market.ScanIntervalSeconds) * time.Second
	onError := time.Duration(b.cfg.Market.ErrorIntervalSeconds) * time.Second
	logger.Infof("Scan loop started for %s (%s)", ins.Symbol, ins.Class)
	for {
		// pick up lot size or strike interval edits without a restart
		if cur, ok := b.registry.Instrument(ins.Symbol); ok {
			ins = cur
		}
		interval := normal
		if !b.session.IsOpen(b.now()) {
			logger.Debugf("Market closed, skipping %s", ins.Symbol)
		} else if err := b.scanOnce(ctx, ins); err != nil {
			logger.Warnf("Scan failed for %s: %v", ins.Symbol, err)
			interval = onError
		}
		if err := b.sleep(ctx, interval); err != nil {
			return
		}
	}
}

// scanOnce runs a single detection pass for one symbol.
func (b *Bot) scanOnce(ctx context.Context, ins symbol.Instrument) error {
	timeframe := ins.Timeframe
	if timeframe == "" {
		timeframe = b.cfg.Market.Timeframe
	}
	prev, err := b.data.GetPreviousCandle(ctx, ins.Symbol, timeframe)
	if err != nil {
		return fmt.Errorf("previous candle: %w", err)
	}
	ls, err := b.levelsFor(ins.Symbol, prev.Close)
	if err != nil {
		return fmt.Errorf("levels: %w", err)
	}
	price, err := b.data.GetCurrentPrice(ctx, ins.Symbol)
	if err != nil {
		return fmt.Errorf("current price: %w", err)
	}

	crossing := gann.Detect(ls, price)
	if crossing == nil {
		return nil
	}
	if b.alreadyTraded(ins.Symbol, crossing.Level) {
		logger.Debugf("Crossing at %.2f for %s already traded, waiting for a new level",
			crossing.Level, ins.Symbol)
		return nil
	}
	logger.Infof("Signal: %s %s price=%.2f level=%.2f",
		ins.Symbol, crossing.Direction, price, crossing.Level)

	stopLong, stopShort := gann.StopLosses(crossing.BuyAbove, crossing.SellBelow, b.params.BufferPercentage)
	buys, sells := gann.Targets(ls, crossing.BuyAbove, crossing.SellBelow, price, b.params.TargetCount)

	sig := &types.Signal{
		Symbol:        ins.Symbol,
		Class:         ins.Class,
		ObservedPrice: price,
		TriggerLevel:  crossing.Level,
		BuyAbove:      crossing.BuyAbove,
		SellBelow:     crossing.SellBelow,
		CreatedAt:     b.now(),
	}
	if crossing.Direction == gann.BuyAbove {
		sig.Direction = types.DirectionBuyAbove
		sig.StopLoss = stopLong
		sig.Targets = targetPrices(buys)
	} else {
		sig.Direction = types.DirectionSellBelow
		sig.StopLoss = stopShort
		sig.Targets = targetPrices(sells)
	}
	// one crossing opens one position, not one per tick: the level stays
	// consumed until the anchor regenerates, whatever act decides
	b.markTraded(ins.Symbol, crossing.Level)
	return b.act(ctx, ins, sig, price)
}

// act applies the per-instrument trading rule:
//
//	equity buyAbove  -> long stock + long CE
//	equity sellBelow -> long PE only (no short selling)
//	index            -> options only (CE on buy, PE on sell)
//	commodity        -> the futures symbol, both directions
func (b *Bot) act(ctx context.Context, ins symbol.Instrument, sig *types.Signal, price float64) error {
	switch ins.Class {
	case types.ClassEquity:
		if sig.Direction == types.DirectionBuyAbove {
			if err := b.tradeDirect(ctx, ins, sig, price); err != nil {
				return err
			}
			return b.tradeOption(ctx, ins, sig, price, symbol.OptionCall)
		}
		return b.tradeOption(ctx, ins, sig, price, symbol.OptionPut)
	case types.ClassIndex:
		typ := symbol.OptionCall
		if sig.Direction == types.DirectionSellBelow {
			typ = symbol.OptionPut
		}
		return b.tradeOption(ctx, ins, sig, price, typ)
	case types.ClassCommodity:
		return b.tradeDirect(ctx, ins, sig, price)
	}
	return fmt.Errorf("unknown instrument class %q", ins.Class)
}

// tradeDirect risk-sizes and executes an order in the underlying itself
// (equity long or commodity future).
func (b *Bot) tradeDirect(ctx context.Context, ins symbol.Instrument, sig *types.Signal, price float64) error {
	pos, rej := b.riskMgr.Evaluate(sig, price, sig.StopLoss)
	if rej != nil {
		logger.Infof("Signal for %s rejected: %s", sig.Symbol, rej)
		return nil
	}
	brokerSym, err := b.registry.Convert(ins.Symbol, symbol.SchemeTV, symbol.SchemeAlgomojo)
	if err != nil {
		b.riskMgr.Release(pos.ID)
		return fmt.Errorf("map symbol: %w", err)
	}
	exchange := ins.Exchange
	if exchange == "" {
		exchange = b.cfg.Broker.DefaultExchange
	}
	if ins.Class == types.ClassCommodity {
		exchange = "MCX"
	}
	side := types.SideBuy
	if sig.Direction == types.DirectionSellBelow {
		side = types.SideSell
	}
	return b.execute(ctx, pos.ID, broker.OrderRequest{
		Symbol:    brokerSym,
		Exchange:  exchange,
		Product:   b.cfg.Broker.DefaultProduct,
		Side:      side,
		Quantity:  pos.Quantity,
		OrderType: broker.OrderMarket,
	}, price)
}

// tradeOption buys the ATM contract for the signal. Both directions are
// long option positions; the lot size is the exchange contract lot.
func (b *Bot) tradeOption(ctx context.Context, ins symbol.Instrument, sig *types.Signal, price float64, typ symbol.OptionType) error {
	lot := ins.LotSize
	if lot <= 0 {
		lot = 1
	}
	optSig := *sig
	optSig.Direction = types.DirectionBuyAbove // option legs are always long
	pos, rej := b.riskMgr.EvaluateLot(&optSig, price, sig.StopLoss, lot)
	if rej != nil {
		logger.Infof("Option leg for %s rejected: %s", sig.Symbol, rej)
		return nil
	}

	interval := ins.StrikeInterval
	if interval <= 0 {
		interval = symbol.DefaultStrikeInterval(ins.Symbol, price)
	}
	strike := symbol.ATMStrike(price, interval, typ == symbol.OptionPut)
	expiry := symbol.ExpiryDate(ins.Class, b.now())
	contract := symbol.ContractSymbol(ins.Symbol, expiry, strike, typ)

	return b.execute(ctx, pos.ID, broker.OrderRequest{
		Symbol:    contract,
		Exchange:  "NFO",
		Product:   "NRML",
		Side:      types.SideBuy,
		Quantity:  lot,
		OrderType: broker.OrderMarket,
	}, price)
}

// execute submits, waits for the fill and registers or releases the
// reservation.
func (b *Bot) execute(ctx context.Context, posID string, req broker.OrderRequest, price float64) error {
	res, err := b.exec.Submit(ctx, req)
	if err != nil {
		b.riskMgr.Release(posID)
		return fmt.Errorf("submit %s: %w", req.Symbol, err)
	}
	status, err := b.exec.Monitor(ctx, res.OrderID, 0)
	if err != nil {
		b.riskMgr.Release(posID)
		logger.Alertf("Entry order %s for %s unconfirmed, reservation released: %v",
			res.OrderID, req.Symbol, err)
		return err
	}
	if status != broker.StatusFilled {
		b.riskMgr.Release(posID)
		logger.Warnf("Entry order %s for %s ended %s", res.OrderID, req.Symbol, status)
		return nil
	}
	if err := b.riskMgr.Register(posID, risk.Fill{
		OrderID:      res.OrderID,
		Price:        price,
		BrokerSymbol: req.Symbol,
		Exchange:     req.Exchange,
		Product:      req.Product,
	}); err != nil {
		return err
	}
	b.persistActive(ctx, posID)
	return nil
}

// levelsFor returns the cached level set for the symbol, regenerating when
// the anchor (previous close) moved.
func (b *Bot) levelsFor(sym string, anchor float64) (*gann.LevelSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ls, ok := b.levels[sym]; ok && ls.Anchor == anchor {
		return ls, nil
	}
	ls, err := gann.ComputeLevels(anchor, b.params)
	if err != nil {
		return nil, err
	}
	b.levels[sym] = ls
	delete(b.traded, sym) // fresh anchor, fresh crossings
	logger.Infof("Levels regenerated for %s at anchor %.2f", sym, anchor)
	return ls, nil
}

// alreadyTraded reports whether this trigger level was consumed since the
// last anchor change.
func (b *Bot) alreadyTraded(sym string, level float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.traded[sym] == level
}

func (b *Bot) markTraded(sym string, level float64) {
	b.mu.Lock()
	b.traded[sym] = level
	b.mu.Unlock()
}

func (b *Bot) persistActive(ctx context.Context, posID string) {
	if b.store == nil {
		return
	}
	for _, pos := range b.riskMgr.ActivePositions() {
		if pos.ID == posID {
			if err := b.store.SavePosition(ctx, pos); err != nil {
				logger.Errorf("Persist position %s failed: %v", posID, err)
			}
			return
		}
	}
}

func (b *Bot) persistClose(pos types.Position) {
	if b.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.store.DeletePosition(ctx, pos.ID); err != nil {
		logger.Errorf("Delete position %s failed: %v", pos.ID, err)
	}
	if err := b.store.SaveTrade(ctx, pos); err != nil {
		logger.Errorf("Journal trade %s failed: %v", pos.ID, err)
	}
}

// dailyResetLoop zeroes the daily P&L when the calendar day rolls over.
func (b *Bot) dailyResetLoop(ctx context.Context) {
	last := b.now().Day()
	for {
		if err := b.sleep(ctx, time.Minute); err != nil {
			return
		}
		if day := b.now().Day(); day != last {
			last = day
			b.riskMgr.ResetDaily()
			logger.Infof("Daily P&L reset")
		}
	}
}

func targetPrices(targets []gann.Target) []float64 {
	out := make([]float64, 0, len(targets))
	for _, t := range targets {
		out = append(out, t.Price)
	}
	return out
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
