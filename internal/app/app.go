package app

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mahekanna/gann-algomojo/internal/bot"
	"github.com/mahekanna/gann-algomojo/internal/broker"
	"github.com/mahekanna/gann-algomojo/internal/broker/algomojo"
	"github.com/mahekanna/gann-algomojo/internal/config"
	"github.com/mahekanna/gann-algomojo/internal/executor"
	"github.com/mahekanna/gann-algomojo/internal/gann"
	"github.com/mahekanna/gann-algomojo/internal/logger"
	"github.com/mahekanna/gann-algomojo/internal/market"
	"github.com/mahekanna/gann-algomojo/internal/monitor"
	"github.com/mahekanna/gann-algomojo/internal/risk"
	"github.com/mahekanna/gann-algomojo/internal/store/gormstore"
	"github.com/mahekanna/gann-algomojo/internal/symbol"
	apihttp "github.com/mahekanna/gann-algomojo/internal/transport/http/api"
)

// App wires the trading pipeline: registry, data feed, broker, risk,
// execution, monitoring and the HTTP surface.
type App struct {
	cfg   *config.Config
	bot   *bot.Bot
	api   *apihttp.Server
	store *gormstore.GormStore
}

func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	registry, err := symbol.NewRegistry(cfg.Symbols.Path)
	if err != nil {
		return nil, fmt.Errorf("symbol registry: %w", err)
	}
	data, err := market.NewHTTPProvider(cfg.Market)
	if err != nil {
		return nil, fmt.Errorf("market provider: %w", err)
	}
	brk, err := buildBroker(cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("broker: %w", err)
	}

	riskMgr := risk.NewManager(cfg.Risk)
	exec := executor.New(brk, cfg.Retry)
	mon := monitor.New(riskMgr, exec, data, cfg.Monitor)

	var (
		gs *gormstore.GormStore
		st bot.Store
	)
	if strings.TrimSpace(cfg.App.StorePath) != "" {
		gs, err = gormstore.New(cfg.App.StorePath)
		if err != nil {
			return nil, fmt.Errorf("position store: %w", err)
		}
		st = gs
	}

	tradingBot, err := bot.New(cfg, registry, data, riskMgr, exec, mon, st)
	if err != nil {
		return nil, fmt.Errorf("bot: %w", err)
	}

	apiCfg := apihttp.ServerConfig{
		Addr:     cfg.App.HTTPAddr,
		Risk:     riskMgr,
		Closer:   mon,
		Registry: registry,
		Gann: gann.Params{
			Increments:       cfg.Gann.Increments,
			NumValues:        cfg.Gann.NumValues,
			BufferPercentage: cfg.Gann.BufferPercentage,
			IncludeLower:     cfg.Gann.LowerHalf(),
			TargetCount:      cfg.Gann.TargetCount,
		},
	}
	if gs != nil {
		apiCfg.Trades = gs
	}
	api, err := apihttp.NewServer(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("http server: %w", err)
	}

	logger.Infof("App initialized: mode=%s watchlist=%d http=%s",
		cfg.Broker.Mode, len(registry.Snapshot().Watchlist), api.Addr())
	return &App{cfg: cfg, bot: tradingBot, api: api, store: gs}, nil
}

func buildBroker(cfg config.BrokerConfig) (broker.Broker, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "paper":
		return algomojo.NewWebhookClient(cfg)
	case "live":
		return algomojo.NewClient(cfg)
	}
	return nil, fmt.Errorf("broker.mode must be paper or live, got %q", cfg.Mode)
}

// Run recovers persisted positions and drives the bot and HTTP server until
// ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()

	if err := a.bot.Recover(ctx); err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.api.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return a.bot.Run(ctx)
	})
	return group.Wait()
}

func (a *App) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnf("Closing position store failed: %v", err)
		}
	}
}
