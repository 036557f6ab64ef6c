package apihttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mahekanna/gann-algomojo/internal/gann"
	"github.com/mahekanna/gann-algomojo/internal/logger"
	"github.com/mahekanna/gann-algomojo/internal/symbol"
	"github.com/mahekanna/gann-algomojo/internal/types"
)

// RiskView is the read side of the risk manager.
type RiskView interface {
	ActivePositions() []types.Position
	State() types.RiskState
	Performance() types.PerformanceSummary
}

// PositionCloser force-flattens the book, implemented by the position monitor.
type PositionCloser interface {
	CloseAll(ctx context.Context, reason string)
}

// TradeLister reads the closed-trade journal. Optional; nil disables /api/trades.
type TradeLister interface {
	ListTrades(ctx context.Context, limit int) ([]types.Position, error)
}

// Server exposes the read-only trading state plus the manual close-all switch.
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig describes the server dependencies.
type ServerConfig struct {
	Addr     string
	Risk     RiskView
	Closer   PositionCloser
	Trades   TradeLister
	Registry *symbol.Registry
	Gann     gann.Params
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Risk == nil {
		return nil, errors.New("api http server requires risk view")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9881"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	h := &handlers{cfg: cfg}
	api.GET("/positions", h.positions)
	api.GET("/state", h.state)
	api.GET("/performance", h.performance)
	api.GET("/levels", h.levels)
	if cfg.Trades != nil {
		api.GET("/trades", h.trades)
	}
	if cfg.Registry != nil {
		api.GET("/watchlist", h.watchlist)
	}
	if cfg.Closer != nil {
		api.POST("/close-all", h.closeAll)
	}

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

type handlers struct {
	cfg ServerConfig
}

func (h *handlers) positions(c *gin.Context) {
	positions := h.cfg.Risk.ActivePositions()
	c.JSON(http.StatusOK, gin.H{
		"count":     len(positions),
		"positions": positions,
	})
}

func (h *handlers) state(c *gin.Context) {
	c.JSON(http.StatusOK, h.cfg.Risk.State())
}

func (h *handlers) performance(c *gin.Context) {
	c.JSON(http.StatusOK, h.cfg.Risk.Performance())
}

// levels computes the Square-of-9 grid for an arbitrary price, for manual
// inspection of where the trade levels sit.
func (h *handlers) levels(c *gin.Context) {
	price, err := strconv.ParseFloat(strings.TrimSpace(c.Query("price")), 64)
	if err != nil || price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must be a positive number"})
		return
	}
	ls, err := gann.ComputeLevels(price, h.cfg.Gann)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	buyAbove, sellBelow, ok := gann.TradeLevels(ls, price)
	resp := gin.H{
		"anchor": ls.Anchor,
		"levels": ls.Levels,
	}
	if ok {
		resp["buy_above"] = buyAbove
		resp["sell_below"] = sellBelow
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) trades(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	trades, err := h.cfg.Trades.ListTrades(ctx, limit)
	if err != nil {
		logger.Errorf("[api] list trades failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (h *handlers) watchlist(c *gin.Context) {
	snap := h.cfg.Registry.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"version":   snap.Version,
		"loaded_at": snap.LoadedAt,
		"watchlist": snap.Watchlist,
	})
}

type closeAllRequest struct {
	Reason string `json:"reason"`
}

func (h *handlers) closeAll(c *gin.Context) {
	var req closeAllRequest
	_ = c.ShouldBindJSON(&req)
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "manual"
	}
	logger.Infof("[api] close-all requested ip=%s reason=%s", c.ClientIP(), reason)
	h.cfg.Closer.CloseAll(c.Request.Context(), reason)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "reason": reason})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}
