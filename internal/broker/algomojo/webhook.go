package algomojo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mahekanna/gann-algomojo/internal/broker"
	"github.com/mahekanna/gann-algomojo/internal/config"
	"github.com/mahekanna/gann-algomojo/internal/logger"
)

const placeStrategyOrderPath = "PlaceStrategyOrder"

// WebhookClient is the paper-mode execution path: orders go to the AlgoMojo
// strategy webhook and fills are simulated locally. Order state lives only in
// memory; a restart forgets paper orders.
type WebhookClient struct {
	webhookURL string
	strategy   string
	httpClient *http.Client

	mu     sync.Mutex
	orders map[string]broker.OrderStatus
}

func NewWebhookClient(cfg config.BrokerConfig) (*WebhookClient, error) {
	raw := strings.TrimSpace(cfg.WebhookURL)
	if raw == "" {
		return nil, fmt.Errorf("broker.webhook_url is required in paper mode")
	}
	if !strings.Contains(raw, placeStrategyOrderPath) {
		raw = strings.TrimRight(raw, "/") + "/" + placeStrategyOrderPath
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WebhookClient{
		webhookURL: raw,
		strategy:   strings.TrimSpace(cfg.Strategy),
		httpClient: &http.Client{Timeout: timeout},
		orders:     make(map[string]broker.OrderStatus),
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *WebhookClient) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func (c *WebhookClient) PlaceOrder(ctx context.Context, req broker.OrderRequest) (*broker.OrderResult, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("order quantity must be positive")
	}
	payload := map[string]any{
		"date":       time.Now().Format("2006-01-02 15:04:05"),
		"action":     string(req.Side),
		"symbol":     req.Symbol,
		"quantity":   req.Quantity,
		"price_type": string(req.OrderType),
	}
	// AlgoMojo routes webhook orders by the strategy they belong to
	if c.strategy != "" {
		payload["strategy"] = c.strategy
	}
	if req.OrderType == broker.OrderLimit && req.Price > 0 {
		payload["price"] = req.Price
	}
	if req.Product != "" {
		payload["product"] = req.Product
	}
	if req.Exchange != "" {
		payload["exchange"] = req.Exchange
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal webhook payload failed: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("build webhook request failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", broker.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: webhook returned %s: %s",
				broker.ErrTransient, resp.Status, strings.TrimSpace(string(data)))
		}
		return nil, fmt.Errorf("webhook returned %s: %s",
			resp.Status, strings.TrimSpace(string(data)))
	}

	// paper fills are immediate; there is no exchange to wait on
	orderID := "PAPER-" + uuid.NewString()
	c.mu.Lock()
	c.orders[orderID] = broker.StatusFilled
	c.mu.Unlock()

	logger.Infof("Paper order placed: %s %s x%d id=%s", req.Side, req.Symbol, req.Quantity, orderID)
	return &broker.OrderResult{OrderID: orderID, Status: broker.StatusFilled}, nil
}

func (c *WebhookClient) OrderStatus(_ context.Context, orderID string) (broker.OrderStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status, ok := c.orders[orderID]
	if !ok {
		return "", fmt.Errorf("%w: %s", broker.ErrOrderNotFound, orderID)
	}
	return status, nil
}

func (c *WebhookClient) CancelOrder(_ context.Context, orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	status, ok := c.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", broker.ErrOrderNotFound, orderID)
	}
	if !status.Terminal() {
		c.orders[orderID] = broker.StatusCancelled
	}
	return nil
}
