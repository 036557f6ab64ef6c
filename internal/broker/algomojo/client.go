package algomojo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mahekanna/gann-algomojo/internal/broker"
	"github.com/mahekanna/gann-algomojo/internal/config"
	"github.com/mahekanna/gann-algomojo/internal/logger"
	"github.com/mahekanna/gann-algomojo/internal/pkg/circuit"
)

const (
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
)

// Client talks to the AlgoMojo bridge REST API. Authentication rides on the
// x-api-key / x-api-secret headers; order endpoints are namespaced by the
// configured broker code.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	apiKey     string
	apiSecret  string
	brokerCode string
	breaker    *circuit.Breaker
}

func NewClient(cfg config.BrokerConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.APIURL)
	if raw == "" {
		return nil, fmt.Errorf("broker.api_url is required in live mode")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse broker.api_url failed: %w", err)
	}
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.APISecret) == "" {
		return nil, fmt.Errorf("broker.api_key and broker.api_secret are required in live mode")
	}
	if strings.TrimSpace(cfg.BrokerCode) == "" {
		return nil, fmt.Errorf("broker.broker_code is required in live mode")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     strings.TrimSpace(cfg.APIKey),
		apiSecret:  strings.TrimSpace(cfg.APISecret),
		brokerCode: strings.TrimSpace(cfg.BrokerCode),
		breaker:    circuit.NewBreaker("algomojo", breakerThreshold, breakerCooldown),
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

type orderPayload struct {
	TradingSymbol   string  `json:"trading_symbol"`
	Exchange        string  `json:"exchange"`
	TransactionType string  `json:"transaction_type"`
	Quantity        int     `json:"quantity"`
	OrderType       string  `json:"order_type"`
	Product         string  `json:"product"`
	Price           float64 `json:"price"`
	TriggerPrice    float64 `json:"trigger_price"`
}

func (c *Client) PlaceOrder(ctx context.Context, req broker.OrderRequest) (*broker.OrderResult, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("order quantity must be positive")
	}
	payload := orderPayload{
		TradingSymbol:   req.Symbol,
		Exchange:        req.Exchange,
		TransactionType: string(req.Side),
		Quantity:        req.Quantity,
		OrderType:       string(req.OrderType),
		Product:         req.Product,
		Price:           req.Price,
		TriggerPrice:    req.TriggerPrice,
	}
	body, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/%s/orders", c.brokerCode), payload)
	if err != nil {
		return nil, err
	}
	parsed := gjson.ParseBytes(body)
	orderID := parsed.Get("order_id").String()
	if orderID == "" {
		orderID = parsed.Get("data.order_id").String()
	}
	if orderID == "" {
		return nil, fmt.Errorf("order accepted but no order_id in response")
	}
	logger.Infof("Order placed: %s %s x%d id=%s", req.Side, req.Symbol, req.Quantity, orderID)
	return &broker.OrderResult{
		OrderID: orderID,
		Status:  broker.StatusPending,
		Message: parsed.Get("message").String(),
	}, nil
}

func (c *Client) OrderStatus(ctx context.Context, orderID string) (broker.OrderStatus, error) {
	if strings.TrimSpace(orderID) == "" {
		return "", fmt.Errorf("order id required")
	}
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/%s/orderbook/%s", c.brokerCode, orderID), nil)
	if err != nil {
		return "", err
	}
	parsed := gjson.ParseBytes(body)
	raw := parsed.Get("status").String()
	if raw == "" {
		raw = parsed.Get("data.status").String()
	}
	if raw == "" {
		return "", fmt.Errorf("%w: %s", broker.ErrOrderNotFound, orderID)
	}
	return normalizeStatus(raw), nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return fmt.Errorf("order id required")
	}
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/%s/orders/%s/cancel", c.brokerCode, orderID), nil)
	return err
}

// normalizeStatus folds the broker's free-form status strings onto ours.
func normalizeStatus(raw string) broker.OrderStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "COMPLETE", "COMPLETED", "FILLED", "EXECUTED":
		return broker.StatusFilled
	case "REJECTED":
		return broker.StatusRejected
	case "CANCELLED", "CANCELED":
		return broker.StatusCancelled
	case "OPEN", "TRIGGER PENDING":
		return broker.StatusOpen
	}
	return broker.StatusPending
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if !c.breaker.Allow() {
		return nil, fmt.Errorf("%w: algomojo circuit open", broker.ErrTransient)
	}
	endpoint := *c.baseURL
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + path

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request failed: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request failed: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("x-api-secret", c.apiSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("%w: %v", broker.ErrTransient, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	switch {
	case resp.StatusCode < 300:
		c.breaker.RecordSuccess()
		return data, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("%w: algomojo returned %s: %s",
			broker.ErrTransient, resp.Status, strings.TrimSpace(string(data)))
	default:
		// a 4xx still proves the bridge is reachable
		c.breaker.RecordSuccess()
		return nil, fmt.Errorf("algomojo returned %s: %s",
			resp.Status, strings.TrimSpace(string(data)))
	}
}
