package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mahekanna/gann-algomojo/internal/config"
)

// HTTPProvider pulls quotes and bars from a REST data feed. Endpoints follow
// the common quote-bridge layout:
//
//	GET {base}/quote?symbol=S            -> {"ltp": 1234.5}
//	GET {base}/history?symbol=S&tf=1d&limit=N -> {"candles":[{...}, ...]}
//
// Responses are parsed loosely with gjson because bridge deployments differ
// in envelope shape.
type HTTPProvider struct {
	baseURL    *url.URL
	httpClient *http.Client
}

func NewHTTPProvider(cfg config.MarketConfig) (*HTTPProvider, error) {
	raw := strings.TrimSpace(cfg.DataURL)
	if raw == "" {
		return nil, fmt.Errorf("market.data_url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse market.data_url failed: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (p *HTTPProvider) SetHTTPClient(client *http.Client) {
	p.httpClient = client
}

func (p *HTTPProvider) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	body, err := p.get(ctx, "/quote", url.Values{"symbol": {symbol}})
	if err != nil {
		return 0, err
	}
	parsed := gjson.ParseBytes(body)
	for _, key := range []string{"ltp", "last_price", "price", "data.ltp"} {
		if v := parsed.Get(key); v.Exists() {
			return v.Float(), nil
		}
	}
	return 0, fmt.Errorf("quote response for %s has no price field", symbol)
}

func (p *HTTPProvider) GetPreviousCandle(ctx context.Context, symbol, timeframe string) (*Candle, error) {
	candles, err := p.GetHistoricalData(ctx, symbol, timeframe, 2)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no history for %s %s", symbol, timeframe)
	}
	// the feed returns newest-last; the last fully closed bar is the one
	// before the running bar when two are present
	if len(candles) >= 2 {
		return &candles[len(candles)-2], nil
	}
	return &candles[0], nil
}

func (p *HTTPProvider) GetHistoricalData(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	if limit <= 0 {
		limit = 1
	}
	body, err := p.get(ctx, "/history", url.Values{
		"symbol": {symbol},
		"tf":     {timeframe},
		"limit":  {fmt.Sprintf("%d", limit)},
	})
	if err != nil {
		return nil, err
	}
	parsed := gjson.ParseBytes(body)
	rows := parsed.Get("candles")
	if !rows.Exists() {
		rows = parsed.Get("data")
	}
	if !rows.Exists() && parsed.IsArray() {
		rows = parsed
	}
	if !rows.IsArray() {
		return nil, fmt.Errorf("history response for %s has no candle array", symbol)
	}
	out := make([]Candle, 0, limit)
	rows.ForEach(func(_, row gjson.Result) bool {
		out = append(out, Candle{
			Time:   time.Unix(row.Get("time").Int(), 0),
			Open:   row.Get("open").Float(),
			High:   row.Get("high").Float(),
			Low:    row.Get("low").Float(),
			Close:  row.Get("close").Float(),
			Volume: row.Get("volume").Float(),
		})
		return true
	})
	return out, nil
}

func (p *HTTPProvider) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := *p.baseURL
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + path
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build data request failed: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("data feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("data feed returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}
