package algomojo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahekanna/gann-algomojo/internal/broker"
	"github.com/mahekanna/gann-algomojo/internal/config"
	"github.com/mahekanna/gann-algomojo/internal/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(config.BrokerConfig{
		APIURL:         srv.URL,
		APIKey:         "key",
		APISecret:      "secret",
		BrokerCode:     "ab",
		TimeoutSeconds: 2,
	})
	require.NoError(t, err)
	return c
}

func marketBuy(qty int) broker.OrderRequest {
	return broker.OrderRequest{
		Symbol:    "RELIANCE-EQ",
		Exchange:  "NSE",
		Product:   "MIS",
		Side:      types.SideBuy,
		Quantity:  qty,
		OrderType: broker.OrderMarket,
	}
}

func TestClient_PlaceOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ab/orders", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, "secret", r.Header.Get("x-api-secret"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "RELIANCE-EQ", payload["trading_symbol"])
		assert.Equal(t, "BUY", payload["transaction_type"])
		assert.Equal(t, float64(10), payload["quantity"])
		assert.Equal(t, "MARKET", payload["order_type"])

		fmt.Fprint(w, `{"status":"success","order_id":"240828000123","message":"Order placed"}`)
	})

	res, err := c.PlaceOrder(context.Background(), marketBuy(10))
	require.NoError(t, err)
	assert.Equal(t, "240828000123", res.OrderID)
	assert.Equal(t, broker.StatusPending, res.Status)
}

func TestClient_PlaceOrder_Errors(t *testing.T) {
	t.Run("server error is transient", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gateway busy", http.StatusBadGateway)
		})
		_, err := c.PlaceOrder(context.Background(), marketBuy(10))
		assert.ErrorIs(t, err, broker.ErrTransient)
	})

	t.Run("client error is fatal", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid symbol", http.StatusBadRequest)
		})
		_, err := c.PlaceOrder(context.Background(), marketBuy(10))
		require.Error(t, err)
		assert.NotErrorIs(t, err, broker.ErrTransient)
	})

	t.Run("missing order id", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"success"}`)
		})
		_, err := c.PlaceOrder(context.Background(), marketBuy(10))
		assert.Error(t, err)
	})

	t.Run("zero quantity rejected locally", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected")
		})
		_, err := c.PlaceOrder(context.Background(), marketBuy(0))
		assert.Error(t, err)
	})
}

func TestClient_OrderStatus(t *testing.T) {
	statuses := map[string]broker.OrderStatus{
		"complete":        broker.StatusFilled,
		"REJECTED":        broker.StatusRejected,
		"cancelled":       broker.StatusCancelled,
		"open":            broker.StatusOpen,
		"trigger pending": broker.StatusOpen,
		"validation":      broker.StatusPending,
	}
	for raw, want := range statuses {
		t.Run(raw, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/ab/orderbook/ORD1", r.URL.Path)
				fmt.Fprintf(w, `{"data":{"status":%q}}`, raw)
			})
			got, err := c.OrderStatus(context.Background(), "ORD1")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	t.Run("unknown order", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{}`)
		})
		_, err := c.OrderStatus(context.Background(), "NOPE")
		assert.ErrorIs(t, err, broker.ErrOrderNotFound)
	})
}

func TestClient_CancelOrder(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"status":"success"}`)
	})
	require.NoError(t, c.CancelOrder(context.Background(), "ORD1"))
	assert.Equal(t, "/ab/orders/ORD1/cancel", gotPath)
}

func TestClient_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var hits int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "gateway busy", http.StatusBadGateway)
	})

	for i := 0; i < breakerThreshold; i++ {
		_, err := c.PlaceOrder(context.Background(), marketBuy(10))
		assert.ErrorIs(t, err, broker.ErrTransient)
	}
	assert.Equal(t, breakerThreshold, hits)

	// breaker is open: rejected locally, still transient, no request sent
	_, err := c.PlaceOrder(context.Background(), marketBuy(10))
	assert.ErrorIs(t, err, broker.ErrTransient)
	assert.Equal(t, breakerThreshold, hits)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(config.BrokerConfig{})
	assert.Error(t, err)

	_, err = NewClient(config.BrokerConfig{APIURL: "http://x", APIKey: "k", APISecret: "s"})
	assert.Error(t, err) // broker code missing
}
