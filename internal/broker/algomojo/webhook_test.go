package algomojo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahekanna/gann-algomojo/internal/broker"
	"github.com/mahekanna/gann-algomojo/internal/config"
)

func newTestWebhook(t *testing.T, handler http.HandlerFunc) *WebhookClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewWebhookClient(config.BrokerConfig{
		WebhookURL:     srv.URL,
		Strategy:       "Gann Square of 9",
		TimeoutSeconds: 2,
	})
	require.NoError(t, err)
	return c
}

func TestWebhookClient_PlaceOrder(t *testing.T) {
	var payload map[string]any
	c := newTestWebhook(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/PlaceStrategyOrder"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		fmt.Fprint(w, `{"status":"success"}`)
	})

	res, err := c.PlaceOrder(context.Background(), marketBuy(5))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.OrderID, "PAPER-"))
	assert.Equal(t, broker.StatusFilled, res.Status)

	assert.Equal(t, "BUY", payload["action"])
	assert.Equal(t, "RELIANCE-EQ", payload["symbol"])
	assert.Equal(t, float64(5), payload["quantity"])
	assert.Equal(t, "MARKET", payload["price_type"])
	assert.Equal(t, "Gann Square of 9", payload["strategy"])
	assert.NotEmpty(t, payload["date"])

	// simulated execution: paper fills are queryable immediately
	status, err := c.OrderStatus(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, broker.StatusFilled, status)
}

func TestWebhookClient_PlaceOrder_Errors(t *testing.T) {
	t.Run("server error is transient", func(t *testing.T) {
		c := newTestWebhook(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "busy", http.StatusServiceUnavailable)
		})
		_, err := c.PlaceOrder(context.Background(), marketBuy(5))
		assert.ErrorIs(t, err, broker.ErrTransient)
	})

	t.Run("bad request is fatal", func(t *testing.T) {
		c := newTestWebhook(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad strategy", http.StatusBadRequest)
		})
		_, err := c.PlaceOrder(context.Background(), marketBuy(5))
		require.Error(t, err)
		assert.NotErrorIs(t, err, broker.ErrTransient)
	})
}

func TestWebhookClient_UnknownOrder(t *testing.T) {
	c := newTestWebhook(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success"}`)
	})
	_, err := c.OrderStatus(context.Background(), "MISSING")
	assert.ErrorIs(t, err, broker.ErrOrderNotFound)
	assert.ErrorIs(t, c.CancelOrder(context.Background(), "MISSING"), broker.ErrOrderNotFound)
}

func TestNewWebhookClient_AppendsPath(t *testing.T) {
	c, err := NewWebhookClient(config.BrokerConfig{WebhookURL: "http://amapi.example.com/hook/"})
	require.NoError(t, err)
	assert.Equal(t, "http://amapi.example.com/hook/PlaceStrategyOrder", c.webhookURL)

	_, err = NewWebhookClient(config.BrokerConfig{})
	assert.Error(t, err)
}
