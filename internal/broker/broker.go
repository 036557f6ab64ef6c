package broker

import (
	"context"
	"errors"

	"github.com/mahekanna/gann-algomojo/internal/types"
)

// ErrTransient wraps failures worth retrying: network errors, timeouts,
// throttling, 5xx responses. Anything not wrapped with it is treated as
// final by the executor.
var ErrTransient = errors.New("transient broker error")

// ErrOrderNotFound is returned by OrderStatus for unknown order IDs.
var ErrOrderNotFound = errors.New("order not found")

type OrderType string

const (
	OrderMarket     OrderType = "MARKET"
	OrderLimit      OrderType = "LIMIT"
	OrderStop       OrderType = "SL"
	OrderStopMarket OrderType = "SL-M"
)

// OrderStatus uses the broker's own vocabulary.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusOpen      OrderStatus = "OPEN"
	StatusFilled    OrderStatus = "COMPLETE"
	StatusRejected  OrderStatus = "REJECTED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// Terminal reports whether the status can no longer change.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// OrderRequest is one order in broker vocabulary; Symbol must already be in
// the broker's scheme.
type OrderRequest struct {
	Symbol       string     `json:"symbol"`
	Exchange     string     `json:"exchange"`
	Product      string     `json:"product"`
	Side         types.Side `json:"side"`
	Quantity     int        `json:"quantity"`
	OrderType    OrderType  `json:"order_type"`
	Price        float64    `json:"price,omitempty"`
	TriggerPrice float64    `json:"trigger_price,omitempty"`
}

type OrderResult struct {
	OrderID string      `json:"order_id"`
	Status  OrderStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

// Broker abstracts the execution venue. The paper webhook client and the
// live REST client both satisfy it; everything above this interface is
// mode-agnostic.
type Broker interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	OrderStatus(ctx context.Context, orderID string) (OrderStatus, error)
	CancelOrder(ctx context.Context, orderID string) error
}
