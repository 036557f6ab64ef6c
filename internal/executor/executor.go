package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mahekanna/gann-algomojo/internal/broker"
	"github.com/mahekanna/gann-algomojo/internal/config"
	"github.com/mahekanna/gann-algomojo/internal/logger"
)

// ErrMonitorTimeout means the order did not reach a terminal state within the
// monitoring window. The order is NOT cancelled; the caller decides.
var ErrMonitorTimeout = errors.New("order monitor timed out")

// SubmissionError carries the final failure after retries are exhausted.
type SubmissionError struct {
	Attempts int
	LastErr  error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("order submission failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *SubmissionError) Unwrap() error { return e.LastErr }

const defaultPollInterval = 2 * time.Second

// Executor submits orders with retry on transient failures and polls fills.
// Fatal broker errors (bad symbol, margin, rejection) are returned on the
// first attempt; only errors wrapped with broker.ErrTransient are retried.
type Executor struct {
	broker       broker.Broker
	cfg          config.RetryConfig
	pollInterval time.Duration

	// injected for tests
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func New(b broker.Broker, cfg config.RetryConfig) *Executor {
	return &Executor{
		broker:       b,
		cfg:          cfg,
		pollInterval: defaultPollInterval,
		sleep:        ctxSleep,
		now:          time.Now,
	}
}

// Submit places the order, sleeping delay*factor^(attempt-1) between
// transient failures. With maxAttempts=3, delay=1s, factor=2 the attempts
// land at t=0, t=1, t=3.
func (e *Executor) Submit(ctx context.Context, req broker.OrderRequest) (*broker.OrderResult, error) {
	maxAttempts := e.cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := e.broker.PlaceOrder(ctx, req)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, broker.ErrTransient) {
			return nil, fmt.Errorf("order submission failed: %w", err)
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		delay := e.backoff(attempt)
		logger.Warnf("Order submit attempt %d/%d failed (%v), retrying in %s",
			attempt, maxAttempts, err, delay)
		if serr := e.sleep(ctx, delay); serr != nil {
			return nil, serr
		}
	}
	return nil, &SubmissionError{Attempts: maxAttempts, LastErr: lastErr}
}

// Monitor polls the order until it reaches a terminal state or the window
// elapses. On timeout the last observed status is returned alongside
// ErrMonitorTimeout.
func (e *Executor) Monitor(ctx context.Context, orderID string, timeout time.Duration) (broker.OrderStatus, error) {
	if timeout <= 0 {
		timeout = time.Duration(e.cfg.MonitorSeconds) * time.Second
	}
	deadline := e.now().Add(timeout)
	last := broker.StatusPending
	for {
		status, err := e.broker.OrderStatus(ctx, orderID)
		switch {
		case err == nil:
			last = status
			if status.Terminal() {
				return status, nil
			}
		case errors.Is(err, broker.ErrTransient):
			logger.Warnf("Order %s status poll failed: %v", orderID, err)
		default:
			return last, err
		}
		if !e.now().Before(deadline) {
			return last, fmt.Errorf("%w: order %s still %s after %s",
				ErrMonitorTimeout, orderID, last, timeout)
		}
		if serr := e.sleep(ctx, e.pollInterval); serr != nil {
			return last, serr
		}
	}
}

// Cancel pulls an order. Used when an exit fill could not be confirmed.
func (e *Executor) Cancel(ctx context.Context, orderID string) error {
	return e.broker.CancelOrder(ctx, orderID)
}

func (e *Executor) backoff(attempt int) time.Duration {
	factor := e.cfg.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	secs := e.cfg.DelaySeconds * math.Pow(factor, float64(attempt-1))
	return time.Duration(secs * float64(time.Second))
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
