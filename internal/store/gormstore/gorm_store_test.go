package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahekanna/gann-algomojo/internal/types"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "positions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func samplePosition(id string) types.Position {
	return types.Position{
		ID:           id,
		OrderID:      "ORD1",
		Symbol:       "RELIANCE",
		BrokerSymbol: "RELIANCE-EQ",
		Exchange:     "NSE",
		Product:      "MIS",
		Class:        types.ClassEquity,
		Side:         types.SideBuy,
		Quantity:     374,
		EntryPrice:   100,
		StopLoss:     97.33,
		Target:       105.06,
		Status:       types.PositionOpen,
		RiskAmount:   998.58,
		EntryTime:    time.Now().Truncate(time.Second),
	}
}

func TestSaveAndLoadOpenPositions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pos := samplePosition("p1")
	require.NoError(t, s.SavePosition(ctx, pos))

	loaded, err := s.LoadOpenPositions(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, pos.ID, loaded[0].ID)
	assert.Equal(t, pos.Quantity, loaded[0].Quantity)
	assert.Equal(t, pos.StopLoss, loaded[0].StopLoss)
	assert.Equal(t, types.PositionOpen, loaded[0].Status)
}

func TestSavePosition_UpsertsByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pos := samplePosition("p1")
	require.NoError(t, s.SavePosition(ctx, pos))

	pos.Status = types.PositionClosing
	pos.OrderID = "ORD2"
	require.NoError(t, s.SavePosition(ctx, pos))

	loaded, err := s.LoadOpenPositions(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, types.PositionClosing, loaded[0].Status)
	assert.Equal(t, "ORD2", loaded[0].OrderID)
}

func TestDeletePosition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePosition(ctx, samplePosition("p1")))
	require.NoError(t, s.DeletePosition(ctx, "p1"))

	loaded, err := s.LoadOpenPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	// deleting twice is fine
	assert.NoError(t, s.DeletePosition(ctx, "p1"))
}

func TestTradeJournal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := samplePosition("p1")
	first.Status = types.PositionClosed
	first.ExitPrice = 105.06
	first.RealizedPnL = 1892.44
	first.ExitReason = "target"
	first.ExitTime = time.Now().Add(-time.Hour)
	require.NoError(t, s.SaveTrade(ctx, first))

	second := samplePosition("p2")
	second.Status = types.PositionClosed
	second.ExitPrice = 97.33
	second.RealizedPnL = -998.58
	second.ExitReason = "stop_loss"
	second.ExitTime = time.Now()
	require.NoError(t, s.SaveTrade(ctx, second))

	trades, err := s.ListTrades(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	// newest first
	assert.Equal(t, "p2", trades[0].ID)
	assert.Equal(t, "stop_loss", trades[0].ExitReason)
	assert.Equal(t, "p1", trades[1].ID)
}

func TestNew_Validation(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestSavePosition_RequiresID(t *testing.T) {
	s := newTestStore(t)
	err := s.SavePosition(context.Background(), types.Position{})
	assert.Error(t, err)
}
