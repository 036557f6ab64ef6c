package gormstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mahekanna/gann-algomojo/internal/types"
)

// GormStore persists position snapshots and the closed-trade journal in
// SQLite. Snapshots make restarts safe: open positions survive the process.
type GormStore struct {
	db *gorm.DB
}

type positionModel struct {
	ID           string         `gorm:"column:id;primaryKey"`
	OrderID      string         `gorm:"column:order_id"`
	Symbol       string         `gorm:"column:symbol;index"`
	BrokerSymbol string         `gorm:"column:broker_symbol"`
	Exchange     string         `gorm:"column:exchange"`
	Product      string         `gorm:"column:product"`
	Class        string         `gorm:"column:class"`
	Side         string         `gorm:"column:side"`
	Quantity     int            `gorm:"column:quantity"`
	EntryPrice   float64        `gorm:"column:entry_price"`
	StopLoss     float64        `gorm:"column:stop_loss"`
	Target       float64        `gorm:"column:target"`
	Status       string         `gorm:"column:status;index"`
	RiskAmount   float64        `gorm:"column:risk_amount"`
	EntryUnix    int64          `gorm:"column:entry_at"`
	Snapshot     datatypes.JSON `gorm:"column:snapshot;type:TEXT"`
}

func (positionModel) TableName() string { return "positions" }

type tradeModel struct {
	ID          int64          `gorm:"column:id;primaryKey;autoIncrement"`
	PositionID  string         `gorm:"column:position_id;index"`
	Symbol      string         `gorm:"column:symbol;index"`
	Side        string         `gorm:"column:side"`
	Quantity    int            `gorm:"column:quantity"`
	EntryPrice  float64        `gorm:"column:entry_price"`
	ExitPrice   float64        `gorm:"column:exit_price"`
	RealizedPnL float64        `gorm:"column:realized_pnl"`
	ExitReason  string         `gorm:"column:exit_reason"`
	EntryUnix   int64          `gorm:"column:entry_at"`
	ExitUnix    int64          `gorm:"column:exit_at;index"`
	Snapshot    datatypes.JSON `gorm:"column:snapshot;type:TEXT"`
}

func (tradeModel) TableName() string { return "trades" }

func New(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: path is required")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&positionModel{}, &tradeModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little parallelism for HTTP reads, low lock contention
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

// SavePosition upserts the live snapshot of a position.
func (s *GormStore) SavePosition(ctx context.Context, pos types.Position) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	model, err := newPositionModel(pos)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"order_id", "broker_symbol", "exchange", "product", "status",
				"quantity", "entry_price", "stop_loss", "target", "snapshot",
			}),
		}).
		Create(model).Error
}

// DeletePosition removes the snapshot once the position is closed.
func (s *GormStore) DeletePosition(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	return s.db.WithContext(ctx).Delete(&positionModel{}, "id = ?", id).Error
}

// LoadOpenPositions returns every persisted non-closed position, used to
// rebuild risk state after a restart.
func (s *GormStore) LoadOpenPositions(ctx context.Context) ([]types.Position, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	var models []positionModel
	err := s.db.WithContext(ctx).
		Where("status <> ?", string(types.PositionClosed)).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.Position, 0, len(models))
	for _, m := range models {
		var pos types.Position
		if err := json.Unmarshal(m.Snapshot, &pos); err != nil {
			return nil, fmt.Errorf("corrupt snapshot for position %s: %w", m.ID, err)
		}
		out = append(out, pos)
	}
	return out, nil
}

// SaveTrade appends a closed position to the journal.
func (s *GormStore) SaveTrade(ctx context.Context, pos types.Position) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	snapshot, err := json.Marshal(pos)
	if err != nil {
		return err
	}
	model := tradeModel{
		PositionID:  pos.ID,
		Symbol:      pos.Symbol,
		Side:        string(pos.Side),
		Quantity:    pos.Quantity,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   pos.ExitPrice,
		RealizedPnL: pos.RealizedPnL,
		ExitReason:  pos.ExitReason,
		EntryUnix:   pos.EntryTime.Unix(),
		ExitUnix:    pos.ExitTime.Unix(),
		Snapshot:    snapshot,
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// ListTrades returns the most recent closed trades, newest first.
func (s *GormStore) ListTrades(ctx context.Context, limit int) ([]types.Position, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 {
		limit = 100
	}
	var models []tradeModel
	err := s.db.WithContext(ctx).
		Order("exit_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.Position, 0, len(models))
	for _, m := range models {
		var pos types.Position
		if err := json.Unmarshal(m.Snapshot, &pos); err != nil {
			return nil, fmt.Errorf("corrupt snapshot for trade %d: %w", m.ID, err)
		}
		out = append(out, pos)
	}
	return out, nil
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newPositionModel(pos types.Position) (*positionModel, error) {
	if strings.TrimSpace(pos.ID) == "" {
		return nil, fmt.Errorf("position id is required")
	}
	snapshot, err := json.Marshal(pos)
	if err != nil {
		return nil, err
	}
	return &positionModel{
		ID:           pos.ID,
		OrderID:      pos.OrderID,
		Symbol:       pos.Symbol,
		BrokerSymbol: pos.BrokerSymbol,
		Exchange:     pos.Exchange,
		Product:      pos.Product,
		Class:        string(pos.Class),
		Side:         string(pos.Side),
		Quantity:     pos.Quantity,
		EntryPrice:   pos.EntryPrice,
		StopLoss:     pos.StopLoss,
		Target:       pos.Target,
		Status:       string(pos.Status),
		RiskAmount:   pos.RiskAmount,
		EntryUnix:    pos.EntryTime.Unix(),
		Snapshot:     snapshot,
	}, nil
}
