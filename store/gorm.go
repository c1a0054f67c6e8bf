package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KOMKZ/go-yogan-liqguard/limiter"
	"github.com/KOMKZ/go-yogan-liqguard/signed"
	"github.com/KOMKZ/go-yogan-liqguard/tickwindow"
)

// TickNodeModel row of tick_nodes
type TickNodeModel struct {
	Asset     string `gorm:"primaryKey;size:128"`
	Tick      uint64 `gorm:"primaryKey;autoIncrement:false"`
	Amount    string `gorm:"size:80;not null"`
	Next      uint64 `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// TableName table name
func (TickNodeModel) TableName() string { return "tick_nodes" }

// LimiterStateModel row of limiter_states
type LimiterStateModel struct {
	Asset               string `gorm:"primaryKey;size:128"`
	MinLiqRetainedBps   uint32 `gorm:"not null"`
	LimitBeginThreshold string `gorm:"size:80;not null"`
	LiqTotal            string `gorm:"size:80;not null"`
	LiqInPeriod         string `gorm:"size:80;not null"`
	ListHead            uint64 `gorm:"not null;default:0"`
	ListTail            uint64 `gorm:"not null;default:0"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TableName table name
func (LimiterStateModel) TableName() string { return "limiter_states" }

// GormStore keeps nodes and states in SQL tables
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db, optionally creating the tables
func NewGormStore(db *gorm.DB, autoMigrate bool) (*GormStore, error) {
	if autoMigrate {
		if err := db.AutoMigrate(&TickNodeModel{}, &LimiterStateModel{}); err != nil {
			return nil, fmt.Errorf("auto migrate failed: %w", err)
		}
	}
	return &GormStore{db: db}, nil
}

// LoadNode returns the zero node when the row does not exist
func (s *GormStore) LoadNode(ctx context.Context, asset string, tick uint64) (tickwindow.Node, error) {
	var rows []TickNodeModel
	err := s.db.WithContext(ctx).
		Where("asset = ? AND tick = ?", asset, tick).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return tickwindow.Node{}, fmt.Errorf("query tick node failed: %w", err)
	}
	if len(rows) == 0 {
		return tickwindow.Node{}, nil
	}
	amount, err := signed.FromDecimal(rows[0].Amount)
	if err != nil {
		return tickwindow.Node{}, ErrCorruptRecord.Wrap(err).WithData("asset", asset).WithData("tick", tick)
	}
	return tickwindow.Node{Amount: amount, Next: rows[0].Next}, nil
}

// StoreNode upserts the row
func (s *GormStore) StoreNode(ctx context.Context, asset string, tick uint64, node tickwindow.Node) error {
	row := TickNodeModel{
		Asset:  asset,
		Tick:   tick,
		Amount: node.Amount.String(),
		Next:   node.Next,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "asset"}, {Name: "tick"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "next", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert tick node failed: %w", err)
	}
	return nil
}

// ClearNode deletes the row
func (s *GormStore) ClearNode(ctx context.Context, asset string, tick uint64) error {
	err := s.db.WithContext(ctx).
		Where("asset = ? AND tick = ?", asset, tick).
		Delete(&TickNodeModel{}).Error
	if err != nil {
		return fmt.Errorf("delete tick node failed: %w", err)
	}
	return nil
}

// LoadState reads limiter_states
func (s *GormStore) LoadState(ctx context.Context, asset string) (limiter.State, bool, error) {
	var rows []LimiterStateModel
	err := s.db.WithContext(ctx).
		Where("asset = ?", asset).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return limiter.State{}, false, fmt.Errorf("query limiter state failed: %w", err)
	}
	if len(rows) == 0 {
		return limiter.State{}, false, nil
	}
	row := rows[0]
	st, err := decodeState(asset, record{
		Bps:         row.MinLiqRetainedBps,
		Threshold:   row.LimitBeginThreshold,
		LiqTotal:    row.LiqTotal,
		LiqInPeriod: row.LiqInPeriod,
		Head:        row.ListHead,
		Tail:        row.ListTail,
	})
	if err != nil {
		return limiter.State{}, false, err
	}
	return st, true, nil
}

// SaveState upserts limiter_states
func (s *GormStore) SaveState(ctx context.Context, st limiter.State) error {
	r := encodeState(st)
	row := LimiterStateModel{
		Asset:               st.Asset,
		MinLiqRetainedBps:   r.Bps,
		LimitBeginThreshold: r.Threshold,
		LiqTotal:            r.LiqTotal,
		LiqInPeriod:         r.LiqInPeriod,
		ListHead:            r.Head,
		ListTail:            r.Tail,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "asset"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"min_liq_retained_bps", "limit_begin_threshold",
				"liq_total", "liq_in_period", "list_head", "list_tail", "updated_at",
			}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert limiter state failed: %w", err)
	}
	return nil
}

// Assets lists registered assets
func (s *GormStore) Assets(ctx context.Context) ([]string, error) {
	var assets []string
	err := s.db.WithContext(ctx).
		Model(&LimiterStateModel{}).
		Order("asset").
		Pluck("asset", &assets).Error
	if err != nil {
		return nil, fmt.Errorf("list assets failed: %w", err)
	}
	return assets, nil
}

// Transaction runs fn against a store bound to one SQL transaction
func (s *GormStore) Transaction(ctx context.Context, fn func(tx *GormStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// Atomically commits a limiter batch in one SQL transaction
func (s *GormStore) Atomically(ctx context.Context, fn func(tx limiter.Store) error) error {
	return s.Transaction(ctx, func(tx *GormStore) error {
		return fn(tx)
	})
}

// Close the connection belongs to the database manager
func (s *GormStore) Close() error {
	return nil
}
