package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"stratlab/internal/models"
)

// ErrVersionConflict is returned by UpdateStrategyFields when the optimistic
// version check fails, i.e. another writer got there first. Callers retry
// with a fresh read.
var ErrVersionConflict = errors.New("strategy version conflict")

// Repository is the durable store behind the strategy registry, the
// performance snapshot store and the runtime config table. It is the only
// shared mutable state in the supervision core; every policy component is
// stateless logic over it.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Strategy registry rows.
	CreateStrategy(ctx context.Context, item *models.Strategy) error
	GetStrategyByID(ctx context.Context, id uint64) (*models.Strategy, error)
	GetStrategyByName(ctx context.Context, name string) (*models.Strategy, error)
	ListStrategies(ctx context.Context) ([]models.Strategy, error)
	// ListActiveStrategies filters enabled, not auto-disabled, not
	// emergency-disabled, not paused. The global kill switch is checked by
	// callers, not here.
	ListActiveStrategies(ctx context.Context) ([]models.Strategy, error)
	ListEnabledStrategies(ctx context.Context) ([]models.Strategy, error)
	// UpdateStrategyFields applies a partial update as a single atomic write
	// guarded by the row version; fields must already be column-named.
	UpdateStrategyFields(ctx context.Context, id uint64, version uint64, fields map[string]any) error

	// Performance snapshots (append-only).
	InsertSnapshot(ctx context.Context, item *models.PerformanceSnapshot) error
	LatestSnapshot(ctx context.Context, strategyID uint64) (*models.PerformanceSnapshot, error)
	ListSnapshots(ctx context.Context, params ListSnapshotsParams) ([]models.PerformanceSnapshot, error)

	// Runtime config key/value store.
	GetConfigEntry(ctx context.Context, key string) (*models.ConfigEntry, error)
	UpsertConfigEntry(ctx context.Context, item *models.ConfigEntry) error
}

type ListSnapshotsParams struct {
	StrategyID *uint64
	Since      *time.Time
	Until      *time.Time
	Simulated  *bool
	Limit      int
	Offset     int
	Asc        *bool
}
