package memoryrepository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"stratlab/internal/models"
	"stratlab/internal/repository"
)

// Store is an in-memory repository.Repository with the same observable
// semantics as the gorm store: optimistic version checks, latest-by-timestamp
// snapshot lookup and the active-strategy filter. It backs package tests and
// DB-less simulation runs.
type Store struct {
	mu sync.Mutex

	nextStrategyID uint64
	nextSnapshotID uint64

	strategies map[uint64]*models.Strategy
	snapshots  map[uint64][]models.PerformanceSnapshot
	config     map[string]*models.ConfigEntry

	// FailStrategyUpdate injects a write failure for specific strategy IDs,
	// used to exercise partial-failure reporting.
	FailStrategyUpdate map[uint64]error
}

func New() *Store {
	return &Store{
		strategies: map[uint64]*models.Strategy{},
		snapshots:  map[uint64][]models.PerformanceSnapshot{},
		config:     map[string]*models.ConfigEntry{},
	}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (s *Store) CreateStrategy(ctx context.Context, item *models.Strategy) error {
	if s == nil || item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.strategies {
		if existing.Name == item.Name {
			return fmt.Errorf("duplicate strategy name %q", item.Name)
		}
	}
	s.nextStrategyID++
	item.ID = s.nextStrategyID
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	cp := *item
	s.strategies[item.ID] = &cp
	return nil
}

func (s *Store) GetStrategyByID(ctx context.Context, id uint64) (*models.Strategy, error) {
	if s == nil || id == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.strategies[id]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (s *Store) GetStrategyByName(ctx context.Context, name string) (*models.Strategy, error) {
	if s == nil {
		return nil, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.strategies {
		if item.Name == name {
			cp := *item
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) ListStrategies(ctx context.Context) ([]models.Strategy, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(func(models.Strategy) bool { return true }), nil
}

func (s *Store) ListActiveStrategies(ctx context.Context) ([]models.Strategy, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(func(item models.Strategy) bool { return item.Active() }), nil
}

func (s *Store) ListEnabledStrategies(ctx context.Context) ([]models.Strategy, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(func(item models.Strategy) bool { return item.Enabled }), nil
}

func (s *Store) listLocked(keep func(models.Strategy) bool) []models.Strategy {
	out := make([]models.Strategy, 0, len(s.strategies))
	for _, item := range s.strategies {
		if keep(*item) {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) UpdateStrategyFields(ctx context.Context, id uint64, version uint64, fields map[string]any) error {
	if s == nil || id == 0 || len(fields) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.FailStrategyUpdate[id]; ok && err != nil {
		return err
	}
	item, ok := s.strategies[id]
	if !ok {
		return repository.ErrVersionConflict
	}
	if item.Version != version {
		return repository.ErrVersionConflict
	}
	for column, value := range fields {
		if err := applyStrategyField(item, column, value); err != nil {
			return err
		}
	}
	item.Version = version + 1
	item.UpdatedAt = time.Now().UTC()
	return nil
}

func applyStrategyField(item *models.Strategy, column string, value any) error {
	switch column {
	case "strategy_type":
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("bad strategy_type value %T", value)
		}
		item.StrategyType = v
	case "enabled":
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("bad enabled value %T", value)
		}
		item.Enabled = v
	case "trading_stage":
		switch v := value.(type) {
		case models.TradingStage:
			item.TradingStage = v
		case string:
			item.TradingStage = models.TradingStage(v)
		default:
			return fmt.Errorf("bad trading_stage value %T", value)
		}
	case "allocated_capital":
		switch v := value.(type) {
		case decimal.Decimal:
			item.AllocatedCapital = v
		case float64:
			item.AllocatedCapital = decimal.NewFromFloat(v)
		default:
			return fmt.Errorf("bad allocated_capital value %T", value)
		}
	case "auto_disabled":
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("bad auto_disabled value %T", value)
		}
		item.AutoDisabled = v
	case "disable_reason":
		item.DisableReason = stringPtrValue(value)
	case "emergency_disabled":
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("bad emergency_disabled value %T", value)
		}
		item.EmergencyDisabled = v
	case "paused":
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("bad paused value %T", value)
		}
		item.Paused = v
	case "pause_reason":
		item.PauseReason = stringPtrValue(value)
	default:
		return fmt.Errorf("unknown strategy column %q", column)
	}
	return nil
}

func stringPtrValue(value any) *string {
	switch v := value.(type) {
	case nil:
		return nil
	case *string:
		return v
	case string:
		return &v
	default:
		s := fmt.Sprintf("%v", v)
		return &s
	}
}

func (s *Store) InsertSnapshot(ctx context.Context, item *models.PerformanceSnapshot) error {
	if s == nil || item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSnapshotID++
	item.ID = s.nextSnapshotID
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now().UTC()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.snapshots[item.StrategyID] = append(s.snapshots[item.StrategyID], *item)
	return nil
}

func (s *Store) LatestSnapshot(ctx context.Context, strategyID uint64) (*models.PerformanceSnapshot, error) {
	if s == nil || strategyID == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.snapshots[strategyID]
	if len(rows) == 0 {
		return nil, nil
	}
	best := rows[0]
	for _, row := range rows[1:] {
		if row.Timestamp.After(best.Timestamp) {
			best = row
		}
	}
	cp := best
	return &cp, nil
}

func (s *Store) ListSnapshots(ctx context.Context, params repository.ListSnapshotsParams) ([]models.PerformanceSnapshot, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PerformanceSnapshot
	for strategyID, rows := range s.snapshots {
		if params.StrategyID != nil && *params.StrategyID != strategyID {
			continue
		}
		for _, row := range rows {
			if params.Since != nil && row.Timestamp.Before(*params.Since) {
				continue
			}
			if params.Until != nil && !row.Timestamp.Before(*params.Until) {
				continue
			}
			if params.Simulated != nil && row.Simulated != *params.Simulated {
				continue
			}
			out = append(out, row)
		}
	}
	asc := params.Asc != nil && *params.Asc
	sort.Slice(out, func(i, j int) bool {
		if asc {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[j].Timestamp.Before(out[i].Timestamp)
	})
	if params.Offset > 0 {
		if params.Offset >= len(out) {
			return nil, nil
		}
		out = out[params.Offset:]
	}
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (s *Store) GetConfigEntry(ctx context.Context, key string) (*models.ConfigEntry, error) {
	if s == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.config[key]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (s *Store) UpsertConfigEntry(ctx context.Context, item *models.ConfigEntry) error {
	if s == nil || item == nil {
		return nil
	}
	key := strings.TrimSpace(item.Key)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.config[key]; ok {
		existing.Value = item.Value
		existing.Description = item.Description
		existing.UpdatedAt = now
		return nil
	}
	cp := *item
	cp.ID = uint64(len(s.config) + 1)
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.config[key] = &cp
	return nil
}
