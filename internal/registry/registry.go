// Package registry is the single writer of strategy rows. Every other
// component mutates strategies through the narrow methods here, each of
// which touches only the fields it is responsible for.
package registry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stratlab/internal/apperr"
	"stratlab/internal/models"
	"stratlab/internal/repository"
)

// updateRetries caps the optimistic-write retry loop; a tick that keeps
// losing the race gives up with a conflict instead of spinning.
const updateRetries = 3

// updatableFields is the whitelist for the generic UpdateFields path.
// The one-way safety flags (auto_disabled, emergency_disabled) are absent:
// they move only through their dedicated methods below.
var updatableFields = map[string]struct{}{
	"strategy_type":     {},
	"enabled":           {},
	"trading_stage":     {},
	"allocated_capital": {},
	"paused":            {},
	"pause_reason":      {},
}

type Service struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

func (s *Service) Create(ctx context.Context, name, strategyType string) (*models.Strategy, error) {
	if s == nil || s.Repo == nil {
		return nil, apperr.Persistence("registry store unavailable", nil)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("strategy name required")
	}
	existing, err := s.Repo.GetStrategyByName(ctx, name)
	if err != nil {
		return nil, apperr.Persistence("lookup strategy", err)
	}
	if existing != nil {
		return nil, apperr.Conflict("strategy %q already exists", name)
	}
	item := &models.Strategy{
		Name:             name,
		StrategyType:     strings.TrimSpace(strategyType),
		TradingStage:     models.StageBacktest,
		AllocatedCapital: decimal.Zero,
	}
	if err := s.Repo.CreateStrategy(ctx, item); err != nil {
		return nil, apperr.Persistence("create strategy", err)
	}
	if s.Logger != nil {
		s.Logger.Info("strategy registered",
			zap.String("strategy", item.Name),
			zap.Uint64("id", item.ID),
		)
	}
	return item, nil
}

func (s *Service) GetByID(ctx context.Context, id uint64) (*models.Strategy, error) {
	if s == nil || s.Repo == nil {
		return nil, apperr.Persistence("registry store unavailable", nil)
	}
	item, err := s.Repo.GetStrategyByID(ctx, id)
	if err != nil {
		return nil, apperr.Persistence("lookup strategy", err)
	}
	if item == nil {
		return nil, apperr.NotFound("strategy id %d not found", id)
	}
	return item, nil
}

func (s *Service) GetByName(ctx context.Context, name string) (*models.Strategy, error) {
	if s == nil || s.Repo == nil {
		return nil, apperr.Persistence("registry store unavailable", nil)
	}
	item, err := s.Repo.GetStrategyByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, apperr.Persistence("lookup strategy", err)
	}
	if item == nil {
		return nil, apperr.NotFound("strategy %q not found", name)
	}
	return item, nil
}

func (s *Service) ListAll(ctx context.Context) ([]models.Strategy, error) {
	if s == nil || s.Repo == nil {
		return nil, apperr.Persistence("registry store unavailable", nil)
	}
	items, err := s.Repo.ListStrategies(ctx)
	if err != nil {
		return nil, apperr.Persistence("list strategies", err)
	}
	return items, nil
}

func (s *Service) ListActive(ctx context.Context) ([]models.Strategy, error) {
	if s == nil || s.Repo == nil {
		return nil, apperr.Persistence("registry store unavailable", nil)
	}
	items, err := s.Repo.ListActiveStrategies(ctx)
	if err != nil {
		return nil, apperr.Persistence("list active strategies", err)
	}
	return items, nil
}

func (s *Service) ListEnabled(ctx context.Context) ([]models.Strategy, error) {
	if s == nil || s.Repo == nil {
		return nil, apperr.Persistence("registry store unavailable", nil)
	}
	items, err := s.Repo.ListEnabledStrategies(ctx)
	if err != nil {
		return nil, apperr.Persistence("list enabled strategies", err)
	}
	return items, nil
}

// UpdateFields applies a whole-field, named partial update as one atomic
// write. Unknown fields, wrongly-typed values and contradictory flag
// combinations are rejected before anything is written, so a malformed
// request can never reach the store.
func (s *Service) UpdateFields(ctx context.Context, id uint64, fields map[string]any) error {
	if s == nil || s.Repo == nil {
		return apperr.Persistence("registry store unavailable", nil)
	}
	if len(fields) == 0 {
		return apperr.Validation("no fields to update")
	}
	normalized := make(map[string]any, len(fields))
	for name, raw := range fields {
		if _, ok := updatableFields[name]; !ok {
			return apperr.Validation("unknown or protected field %q", name)
		}
		value, err := fieldValue(name, raw)
		if err != nil {
			return err
		}
		normalized[name] = value
	}
	return s.update(ctx, id, func(current *models.Strategy) error {
		if raw, ok := normalized["enabled"]; ok && raw.(bool) {
			// Enabling cannot sneak past a tripped safety flag; the manual
			// Enable path is the only way out of those states.
			if current.EmergencyDisabled {
				return apperr.Validation("strategy %q is emergency-disabled; use the manual re-enable path", current.Name)
			}
			if current.AutoDisabled {
				return apperr.Validation("strategy %q is auto-disabled; use the manual re-enable path", current.Name)
			}
		}
		return nil
	}, normalized)
}

// fieldValue checks a JSON-decoded value for one whitelisted field and
// normalizes it to the column's native type.
func fieldValue(name string, raw any) (any, error) {
	switch name {
	case "enabled", "paused":
		v, ok := raw.(bool)
		if !ok {
			return nil, apperr.Validation("%s must be a boolean", name)
		}
		return v, nil
	case "strategy_type":
		v, ok := raw.(string)
		if !ok || strings.TrimSpace(v) == "" {
			return nil, apperr.Validation("strategy_type must be a non-empty string")
		}
		return strings.TrimSpace(v), nil
	case "trading_stage":
		return stageValue(raw)
	case "allocated_capital":
		v, err := decimalValue(raw)
		if err != nil {
			return nil, err
		}
		if v.IsNegative() {
			return nil, apperr.Validation("allocated_capital must not be negative")
		}
		return v, nil
	case "pause_reason":
		switch v := raw.(type) {
		case nil:
			return (*string)(nil), nil
		case string:
			return reasonPtr(v), nil
		default:
			return nil, apperr.Validation("pause_reason must be a string or null")
		}
	default:
		return nil, apperr.Validation("unknown or protected field %q", name)
	}
}

func decimalValue(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Decimal{}, apperr.Validation("allocated_capital must be numeric")
		}
		return d, nil
	default:
		return decimal.Decimal{}, apperr.Validation("allocated_capital must be numeric")
	}
}

// Enable is the manual re-enable path and the only transition out of the
// one-way auto_disabled / emergency_disabled states. It exists so that a
// strategy stopped for violating a hard limit comes back only after a human
// decided it should.
func (s *Service) Enable(ctx context.Context, name string) error {
	item, err := s.GetByName(ctx, name)
	if err != nil {
		return err
	}
	return s.update(ctx, item.ID, nil, map[string]any{
		"enabled":            true,
		"auto_disabled":      false,
		"emergency_disabled": false,
		"disable_reason":     nil,
	})
}

func (s *Service) Disable(ctx context.Context, name, reason string) error {
	item, err := s.GetByName(ctx, name)
	if err != nil {
		return err
	}
	return s.update(ctx, item.ID, nil, map[string]any{
		"enabled":        false,
		"disable_reason": reasonPtr(reason),
	})
}

// AutoDisable trips the health monitor's one-way flag. Intent (enabled) is
// left untouched so operators can see intent vs. actual separately.
func (s *Service) AutoDisable(ctx context.Context, id uint64, reason string) error {
	return s.update(ctx, id, nil, map[string]any{
		"auto_disabled":  true,
		"disable_reason": reasonPtr(reason),
	})
}

// EmergencyDisable trips the kill-switch flag on one strategy.
func (s *Service) EmergencyDisable(ctx context.Context, id uint64, reason string) error {
	return s.update(ctx, id, nil, map[string]any{
		"emergency_disabled": true,
		"disable_reason":     reasonPtr(reason),
	})
}

func (s *Service) SetPaused(ctx context.Context, id uint64, paused bool, reason string) error {
	fields := map[string]any{
		"paused":       paused,
		"pause_reason": nil,
	}
	if paused {
		fields["pause_reason"] = reasonPtr(reason)
	}
	return s.update(ctx, id, nil, fields)
}

func (s *Service) SetStage(ctx context.Context, id uint64, stage models.TradingStage, capital decimal.Decimal) error {
	if !models.ValidStage(stage) {
		return apperr.Validation("invalid trading stage %q", stage)
	}
	return s.update(ctx, id, nil, map[string]any{
		"trading_stage":     stage,
		"allocated_capital": capital,
	})
}

func (s *Service) SetAllocatedCapital(ctx context.Context, id uint64, capital decimal.Decimal) error {
	if capital.IsNegative() {
		return apperr.Validation("allocated capital must not be negative")
	}
	return s.update(ctx, id, nil, map[string]any{
		"allocated_capital": capital,
	})
}

// update re-reads the row, runs the optional validation against current
// state, and writes under the optimistic version check, retrying a bounded
// number of times when another writer wins the race.
func (s *Service) update(ctx context.Context, id uint64, validate func(*models.Strategy) error, fields map[string]any) error {
	if s == nil || s.Repo == nil {
		return apperr.Persistence("registry store unavailable", nil)
	}
	backoff := 25 * time.Millisecond
	for attempt := 0; attempt < updateRetries; attempt++ {
		current, err := s.Repo.GetStrategyByID(ctx, id)
		if err != nil {
			return apperr.Persistence("lookup strategy", err)
		}
		if current == nil {
			return apperr.NotFound("strategy id %d not found", id)
		}
		if validate != nil {
			if err := validate(current); err != nil {
				return err
			}
		}
		err = s.Repo.UpdateStrategyFields(ctx, id, current.Version, fields)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return apperr.Persistence("update strategy", err)
		}
		select {
		case <-ctx.Done():
			return apperr.Persistence("update cancelled", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return apperr.Conflict("strategy id %d: concurrent update, retry", id)
}

func stageValue(raw any) (models.TradingStage, error) {
	var stage models.TradingStage
	switch v := raw.(type) {
	case models.TradingStage:
		stage = v
	case string:
		stage = models.TradingStage(v)
	default:
		return "", apperr.Validation("trading_stage must be a string")
	}
	if !models.ValidStage(stage) {
		return "", apperr.Validation("invalid trading stage %q", stage)
	}
	return stage, nil
}

func reasonPtr(reason string) *string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil
	}
	return &reason
}
