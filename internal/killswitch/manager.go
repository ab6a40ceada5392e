// Package killswitch implements the global emergency stop: one flag that
// halts all automatic supervision and force-disables every enabled strategy.
package killswitch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"stratlab/internal/apperr"
	"stratlab/internal/config"
	"stratlab/internal/models"
	"stratlab/internal/registry"
	"stratlab/internal/repository"
)

// ConfigKey is the row in the config table holding the kill switch state.
const ConfigKey = "kill_switch"

// State is the persisted audit record. Deactivation clears Active but keeps
// the audit fields from the last activation visible.
type State struct {
	Active         bool       `json:"active"`
	Reason         string     `json:"reason,omitempty"`
	ClosePositions bool       `json:"close_positions,omitempty"`
	ActivatedBy    string     `json:"activated_by,omitempty"`
	ActivatedAt    *time.Time `json:"activated_at,omitempty"`
	DeactivatedAt  *time.Time `json:"deactivated_at,omitempty"`
}

// StrategyFailure reports one strategy the activation fan-out could not
// persist. The activation itself still succeeds.
type StrategyFailure struct {
	StrategyID   uint64 `json:"strategy_id"`
	StrategyName string `json:"strategy_name"`
	Error        string `json:"error"`
}

type ActivationResult struct {
	State    State             `json:"state"`
	Disabled int               `json:"disabled"`
	Failures []StrategyFailure `json:"failures,omitempty"`
}

type Manager struct {
	Config   config.KillSwitchConfig
	Repo     repository.Repository
	Registry *registry.Service
	Logger   *zap.Logger

	// mu serializes the global flag against the fan-out so two concurrent
	// activations cannot interleave their writes.
	mu sync.Mutex
}

func (m *Manager) loadState(ctx context.Context) (State, error) {
	var st State
	entry, err := m.Repo.GetConfigEntry(ctx, ConfigKey)
	if err != nil {
		return st, apperr.Persistence("load kill switch state", err)
	}
	if entry == nil {
		return st, nil
	}
	if err := json.Unmarshal(entry.Value, &st); err != nil {
		return st, apperr.Persistence("decode kill switch state", err)
	}
	return st, nil
}

func (m *Manager) saveState(ctx context.Context, st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return apperr.Persistence("encode kill switch state", err)
	}
	entry := &models.ConfigEntry{
		Key:         ConfigKey,
		Value:       datatypes.JSON(raw),
		Description: "global emergency kill switch",
	}
	if err := m.Repo.UpsertConfigEntry(ctx, entry); err != nil {
		return apperr.Persistence("save kill switch state", err)
	}
	return nil
}

// IsActive is read by every scheduler tick before any per-strategy work.
func (m *Manager) IsActive(ctx context.Context) (bool, error) {
	if m == nil || m.Repo == nil {
		return false, apperr.Persistence("kill switch not wired", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.loadState(ctx)
	if err != nil {
		return false, err
	}
	return st.Active, nil
}

// GetState returns the current persisted state including audit fields.
func (m *Manager) GetState(ctx context.Context) (*State, error) {
	if m == nil || m.Repo == nil {
		return nil, apperr.Persistence("kill switch not wired", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.loadState(ctx)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Activate sets the global flag, then emergency-disables every currently
// enabled strategy. A strategy whose write fails is reported in the result
// and the fan-out continues; the switch is considered active regardless.
func (m *Manager) Activate(ctx context.Context, reason string, closePositions bool, activatedBy string) (*ActivationResult, error) {
	if m == nil || m.Repo == nil || m.Registry == nil {
		return nil, apperr.Persistence("kill switch not wired", nil)
	}
	if reason == "" {
		return nil, apperr.Validation("kill switch activation requires a reason")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, err := m.loadState(ctx)
	if err != nil {
		return nil, err
	}
	if cur.Active {
		return nil, apperr.AlreadyInState("kill switch is already active")
	}

	now := time.Now().UTC()
	st := State{
		Active:         true,
		Reason:         reason,
		ClosePositions: closePositions,
		ActivatedBy:    activatedBy,
		ActivatedAt:    &now,
	}
	if err := m.saveState(ctx, st); err != nil {
		return nil, err
	}

	strats, err := m.Repo.ListEnabledStrategies(ctx)
	if err != nil {
		return nil, apperr.Persistence("list enabled strategies", err)
	}
	result := &ActivationResult{State: st}
	disableReason := "Kill switch: " + reason
	for _, strat := range strats {
		if err := m.Registry.EmergencyDisable(ctx, strat.ID, disableReason); err != nil {
			result.Failures = append(result.Failures, StrategyFailure{
				StrategyID:   strat.ID,
				StrategyName: strat.Name,
				Error:        err.Error(),
			})
			if m.Logger != nil {
				m.Logger.Error("kill switch could not disable strategy",
					zap.String("strategy", strat.Name), zap.Error(err))
			}
			continue
		}
		result.Disabled++
	}
	if m.Logger != nil {
		m.Logger.Warn("kill switch activated",
			zap.String("reason", reason),
			zap.String("by", activatedBy),
			zap.Bool("close_positions", closePositions),
			zap.Int("disabled", result.Disabled),
			zap.Int("failures", len(result.Failures)),
		)
	}
	return result, nil
}

// Deactivate clears only the global flag. Every emergency-disabled strategy
// stays disabled until someone re-enables it by hand.
func (m *Manager) Deactivate(ctx context.Context, adminPassword string) (*State, error) {
	if m == nil || m.Repo == nil {
		return nil, apperr.Persistence("kill switch not wired", nil)
	}
	if m.Config.AdminPassword == "" || adminPassword != m.Config.AdminPassword {
		return nil, apperr.Validation("invalid admin password")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st, err := m.loadState(ctx)
	if err != nil {
		return nil, err
	}
	if !st.Active {
		return nil, apperr.AlreadyInState("kill switch is not active")
	}
	now := time.Now().UTC()
	st.Active = false
	st.DeactivatedAt = &now
	if err := m.saveState(ctx, st); err != nil {
		return nil, err
	}
	if m.Logger != nil {
		m.Logger.Warn("kill switch deactivated; strategies require manual re-enable")
	}
	return &st, nil
}
