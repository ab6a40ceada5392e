package registry

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"stratlab/internal/apperr"
	"stratlab/internal/models"
	"stratlab/internal/repository"
	memoryrepository "stratlab/internal/repository/memory"
)

func newService(t *testing.T) (*Service, *memoryrepository.Store) {
	t.Helper()
	store := memoryrepository.New()
	return &Service{Repo: store}, store
}

func mustCreate(t *testing.T, svc *Service, name string) *models.Strategy {
	t.Helper()
	item, err := svc.Create(context.Background(), name, "momentum")
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return item
}

func TestCreateDefaultsAndDuplicate(t *testing.T) {
	svc, _ := newService(t)
	item := mustCreate(t, svc, "alpha")
	if item.TradingStage != models.StageBacktest {
		t.Fatalf("new strategy stage = %q, want backtest", item.TradingStage)
	}
	if !item.AllocatedCapital.IsZero() {
		t.Fatalf("new strategy capital = %s, want 0", item.AllocatedCapital)
	}
	if item.Enabled {
		t.Fatalf("new strategy should start disabled")
	}
	if _, err := svc.Create(context.Background(), "alpha", "momentum"); !apperr.IsConflict(err) {
		t.Fatalf("duplicate create error = %v, want conflict", err)
	}
}

func TestUpdateFieldsRejectsProtectedFields(t *testing.T) {
	svc, _ := newService(t)
	item := mustCreate(t, svc, "alpha")
	for _, field := range []string{"auto_disabled", "emergency_disabled", "disable_reason", "version", "name"} {
		err := svc.UpdateFields(context.Background(), item.ID, map[string]any{field: true})
		if !apperr.IsValidation(err) {
			t.Fatalf("update of %q error = %v, want validation", field, err)
		}
	}
}

func TestUpdateFieldsRejectsWrongTypes(t *testing.T) {
	svc, _ := newService(t)
	item := mustCreate(t, svc, "alpha")
	for _, fields := range []map[string]any{
		{"paused": "yes"},
		{"enabled": 1.0},
		{"allocated_capital": "lots"},
		{"allocated_capital": -5.0},
		{"pause_reason": 42.0},
		{"strategy_type": 7.0},
		{"trading_stage": 3.0},
	} {
		if err := svc.UpdateFields(context.Background(), item.ID, fields); !apperr.IsValidation(err) {
			t.Fatalf("update %v error = %v, want validation", fields, err)
		}
	}
	got, err := svc.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != item.Version {
		t.Fatalf("version = %d, want %d: malformed updates must not write", got.Version, item.Version)
	}
}

func TestUpdateFieldsNormalizesValues(t *testing.T) {
	svc, _ := newService(t)
	item := mustCreate(t, svc, "alpha")
	err := svc.UpdateFields(context.Background(), item.ID, map[string]any{
		"paused":            true,
		"pause_reason":      "rebalancing",
		"allocated_capital": 250.0,
		"strategy_type":     "meanrev",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := svc.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Paused || got.PauseReason == nil || *got.PauseReason != "rebalancing" {
		t.Fatalf("paused = %v, reason = %v, want true/rebalancing", got.Paused, got.PauseReason)
	}
	if !got.AllocatedCapital.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("capital = %s, want 250", got.AllocatedCapital)
	}
	if got.StrategyType != "meanrev" {
		t.Fatalf("strategy_type = %q, want meanrev", got.StrategyType)
	}
}

func TestUpdateFieldsCannotClearSafetyFlags(t *testing.T) {
	svc, _ := newService(t)
	item := mustCreate(t, svc, "alpha")
	if err := svc.AutoDisable(context.Background(), item.ID, "limit tripped"); err != nil {
		t.Fatalf("auto-disable: %v", err)
	}
	err := svc.UpdateFields(context.Background(), item.ID, map[string]any{"enabled": true})
	if !apperr.IsValidation(err) {
		t.Fatalf("enable past auto_disabled error = %v, want validation", err)
	}

	if err := svc.EmergencyDisable(context.Background(), item.ID, "kill switch"); err != nil {
		t.Fatalf("emergency-disable: %v", err)
	}
	err = svc.UpdateFields(context.Background(), item.ID, map[string]any{"enabled": true})
	if !apperr.IsValidation(err) {
		t.Fatalf("enable past emergency_disabled error = %v, want validation", err)
	}
}

func TestEnableIsTheOnlyWayOut(t *testing.T) {
	svc, _ := newService(t)
	item := mustCreate(t, svc, "alpha")
	if err := svc.AutoDisable(context.Background(), item.ID, "daily loss"); err != nil {
		t.Fatalf("auto-disable: %v", err)
	}
	if err := svc.EmergencyDisable(context.Background(), item.ID, "kill switch"); err != nil {
		t.Fatalf("emergency-disable: %v", err)
	}

	if err := svc.Enable(context.Background(), "alpha"); err != nil {
		t.Fatalf("enable: %v", err)
	}
	got, err := svc.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Enabled || got.AutoDisabled || got.EmergencyDisabled {
		t.Fatalf("after enable: enabled=%v auto=%v emergency=%v", got.Enabled, got.AutoDisabled, got.EmergencyDisabled)
	}
	if got.DisableReason != nil {
		t.Fatalf("disable reason not cleared: %q", *got.DisableReason)
	}
}

func TestUpdateRetriesExhaustConflict(t *testing.T) {
	svc, store := newService(t)
	item := mustCreate(t, svc, "alpha")
	store.FailStrategyUpdate = map[uint64]error{item.ID: repository.ErrVersionConflict}

	err := svc.SetPaused(context.Background(), item.ID, true, "maintenance")
	if !apperr.IsConflict(err) {
		t.Fatalf("exhausted retries error = %v, want conflict", err)
	}
}

func TestSetStageValidatesStage(t *testing.T) {
	svc, _ := newService(t)
	item := mustCreate(t, svc, "alpha")
	err := svc.UpdateFields(context.Background(), item.ID, map[string]any{"trading_stage": "warp_drive"})
	if !apperr.IsValidation(err) {
		t.Fatalf("invalid stage error = %v, want validation", err)
	}
}

func TestGetByNameNotFound(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.GetByName(context.Background(), "ghost"); !apperr.IsNotFound(err) {
		t.Fatalf("missing strategy error = %v, want not found", err)
	}
}
