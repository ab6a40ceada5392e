package graduation

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stratlab/internal/apperr"
	"stratlab/internal/config"
	"stratlab/internal/models"
	"stratlab/internal/policy"
	"stratlab/internal/registry"
	memoryrepository "stratlab/internal/repository/memory"
)

func testConfig() config.GraduationConfig {
	return config.GraduationConfig{
		PaperCapital:       10000,
		MicroLiveCapital:   50,
		MiniLiveCapital:    200,
		FullLiveCapital:    1000,
		BacktestMinAgeDays: 7,
		BacktestMinTrades:  10,
	}
}

type fixture struct {
	engine *Engine
	store  *memoryrepository.Store
	reg    *registry.Service
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memoryrepository.New()
	reg := &registry.Service{Repo: store}
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	return &fixture{
		engine: &Engine{
			Config:   testConfig(),
			Repo:     store,
			Registry: reg,
			Now:      func() time.Time { return now },
		},
		store: store,
		reg:   reg,
		now:   now,
	}
}

func (f *fixture) seed(t *testing.T, name string, stage models.TradingStage, ageDays int) *models.Strategy {
	t.Helper()
	item := &models.Strategy{
		Name:         name,
		StrategyType: "momentum",
		Enabled:      true,
		TradingStage: stage,
		CreatedAt:    f.now.AddDate(0, 0, -ageDays),
	}
	if err := f.store.CreateStrategy(context.Background(), item); err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
	return item
}

func (f *fixture) snapshot(t *testing.T, strategyID uint64, snap models.PerformanceSnapshot) {
	t.Helper()
	snap.StrategyID = strategyID
	if snap.PortfolioValue.IsZero() {
		snap.PortfolioValue = decimal.NewFromInt(10000)
	}
	if err := f.store.InsertSnapshot(context.Background(), &snap); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
}

func TestPaperGraduationScenario(t *testing.T) {
	f := newFixture(t)
	strat := f.seed(t, "Beta", models.StagePaper, 31)
	f.snapshot(t, strat.ID, models.PerformanceSnapshot{
		TotalReturnPct: 6.0,
		SharpeRatio:    1.6,
		WinRate:        57.0,
		MaxDrawdown:    10.0,
		TotalTrades:    55,
	})

	elig, err := f.engine.CheckEligibility(context.Background(), "Beta")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !elig.ReadyForNext {
		t.Fatalf("not ready, requirements: %v", elig.RequirementsMet)
	}
	if elig.NextStage != models.StageMicroLive {
		t.Fatalf("next stage = %q, want micro_live", elig.NextStage)
	}

	if _, err := f.engine.Graduate(context.Background(), "Beta"); err != nil {
		t.Fatalf("graduate: %v", err)
	}
	got, err := f.reg.GetByID(context.Background(), strat.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TradingStage != models.StageMicroLive {
		t.Fatalf("stage = %q, want micro_live", got.TradingStage)
	}
	if !got.AllocatedCapital.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("capital = %s, want 50", got.AllocatedCapital)
	}
}

func TestGraduateAdvancesExactlyOneStage(t *testing.T) {
	f := newFixture(t)
	// Numbers good enough for every gate in the ladder.
	strat := f.seed(t, "beta", models.StagePaper, 120)
	f.snapshot(t, strat.ID, models.PerformanceSnapshot{
		TotalReturnPct: 20.0,
		SharpeRatio:    3.0,
		WinRate:        70.0,
		MaxDrawdown:    5.0,
		TotalTrades:    200,
	})
	if _, err := f.engine.Graduate(context.Background(), "beta"); err != nil {
		t.Fatalf("graduate: %v", err)
	}
	got, _ := f.reg.GetByID(context.Background(), strat.ID)
	if got.TradingStage != models.StageMicroLive {
		t.Fatalf("stage = %q, want micro_live after a single graduate call", got.TradingStage)
	}
}

func TestBacktestGate(t *testing.T) {
	f := newFixture(t)
	young := f.seed(t, "young", models.StageBacktest, 3)
	f.snapshot(t, young.ID, models.PerformanceSnapshot{TotalTrades: 40})

	elig, err := f.engine.CheckEligibility(context.Background(), "young")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if elig.ReadyForNext {
		t.Fatalf("3-day-old strategy should not graduate")
	}
	if elig.RequirementsMet[RequirementMinAge] {
		t.Fatalf("age gate passed for a 3-day-old strategy")
	}
	if !elig.RequirementsMet[policy.GateMinTrades] {
		t.Fatalf("trade gate should pass with 40 trades")
	}

	old := f.seed(t, "old", models.StageBacktest, 8)
	f.snapshot(t, old.ID, models.PerformanceSnapshot{TotalTrades: 10})
	if _, err := f.engine.Graduate(context.Background(), "old"); err != nil {
		t.Fatalf("graduate: %v", err)
	}
	got, _ := f.reg.GetByID(context.Background(), old.ID)
	if got.TradingStage != models.StagePaper {
		t.Fatalf("stage = %q, want paper", got.TradingStage)
	}
	if !got.AllocatedCapital.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("capital = %s, want 10000", got.AllocatedCapital)
	}
}

func TestGraduateNotEligible(t *testing.T) {
	f := newFixture(t)
	strat := f.seed(t, "beta", models.StagePaper, 31)
	f.snapshot(t, strat.ID, models.PerformanceSnapshot{
		TotalReturnPct: 6.0,
		SharpeRatio:    1.6,
		WinRate:        57.0,
		MaxDrawdown:    16.0, // over the 15% gate
		TotalTrades:    55,
	})
	if _, err := f.engine.Graduate(context.Background(), "beta"); !apperr.IsNotEligible(err) {
		t.Fatalf("graduate error = %v, want not eligible", err)
	}
	got, _ := f.reg.GetByID(context.Background(), strat.ID)
	if got.TradingStage != models.StagePaper {
		t.Fatalf("stage changed despite failed gates: %q", got.TradingStage)
	}
}

func TestTerminalStage(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "apex", models.StageFullLive, 365)
	elig, err := f.engine.CheckEligibility(context.Background(), "apex")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if elig.NextStage != "" || elig.ReadyForNext {
		t.Fatalf("terminal stage reported next=%q ready=%v", elig.NextStage, elig.ReadyForNext)
	}
	if _, err := f.engine.Graduate(context.Background(), "apex"); !apperr.IsNotEligible(err) {
		t.Fatalf("terminal graduate error = %v, want not eligible", err)
	}
}

func TestNoSnapshotFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "silent", models.StageBacktest, 30)
	elig, err := f.engine.CheckEligibility(context.Background(), "silent")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if elig.HasSnapshot {
		t.Fatalf("expected no snapshot")
	}
	if elig.ReadyForNext {
		t.Fatalf("strategy with no snapshot should never be ready")
	}
	if elig.RequirementsMet[policy.GateMinTrades] {
		t.Fatalf("snapshot gate passed with no snapshot")
	}
}
