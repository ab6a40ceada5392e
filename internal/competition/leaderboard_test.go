package competition

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"stratlab/internal/apperr"
	"stratlab/internal/config"
	"stratlab/internal/models"
	memoryrepository "stratlab/internal/repository/memory"
)

func newEngine(t *testing.T) (*Engine, *memoryrepository.Store) {
	t.Helper()
	store := memoryrepository.New()
	return &Engine{
		Config: config.CompetitionConfig{StartingCapital: 10000},
		Repo:   store,
	}, store
}

func seed(t *testing.T, store *memoryrepository.Store, name string, returnPct *float64) *models.Strategy {
	t.Helper()
	item := &models.Strategy{Name: name, StrategyType: "momentum", Enabled: true}
	if err := store.CreateStrategy(context.Background(), item); err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
	if returnPct != nil {
		snap := &models.PerformanceSnapshot{
			StrategyID:     item.ID,
			PortfolioValue: decimal.NewFromInt(10000),
			TotalReturnPct: *returnPct,
		}
		if err := store.InsertSnapshot(context.Background(), snap); err != nil {
			t.Fatalf("snapshot %s: %v", name, err)
		}
	}
	return item
}

func pct(v float64) *float64 { return &v }

func mustFill(t *testing.T, engine *Engine, strategyID uint64, pnl int64) {
	t.Helper()
	if _, err := engine.RecordVirtualFill(context.Background(), strategyID, decimal.NewFromInt(pnl)); err != nil {
		t.Fatalf("fill %d for strategy %d: %v", pnl, strategyID, err)
	}
}

func TestLeaderboardTieBreak(t *testing.T) {
	engine, store := newEngine(t)
	a := seed(t, store, "A", pct(8.0))
	b := seed(t, store, "B", pct(8.0))
	seed(t, store, "C", pct(3.0))
	if a.ID >= b.ID {
		t.Fatalf("fixture order broken: A.id=%d B.id=%d", a.ID, b.ID)
	}

	entries, err := engine.GetLeaderboard(context.Background())
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.StrategyName)
	}
	want := []string{"A", "B", "C"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order = %v, want %v", names, want)
		}
	}
	for i, e := range entries {
		if e.Rank != uint64(i+1) {
			t.Fatalf("entry %d rank = %d", i, e.Rank)
		}
	}
}

func TestStatusLabels(t *testing.T) {
	tests := []struct {
		returnPct float64
		want      EntryStatus
	}{
		{8.0, StatusWinning},
		{5.0, StatusMarginal},
		{2.5, StatusMarginal},
		{0.0, StatusLosing},
		{-4.0, StatusLosing},
	}
	for _, tt := range tests {
		if got := statusFor(tt.returnPct); got != tt.want {
			t.Fatalf("statusFor(%v) = %s, want %s", tt.returnPct, got, tt.want)
		}
	}
}

func TestVirtualPortfolioForSilentStrategy(t *testing.T) {
	engine, store := newEngine(t)
	quiet := seed(t, store, "quiet", nil)

	mustFill(t, engine, quiet.ID, 500)
	mustFill(t, engine, quiet.ID, -200)

	entries, err := engine.GetLeaderboard(context.Background())
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if !e.Virtual {
		t.Fatalf("entry not marked virtual")
	}
	if !e.PortfolioValue.Equal(decimal.NewFromInt(10300)) {
		t.Fatalf("virtual value = %s, want 10300", e.PortfolioValue)
	}
	if e.ReturnPct != 3.0 {
		t.Fatalf("virtual return = %v, want 3.0", e.ReturnPct)
	}
	if e.WinRate != 50.0 || e.TotalTrades != 2 {
		t.Fatalf("virtual stats = %v%% over %d trades, want 50%% over 2", e.WinRate, e.TotalTrades)
	}
}

func TestSilentStrategySitsAtStartingCapital(t *testing.T) {
	engine, store := newEngine(t)
	seed(t, store, "idle", nil)

	entries, err := engine.GetLeaderboard(context.Background())
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	e := entries[0]
	if !e.Virtual || !e.PortfolioValue.Equal(decimal.NewFromInt(10000)) || e.ReturnPct != 0 {
		t.Fatalf("idle entry = %+v, want virtual at 10000 / 0%%", e)
	}
}

func TestVirtualBooksRebuildFromSnapshotStore(t *testing.T) {
	engine, store := newEngine(t)
	quiet := seed(t, store, "quiet", nil)
	mustFill(t, engine, quiet.ID, 500)
	mustFill(t, engine, quiet.ID, -200)

	// A fresh engine over the same store stands in for a process restart:
	// the book state must come back from persisted snapshots alone.
	restarted := &Engine{Config: engine.Config, Repo: store}
	mustFill(t, restarted, quiet.ID, 200)

	entries, err := restarted.GetLeaderboard(context.Background())
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	e := entries[0]
	if !e.PortfolioValue.Equal(decimal.NewFromInt(10500)) {
		t.Fatalf("rebuilt value = %s, want 10500", e.PortfolioValue)
	}
	if e.TotalTrades != 3 {
		t.Fatalf("rebuilt trades = %d, want 3", e.TotalTrades)
	}
	if e.WinRate <= 66.0 || e.WinRate >= 67.0 {
		t.Fatalf("rebuilt win rate = %v, want ~66.7", e.WinRate)
	}
}

func TestLiveSnapshotBlocksVirtualFills(t *testing.T) {
	engine, store := newEngine(t)
	strat := seed(t, store, "mixed", pct(1.0))

	if _, err := engine.RecordVirtualFill(context.Background(), strat.ID, decimal.NewFromInt(9000)); !apperr.IsNotEligible(err) {
		t.Fatalf("fill against live strategy error = %v, want not eligible", err)
	}

	entries, err := engine.GetLeaderboard(context.Background())
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if entries[0].Virtual {
		t.Fatalf("strategy with a live snapshot marked virtual")
	}
	if entries[0].ReturnPct != 1.0 {
		t.Fatalf("return = %v, want the snapshot's 1.0", entries[0].ReturnPct)
	}
}

func TestCompetitionSummary(t *testing.T) {
	engine, store := newEngine(t)
	seed(t, store, "A", pct(8.0))
	seed(t, store, "B", pct(2.0))

	summary, err := engine.GetCompetitionSummary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.ActiveStrategies != 2 {
		t.Fatalf("active = %d, want 2", summary.ActiveStrategies)
	}
	if summary.MeanReturnPct != 5.0 {
		t.Fatalf("mean = %v, want 5.0", summary.MeanReturnPct)
	}
	if summary.Leader != "A" {
		t.Fatalf("leader = %q, want A", summary.Leader)
	}
}
