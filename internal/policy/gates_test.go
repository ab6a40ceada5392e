package policy

import (
	"testing"

	"stratlab/internal/models"
)

func TestEvaluateComparisonConventions(t *testing.T) {
	snap := models.PerformanceSnapshot{
		TotalReturnPct: 5.0,
		SharpeRatio:    1.5,
		WinRate:        55.0,
		MaxDrawdown:    15.0,
		TotalTrades:    50,
	}
	tests := []struct {
		name string
		th   Thresholds
		key  string
		want bool
	}{
		{"return equal fails", Thresholds{MinReturnPct: FloatPtr(5.0)}, GateReturnPct, false},
		{"return above passes", Thresholds{MinReturnPct: FloatPtr(4.9)}, GateReturnPct, true},
		{"sharpe equal fails", Thresholds{MinSharpe: FloatPtr(1.5)}, GateSharpe, false},
		{"win rate equal fails", Thresholds{MinWinRate: FloatPtr(55.0)}, GateWinRate, false},
		{"drawdown equal fails", Thresholds{MaxDrawdownPct: FloatPtr(15.0)}, GateMaxDrawdown, false},
		{"drawdown below passes", Thresholds{MaxDrawdownPct: FloatPtr(15.1)}, GateMaxDrawdown, true},
		{"trades equal passes", Thresholds{MinTrades: IntPtr(50)}, GateMinTrades, true},
		{"trades below fails", Thresholds{MinTrades: IntPtr(51)}, GateMinTrades, false},
	}
	for _, tt := range tests {
		got := Evaluate(snap, tt.th)
		if len(got) != 1 {
			t.Fatalf("%s: expected one gate, got %v", tt.name, got)
		}
		if got[tt.key] != tt.want {
			t.Fatalf("%s: gate %s = %v, want %v", tt.name, tt.key, got[tt.key], tt.want)
		}
	}
}

func TestEvaluateSkipsNilThresholds(t *testing.T) {
	got := Evaluate(models.PerformanceSnapshot{}, Thresholds{})
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestAllPass(t *testing.T) {
	if !AllPass(map[string]bool{}) {
		t.Fatalf("empty map should pass")
	}
	if !AllPass(map[string]bool{"a": true, "b": true}) {
		t.Fatalf("all-true map should pass")
	}
	if AllPass(map[string]bool{"a": true, "b": false}) {
		t.Fatalf("one false gate should fail")
	}
}
