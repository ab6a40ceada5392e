// Package policy holds the numeric gate evaluation shared by the health
// monitor, the graduation engine and the capital selector, so the three
// components cannot drift apart in how they compare a snapshot against
// thresholds.
package policy

import (
	"stratlab/internal/models"
)

// Gate result keys.
const (
	GateReturnPct   = "return_pct"
	GateSharpe      = "sharpe_ratio"
	GateWinRate     = "win_rate"
	GateMaxDrawdown = "max_drawdown"
	GateMinTrades   = "min_trades"
)

// Thresholds is one set of numeric gates. Nil members are not evaluated and
// do not appear in the result map.
//
// Comparison conventions: float minimums are strict (value must exceed the
// threshold), MaxDrawdownPct is strict (value must stay below), MinTrades is
// inclusive.
type Thresholds struct {
	MinReturnPct   *float64
	MinSharpe      *float64
	MinWinRate     *float64
	MaxDrawdownPct *float64
	MinTrades      *int
}

// Evaluate checks snap against every set threshold and returns one boolean
// per gate. All gates are evaluated; callers decide whether the first
// failure wins or the whole map is reported.
func Evaluate(snap models.PerformanceSnapshot, th Thresholds) map[string]bool {
	out := map[string]bool{}
	if th.MinReturnPct != nil {
		out[GateReturnPct] = snap.TotalReturnPct > *th.MinReturnPct
	}
	if th.MinSharpe != nil {
		out[GateSharpe] = snap.SharpeRatio > *th.MinSharpe
	}
	if th.MinWinRate != nil {
		out[GateWinRate] = snap.WinRate > *th.MinWinRate
	}
	if th.MaxDrawdownPct != nil {
		out[GateMaxDrawdown] = snap.MaxDrawdown < *th.MaxDrawdownPct
	}
	if th.MinTrades != nil {
		out[GateMinTrades] = snap.TotalTrades >= *th.MinTrades
	}
	return out
}

func AllPass(results map[string]bool) bool {
	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}

func FloatPtr(v float64) *float64 { return &v }
func IntPtr(v int) *int           { return &v }
