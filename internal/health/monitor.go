// Package health implements the automatic, one-way risk disabling of
// strategies. Once a strategy trips a limit it stays auto-disabled until a
// human re-enables it through the registry; no snapshot, however good, can
// resurrect it.
package health

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stratlab/internal/config"
	"stratlab/internal/models"
	"stratlab/internal/policy"
	"stratlab/internal/registry"
	"stratlab/internal/repository"
)

type Status string

const (
	StatusOK       Status = "ok"
	StatusViolated Status = "violated"
	StatusNoData   Status = "no_data"
)

type CheckResult struct {
	StrategyID   uint64 `json:"strategy_id"`
	StrategyName string `json:"strategy_name"`
	Status       Status `json:"status"`
	Rule         string `json:"rule,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

type Monitor struct {
	Config   config.HealthConfig
	Repo     repository.Repository
	Registry *registry.Service
	Logger   *zap.Logger
}

// CheckStrategy evaluates the risk rules against the latest snapshot, in
// fixed order, stopping at the first violation. A strategy with no snapshot
// yet is reported ok: what was never measured cannot be judged, which keeps
// brand-new strategies from tripping limits on day one.
func (m *Monitor) CheckStrategy(ctx context.Context, strat models.Strategy) (CheckResult, error) {
	result := CheckResult{
		StrategyID:   strat.ID,
		StrategyName: strat.Name,
		Status:       StatusOK,
	}
	if m == nil || m.Repo == nil {
		return result, nil
	}
	snap, err := m.Repo.LatestSnapshot(ctx, strat.ID)
	if err != nil {
		return result, err
	}
	if snap == nil {
		result.Status = StatusNoData
		return result, nil
	}

	rule, reason := m.firstViolation(*snap)
	if rule == "" {
		return result, nil
	}
	result.Status = StatusViolated
	result.Rule = rule
	result.Reason = reason

	if m.Registry != nil {
		if err := m.Registry.AutoDisable(ctx, strat.ID, reason); err != nil {
			return result, err
		}
	}
	if m.Logger != nil {
		m.Logger.Warn("strategy auto-disabled",
			zap.String("strategy", strat.Name),
			zap.String("rule", rule),
			zap.String("reason", reason),
		)
	}
	return result, nil
}

// firstViolation applies the rules in their fixed order: daily loss, then
// drawdown, then win rate. The win-rate rule stays silent until the sample
// is big enough to mean anything.
func (m *Monitor) firstViolation(snap models.PerformanceSnapshot) (rule, reason string) {
	if snap.DailyPnL.IsNegative() && snap.PortfolioValue.IsPositive() {
		lossPct, _ := snap.DailyPnL.Abs().
			Div(snap.PortfolioValue).
			Mul(decimal.NewFromInt(100)).
			Float64()
		if lossPct > m.Config.MaxDailyLossPct {
			return "daily_loss", fmt.Sprintf("Daily loss %.2f%% exceeds limit %.1f%%",
				lossPct, m.Config.MaxDailyLossPct)
		}
	}

	// Violations here are strict "beyond the limit": sitting exactly on a
	// limit is still ok, which is why drawdown and win rate are compared
	// directly rather than through the pass-gates.
	gates := policy.Evaluate(snap, policy.Thresholds{
		MinTrades: policy.IntPtr(m.Config.MinTradesForWinRate),
	})
	if snap.MaxDrawdown > m.Config.MaxDrawdownPct {
		return "max_drawdown", fmt.Sprintf("Max drawdown %.2f%% exceeds limit %.1f%%",
			snap.MaxDrawdown, m.Config.MaxDrawdownPct)
	}
	if gates[policy.GateMinTrades] && snap.WinRate < m.Config.MinWinRate {
		return "win_rate", fmt.Sprintf("Win rate %.2f%% below minimum %.1f%% over %d trades",
			snap.WinRate, m.Config.MinWinRate, snap.TotalTrades)
	}
	return "", ""
}

// Summary reports current health state for every strategy, for the
// dashboard's health view. It never mutates anything.
func (m *Monitor) Summary(ctx context.Context) ([]CheckResult, error) {
	if m == nil || m.Repo == nil {
		return nil, nil
	}
	strategies, err := m.Repo.ListStrategies(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CheckResult, 0, len(strategies))
	for _, strat := range strategies {
		entry := CheckResult{
			StrategyID:   strat.ID,
			StrategyName: strat.Name,
			Status:       StatusOK,
		}
		if strat.AutoDisabled {
			entry.Status = StatusViolated
			if strat.DisableReason != nil {
				entry.Reason = *strat.DisableReason
			}
			out = append(out, entry)
			continue
		}
		snap, err := m.Repo.LatestSnapshot(ctx, strat.ID)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			entry.Status = StatusNoData
			out = append(out, entry)
			continue
		}
		if rule, reason := m.firstViolation(*snap); rule != "" {
			entry.Status = StatusViolated
			entry.Rule = rule
			entry.Reason = reason
		}
		out = append(out, entry)
	}
	return out, nil
}
