// Package allocator splits a capital pool across the best-performing
// qualified strategies on a fixed 70/20/10 schedule.
package allocator

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stratlab/internal/apperr"
	"stratlab/internal/config"
	"stratlab/internal/models"
	"stratlab/internal/policy"
	"stratlab/internal/registry"
	"stratlab/internal/repository"
)

// Allocation shares for rank 1..3. Anything below rank 3 gets nothing.
var shares = []decimal.Decimal{
	decimal.NewFromFloat(0.70),
	decimal.NewFromFloat(0.20),
	decimal.NewFromFloat(0.10),
}

type Candidate struct {
	StrategyID   uint64  `json:"strategy_id"`
	StrategyName string  `json:"strategy_name"`
	Score        float64 `json:"score"`
	ReturnPct    float64 `json:"return_pct"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	WinRate      float64 `json:"win_rate"`
	MaxDrawdown  float64 `json:"max_drawdown"`
}

type Allocation struct {
	StrategyID   uint64          `json:"strategy_id"`
	StrategyName string          `json:"strategy_name"`
	Rank         int             `json:"rank"`
	Capital      decimal.Decimal `json:"capital"`
}

type Allocator struct {
	Config   config.AllocatorConfig
	Repo     repository.Repository
	Registry *registry.Service
	Logger   *zap.Logger
}

func (a *Allocator) thresholds() policy.Thresholds {
	return policy.Thresholds{
		MinReturnPct:   policy.FloatPtr(a.Config.MinReturnPct),
		MinSharpe:      policy.FloatPtr(a.Config.MinSharpe),
		MinWinRate:     policy.FloatPtr(a.Config.MinWinRate),
		MaxDrawdownPct: policy.FloatPtr(a.Config.MaxDrawdownPct),
		MinTrades:      policy.IntPtr(a.Config.MinTrades),
	}
}

// score collapses a snapshot into one comparable number. Sharpe is scaled
// by 10 so it lives on the same order of magnitude as the percentages.
func score(snap models.PerformanceSnapshot) float64 {
	return 0.4*snap.TotalReturnPct +
		0.3*(snap.SharpeRatio*10) +
		0.2*snap.WinRate +
		0.1*(100-snap.MaxDrawdown)
}

// qualified returns the active strategies that pass every allocation gate,
// scored and sorted best first. Strategies without a snapshot never qualify.
func (a *Allocator) qualified(ctx context.Context) ([]Candidate, error) {
	if a == nil || a.Repo == nil {
		return nil, apperr.Persistence("allocator not wired", nil)
	}
	strats, err := a.Repo.ListActiveStrategies(ctx)
	if err != nil {
		return nil, apperr.Persistence("list active strategies", err)
	}
	th := a.thresholds()
	out := make([]Candidate, 0, len(strats))
	for _, strat := range strats {
		snap, err := a.Repo.LatestSnapshot(ctx, strat.ID)
		if err != nil {
			return nil, apperr.Persistence("load latest snapshot", err)
		}
		if snap == nil {
			continue
		}
		if !policy.AllPass(policy.Evaluate(*snap, th)) {
			continue
		}
		out = append(out, Candidate{
			StrategyID:   strat.ID,
			StrategyName: strat.Name,
			Score:        score(*snap),
			ReturnPct:    snap.TotalReturnPct,
			SharpeRatio:  snap.SharpeRatio,
			WinRate:      snap.WinRate,
			MaxDrawdown:  snap.MaxDrawdown,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].StrategyID < out[j].StrategyID
	})
	return out, nil
}

// SelectBest returns the highest-scoring qualified strategy, or a
// not-eligible error when nothing currently qualifies.
func (a *Allocator) SelectBest(ctx context.Context) (*Candidate, error) {
	cands, err := a.qualified(ctx)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, apperr.NotEligible("no strategy qualifies for allocation")
	}
	best := cands[0]
	return &best, nil
}

// AllocateCapital splits pool across the top three qualified strategies
// (70/20/10) and persists each winner's allocated capital. Strategies
// outside the top three keep whatever capital they already have.
func (a *Allocator) AllocateCapital(ctx context.Context, pool decimal.Decimal) ([]Allocation, error) {
	cands, err := a.qualified(ctx)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, apperr.NotEligible("no strategy qualifies for allocation")
	}
	if len(cands) > len(shares) {
		cands = cands[:len(shares)]
	}
	allocs := make([]Allocation, 0, len(cands))
	for i, cand := range cands {
		capital := pool.Mul(shares[i])
		if err := a.Registry.SetAllocatedCapital(ctx, cand.StrategyID, capital); err != nil {
			return nil, err
		}
		allocs = append(allocs, Allocation{
			StrategyID:   cand.StrategyID,
			StrategyName: cand.StrategyName,
			Rank:         i + 1,
			Capital:      capital,
		})
		if a.Logger != nil {
			a.Logger.Info("capital allocated",
				zap.String("strategy", cand.StrategyName),
				zap.Int("rank", i+1),
				zap.String("capital", capital.StringFixed(2)),
			)
		}
	}
	return allocs, nil
}
