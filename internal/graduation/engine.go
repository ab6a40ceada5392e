// Package graduation moves strategies up the capital ladder
// backtest -> paper -> micro_live -> mini_live -> full_live, one stage at a
// time, once duration and performance gates are met.
package graduation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stratlab/internal/apperr"
	"stratlab/internal/config"
	"stratlab/internal/models"
	"stratlab/internal/policy"
	"stratlab/internal/registry"
	"stratlab/internal/repository"
)

// RequirementMinAge keys the age gate in the eligibility report, alongside
// the snapshot gate keys from the policy package.
const RequirementMinAge = "min_age_days"

type Eligibility struct {
	StrategyName    string              `json:"strategy_name"`
	CurrentStage    models.TradingStage `json:"current_stage"`
	NextStage       models.TradingStage `json:"next_stage,omitempty"`
	ReadyForNext    bool                `json:"ready_for_next"`
	RequirementsMet map[string]bool     `json:"requirements_met"`
	HasSnapshot     bool                `json:"has_snapshot"`
}

type stageGate struct {
	minAgeDays int
	thresholds policy.Thresholds
}

type Engine struct {
	Config   config.GraduationConfig
	Repo     repository.Repository
	Registry *registry.Service
	Logger   *zap.Logger

	// Now is swappable for tests; defaults to time.Now UTC.
	Now func() time.Time
}

func (e *Engine) now() time.Time {
	if e != nil && e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

// gateFor returns the exit gate of the given stage, or ok=false for the
// terminal stage.
func (e *Engine) gateFor(stage models.TradingStage) (stageGate, bool) {
	switch stage {
	case models.StageBacktest:
		return stageGate{
			minAgeDays: e.Config.BacktestMinAgeDays,
			thresholds: policy.Thresholds{
				MinTrades: policy.IntPtr(e.Config.BacktestMinTrades),
			},
		}, true
	case models.StagePaper:
		return stageGate{
			minAgeDays: 30,
			thresholds: policy.Thresholds{
				MinReturnPct:   policy.FloatPtr(5.0),
				MinSharpe:      policy.FloatPtr(1.5),
				MinWinRate:     policy.FloatPtr(55.0),
				MaxDrawdownPct: policy.FloatPtr(15.0),
				MinTrades:      policy.IntPtr(50),
			},
		}, true
	case models.StageMicroLive:
		return stageGate{
			thresholds: policy.Thresholds{
				MinReturnPct: policy.FloatPtr(3.0),
				MinSharpe:    policy.FloatPtr(1.0),
				MinTrades:    policy.IntPtr(10),
			},
		}, true
	case models.StageMiniLive:
		return stageGate{
			thresholds: policy.Thresholds{
				MinReturnPct: policy.FloatPtr(4.0),
				MinSharpe:    policy.FloatPtr(1.2),
				MinTrades:    policy.IntPtr(20),
			},
		}, true
	default:
		return stageGate{}, false
	}
}

// entryCapital is the fixed capital assigned when a strategy enters stage.
func (e *Engine) entryCapital(stage models.TradingStage) decimal.Decimal {
	switch stage {
	case models.StagePaper:
		return decimal.NewFromFloat(e.Config.PaperCapital)
	case models.StageMicroLive:
		return decimal.NewFromFloat(e.Config.MicroLiveCapital)
	case models.StageMiniLive:
		return decimal.NewFromFloat(e.Config.MiniLiveCapital)
	case models.StageFullLive:
		return decimal.NewFromFloat(e.Config.FullLiveCapital)
	default:
		return decimal.Zero
	}
}

// CheckEligibility evaluates every gate for the strategy's current stage and
// reports each result, so a blocked caller can see exactly which gate failed.
// Unlike the health monitor there is no first-failure short-circuit here.
func (e *Engine) CheckEligibility(ctx context.Context, name string) (*Eligibility, error) {
	if e == nil || e.Repo == nil || e.Registry == nil {
		return nil, apperr.Persistence("graduation engine not wired", nil)
	}
	strat, err := e.Registry.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	out := &Eligibility{
		StrategyName:    strat.Name,
		CurrentStage:    strat.TradingStage,
		RequirementsMet: map[string]bool{},
	}
	gate, ok := e.gateFor(strat.TradingStage)
	if !ok {
		// Terminal stage: nothing to graduate to.
		return out, nil
	}
	next, ok := models.NextStage(strat.TradingStage)
	if !ok {
		return out, nil
	}
	out.NextStage = next

	if gate.minAgeDays > 0 {
		out.RequirementsMet[RequirementMinAge] = strat.AgeDays(e.now()) >= gate.minAgeDays
	}

	snap, err := e.Repo.LatestSnapshot(ctx, strat.ID)
	if err != nil {
		return nil, apperr.Persistence("load latest snapshot", err)
	}
	if snap != nil {
		out.HasSnapshot = true
		for key, passed := range policy.Evaluate(*snap, gate.thresholds) {
			out.RequirementsMet[key] = passed
		}
	} else {
		// No measurement yet: every snapshot gate fails closed.
		for key := range policy.Evaluate(models.PerformanceSnapshot{}, gate.thresholds) {
			out.RequirementsMet[key] = false
		}
	}

	out.ReadyForNext = policy.AllPass(out.RequirementsMet)
	return out, nil
}

// Graduate advances the strategy exactly one stage and assigns that stage's
// entry capital. Eligibility is re-checked here; a stale client-side
// ready_for_next is never trusted.
func (e *Engine) Graduate(ctx context.Context, name string) (*Eligibility, error) {
	elig, err := e.CheckEligibility(ctx, name)
	if err != nil {
		return nil, err
	}
	if elig.NextStage == "" {
		return nil, apperr.NotEligible("strategy %q is already at the terminal stage", name)
	}
	if !elig.ReadyForNext {
		return nil, apperr.NotEligible("strategy %q has unmet graduation requirements", name)
	}

	strat, err := e.Registry.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	capital := e.entryCapital(elig.NextStage)
	if err := e.Registry.SetStage(ctx, strat.ID, elig.NextStage, capital); err != nil {
		return nil, err
	}
	if e.Logger != nil {
		e.Logger.Info("strategy graduated",
			zap.String("strategy", strat.Name),
			zap.String("from", string(elig.CurrentStage)),
			zap.String("to", string(elig.NextStage)),
			zap.String("capital", capital.StringFixed(2)),
		)
	}
	return elig, nil
}
