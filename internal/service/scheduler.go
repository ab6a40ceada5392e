package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stratlab/internal/allocator"
	"stratlab/internal/apperr"
	"stratlab/internal/config"
	"stratlab/internal/graduation"
	"stratlab/internal/health"
	"stratlab/internal/killswitch"
	"stratlab/internal/registry"
)

// Supervisor is the periodic supervision tick: for every enabled strategy it
// runs the health check, then graduation, then redistributes the capital
// pool once. An active kill switch turns the whole tick into a no-op.
type Supervisor struct {
	Config     config.SchedulerConfig
	Registry   *registry.Service
	Health     *health.Monitor
	Graduation *graduation.Engine
	Allocator  *allocator.Allocator
	KillSwitch *killswitch.Manager
	Logger     *zap.Logger
}

func (s *Supervisor) strategyCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.Config.StrategyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// RunOnce executes one supervision tick. Per-strategy failures are logged
// with the strategy's identity and never stop the rest of the tick.
func (s *Supervisor) RunOnce(ctx context.Context) error {
	if s == nil || s.Registry == nil {
		return apperr.Persistence("supervisor not wired", nil)
	}

	active, err := s.KillSwitch.IsActive(ctx)
	if err != nil {
		return err
	}
	if active {
		if s.Logger != nil {
			s.Logger.Debug("kill switch active, supervision tick skipped")
		}
		return nil
	}

	strats, err := s.Registry.ListEnabled(ctx)
	if err != nil {
		return err
	}
	for _, strat := range strats {
		if err := ctx.Err(); err != nil {
			return err
		}
		sctx, cancel := s.strategyCtx(ctx)

		healthy := true
		if !strat.AutoDisabled {
			result, err := s.Health.CheckStrategy(sctx, strat)
			if err != nil {
				s.logStrategyErr("health check failed", strat.Name, err)
				cancel()
				continue
			}
			healthy = result.Status != health.StatusViolated
		}

		if healthy && s.Config.AutoGraduate && strat.Active() {
			if _, err := s.Graduation.Graduate(sctx, strat.Name); err != nil && !apperr.IsNotEligible(err) {
				s.logStrategyErr("graduation failed", strat.Name, err)
			}
		}
		cancel()
	}

	pool := decimal.NewFromFloat(s.Config.CapitalPool)
	if pool.IsPositive() {
		if _, err := s.Allocator.AllocateCapital(ctx, pool); err != nil && !apperr.IsNotEligible(err) {
			if s.Logger != nil {
				s.Logger.Error("capital allocation failed", zap.Error(err))
			}
		}
	}
	return nil
}

func (s *Supervisor) logStrategyErr(msg, name string, err error) {
	if s.Logger == nil {
		return
	}
	s.Logger.Error(msg, zap.String("strategy", name), zap.Error(err))
}
