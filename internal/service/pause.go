package service

import (
	"context"

	"go.uber.org/zap"

	"stratlab/internal/apperr"
	"stratlab/internal/registry"
)

// PauseManager suspends and resumes individual strategies. Pausing is the
// reversible operator action; it never touches the one-way disable flags.
type PauseManager struct {
	Registry *registry.Service
	Logger   *zap.Logger
}

func (p *PauseManager) Pause(ctx context.Context, name, reason string) error {
	if p == nil || p.Registry == nil {
		return apperr.Persistence("pause manager not wired", nil)
	}
	strat, err := p.Registry.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if strat.Paused {
		return apperr.AlreadyInState("strategy %q is already paused", name)
	}
	if err := p.Registry.SetPaused(ctx, strat.ID, true, reason); err != nil {
		return err
	}
	if p.Logger != nil {
		p.Logger.Info("strategy paused",
			zap.String("strategy", name), zap.String("reason", reason))
	}
	return nil
}

func (p *PauseManager) Resume(ctx context.Context, name string) error {
	if p == nil || p.Registry == nil {
		return apperr.Persistence("pause manager not wired", nil)
	}
	strat, err := p.Registry.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if !strat.Paused {
		return apperr.AlreadyInState("strategy %q is not paused", name)
	}
	if err := p.Registry.SetPaused(ctx, strat.ID, false, ""); err != nil {
		return err
	}
	if p.Logger != nil {
		p.Logger.Info("strategy resumed", zap.String("strategy", name))
	}
	return nil
}
