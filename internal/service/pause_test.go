package service

import (
	"context"
	"testing"

	"stratlab/internal/apperr"
	"stratlab/internal/registry"
	memoryrepository "stratlab/internal/repository/memory"
)

func newPauseManager(t *testing.T) (*PauseManager, *registry.Service) {
	t.Helper()
	store := memoryrepository.New()
	reg := &registry.Service{Repo: store}
	return &PauseManager{Registry: reg}, reg
}

func TestPauseAndResume(t *testing.T) {
	mgr, reg := newPauseManager(t)
	if _, err := reg.Create(context.Background(), "alpha", "momentum"); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := mgr.Pause(context.Background(), "alpha", "rebalancing"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	got, err := reg.GetByName(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Paused || got.PauseReason == nil || *got.PauseReason != "rebalancing" {
		t.Fatalf("after pause: paused=%v reason=%v", got.Paused, got.PauseReason)
	}

	if err := mgr.Resume(context.Background(), "alpha"); err != nil {
		t.Fatalf("resume: %v", err)
	}
	got, _ = reg.GetByName(context.Background(), "alpha")
	if got.Paused || got.PauseReason != nil {
		t.Fatalf("after resume: paused=%v reason=%v", got.Paused, got.PauseReason)
	}
}

func TestDoublePauseAndDoubleResume(t *testing.T) {
	mgr, reg := newPauseManager(t)
	if _, err := reg.Create(context.Background(), "alpha", "momentum"); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := mgr.Resume(context.Background(), "alpha"); !apperr.IsAlreadyInState(err) {
		t.Fatalf("resume-unpaused error = %v, want already in state", err)
	}
	if err := mgr.Pause(context.Background(), "alpha", "x"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := mgr.Pause(context.Background(), "alpha", "x"); !apperr.IsAlreadyInState(err) {
		t.Fatalf("double pause error = %v, want already in state", err)
	}
}

func TestPauseUnknownStrategy(t *testing.T) {
	mgr, _ := newPauseManager(t)
	if err := mgr.Pause(context.Background(), "ghost", ""); !apperr.IsNotFound(err) {
		t.Fatalf("pause unknown error = %v, want not found", err)
	}
}
