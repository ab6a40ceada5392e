package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradingStage is the capital tier a strategy has graduated to.
type TradingStage string

const (
	StageBacktest  TradingStage = "backtest"
	StagePaper     TradingStage = "paper"
	StageMicroLive TradingStage = "micro_live"
	StageMiniLive  TradingStage = "mini_live"
	StageFullLive  TradingStage = "full_live"
)

// StageLadder is the promotion order. FullLive is terminal; demotion is an
// operator action outside this module.
var StageLadder = []TradingStage{
	StageBacktest,
	StagePaper,
	StageMicroLive,
	StageMiniLive,
	StageFullLive,
}

// NextStage returns the stage after s, or ok=false at the top of the ladder.
func NextStage(s TradingStage) (TradingStage, bool) {
	for i, stage := range StageLadder {
		if stage == s && i+1 < len(StageLadder) {
			return StageLadder[i+1], true
		}
	}
	return "", false
}

func ValidStage(s TradingStage) bool {
	for _, stage := range StageLadder {
		if stage == s {
			return true
		}
	}
	return false
}

// Strategy is one supervised trading strategy. The strategy itself is opaque
// here; this row carries only identity and control state.
type Strategy struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"type:varchar(50);uniqueIndex;not null"`
	StrategyType string `gorm:"type:varchar(30);not null;index"`

	Enabled      bool         `gorm:"not null;default:false;index"`
	TradingStage TradingStage `gorm:"type:varchar(20);not null;default:'backtest';index"`

	AllocatedCapital decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	AutoDisabled  bool    `gorm:"not null;default:false"`
	DisableReason *string `gorm:"type:text"`

	EmergencyDisabled bool `gorm:"not null;default:false"`

	Paused      bool    `gorm:"not null;default:false"`
	PauseReason *string `gorm:"type:text"`

	// Version guards every write against lost updates; see
	// Repository.UpdateStrategyFields.
	Version uint64 `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Strategy) TableName() string {
	return "strategies"
}

// Active reports whether the strategy may submit orders, ignoring the global
// kill switch which callers must check separately. Any single unfavorable
// flag wins; flags are never combined.
func (s Strategy) Active() bool {
	return s.Enabled && !s.AutoDisabled && !s.EmergencyDisabled && !s.Paused
}

// AgeDays is the whole days since creation, used by graduation gates.
func (s Strategy) AgeDays(now time.Time) int {
	if s.CreatedAt.IsZero() || now.Before(s.CreatedAt) {
		return 0
	}
	return int(now.Sub(s.CreatedAt).Hours() / 24)
}
