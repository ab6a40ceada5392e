package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PerformanceSnapshot is one immutable, timestamped performance sample for a
// strategy, written by the external metrics producer or, for strategies with
// no live data yet, by the virtual-fill simulator. Rows are append-only;
// every policy component treats the latest row as the sole source of truth
// about a strategy's recent behavior.
type PerformanceSnapshot struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	StrategyID uint64    `gorm:"not null;index:idx_snapshot_strategy_ts,priority:1"`
	Timestamp  time.Time `gorm:"type:timestamptz;not null;index:idx_snapshot_strategy_ts,priority:2,sort:desc"`

	PortfolioValue decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	DailyPnL       decimal.Decimal `gorm:"column:daily_pnl;type:numeric(30,10);not null;default:0"`
	TotalExposure  decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	AvgTradeProfit decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	TotalReturnPct float64 `gorm:"not null;default:0"`
	SharpeRatio    float64 `gorm:"not null;default:0"`
	SortinoRatio   float64 `gorm:"not null;default:0"`
	MaxDrawdown    float64 `gorm:"not null;default:0"`
	Volatility     float64 `gorm:"not null;default:0"`
	WinRate        float64 `gorm:"not null;default:0"`

	TotalTrades   int `gorm:"not null;default:0"`
	OpenPositions int `gorm:"not null;default:0"`

	// Simulated marks rows produced by the virtual-fill simulator rather
	// than the live metrics producer.
	Simulated bool `gorm:"not null;default:false;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (PerformanceSnapshot) TableName() string {
	return "strategy_performance_snapshots"
}
