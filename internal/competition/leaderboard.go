// Package competition ranks supervised strategies against each other.
//
// Strategies that report live snapshots are ranked on their latest real
// numbers. A strategy with no live data yet competes through a virtual
// portfolio seeded at a fixed starting capital: every simulated fill is
// persisted back to the snapshot store as a simulated snapshot, so the
// in-memory books are just a running cache and rebuild themselves from
// stored history after a restart.
package competition

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stratlab/internal/apperr"
	"stratlab/internal/config"
	"stratlab/internal/models"
	"stratlab/internal/repository"
)

type EntryStatus string

const (
	StatusWinning  EntryStatus = "WINNING"
	StatusMarginal EntryStatus = "MARGINAL"
	StatusLosing   EntryStatus = "LOSING"
)

// statusFor is a display label only, nothing downstream branches on it.
func statusFor(returnPct float64) EntryStatus {
	switch {
	case returnPct > 5.0:
		return StatusWinning
	case returnPct > 0:
		return StatusMarginal
	default:
		return StatusLosing
	}
}

type Entry struct {
	Rank           uint64          `json:"rank"`
	StrategyID     uint64          `json:"strategy_id"`
	StrategyName   string          `json:"strategy_name"`
	TradingStage   string          `json:"trading_stage"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	ReturnPct      float64         `json:"return_pct"`
	WinRate        float64         `json:"win_rate"`
	TotalTrades    int             `json:"total_trades"`
	Status         EntryStatus     `json:"status"`
	Virtual        bool            `json:"virtual"`
}

type Summary struct {
	ActiveStrategies int     `json:"active_strategies"`
	Entries          int     `json:"entries"`
	MeanReturnPct    float64 `json:"mean_return_pct"`
	Leader           string  `json:"leader,omitempty"`
}

// virtualBook caches the running counters of one simulated portfolio. The
// persisted simulated snapshots are the source of truth; a book missing from
// the cache is reloaded from the latest stored row.
type virtualBook struct {
	Cash   decimal.Decimal
	Trades int
	Wins   int
	LastAt time.Time
}

type Engine struct {
	Config config.CompetitionConfig
	Repo   repository.Repository
	Logger *zap.Logger

	mu    sync.Mutex
	books map[uint64]*virtualBook
}

func (e *Engine) starting() decimal.Decimal {
	return decimal.NewFromFloat(e.Config.StartingCapital)
}

// loadBookLocked returns the cached book for a strategy, seeding it from the
// latest stored simulated snapshot when the cache is cold. Caller holds e.mu.
func (e *Engine) loadBookLocked(ctx context.Context, strategyID uint64) (*virtualBook, error) {
	if e.books == nil {
		e.books = map[uint64]*virtualBook{}
	}
	if b, ok := e.books[strategyID]; ok {
		return b, nil
	}
	b := &virtualBook{Cash: e.starting()}
	simulated := true
	rows, err := e.Repo.ListSnapshots(ctx, repository.ListSnapshotsParams{
		StrategyID: &strategyID,
		Simulated:  &simulated,
		Limit:      1,
	})
	if err != nil {
		return nil, apperr.Persistence("load virtual book", err)
	}
	if len(rows) > 0 {
		last := rows[0]
		b.Cash = last.PortfolioValue
		b.Trades = last.TotalTrades
		b.Wins = int(math.Round(last.WinRate / 100 * float64(last.TotalTrades)))
		b.LastAt = last.Timestamp
	}
	e.books[strategyID] = b
	return b, nil
}

// RecordVirtualFill applies one simulated fill to a strategy's virtual book
// and persists the resulting state as a simulated snapshot. Strategies that
// already report live snapshots reject fills; the simulation only stands in
// where no real data flows yet.
func (e *Engine) RecordVirtualFill(ctx context.Context, strategyID uint64, pnl decimal.Decimal) (*models.PerformanceSnapshot, error) {
	if e == nil || e.Repo == nil {
		return nil, apperr.Persistence("competition engine not wired", nil)
	}
	if strategyID == 0 {
		return nil, apperr.Validation("strategy id required")
	}
	live := false
	liveRows, err := e.Repo.ListSnapshots(ctx, repository.ListSnapshotsParams{
		StrategyID: &strategyID,
		Simulated:  &live,
		Limit:      1,
	})
	if err != nil {
		return nil, apperr.Persistence("check live snapshots", err)
	}
	if len(liveRows) > 0 {
		return nil, apperr.NotEligible("strategy %d reports live snapshots; virtual fills are disabled", strategyID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.loadBookLocked(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	b.Cash = b.Cash.Add(pnl)
	b.Trades++
	if pnl.IsPositive() {
		b.Wins++
	}
	// Strictly increasing timestamps keep "latest row" unambiguous even for
	// fills landing in the same instant.
	ts := time.Now().UTC()
	if !ts.After(b.LastAt) {
		ts = b.LastAt.Add(time.Microsecond)
	}
	b.LastAt = ts

	snap := &models.PerformanceSnapshot{
		StrategyID:     strategyID,
		Timestamp:      ts,
		PortfolioValue: b.Cash,
		DailyPnL:       pnl,
		TotalReturnPct: e.returnPct(b.Cash),
		WinRate:        winRate(b.Wins, b.Trades),
		TotalTrades:    b.Trades,
		Simulated:      true,
	}
	if err := e.Repo.InsertSnapshot(ctx, snap); err != nil {
		return nil, apperr.Persistence("persist simulated snapshot", err)
	}
	if e.Logger != nil {
		e.Logger.Debug("virtual fill recorded",
			zap.Uint64("strategy_id", strategyID),
			zap.String("pnl", pnl.String()),
			zap.Int("trades", b.Trades))
	}
	return snap, nil
}

func (e *Engine) returnPct(value decimal.Decimal) float64 {
	start := e.starting()
	if !start.IsPositive() {
		return 0
	}
	out, _ := value.Sub(start).Div(start).Mul(decimal.NewFromInt(100)).Float64()
	return out
}

func winRate(wins, trades int) float64 {
	if trades <= 0 {
		return 0
	}
	return float64(wins) / float64(trades) * 100
}

// GetLeaderboard ranks every active strategy, descending by return with ties
// broken by ascending strategy id so repeated calls are stable.
func (e *Engine) GetLeaderboard(ctx context.Context) ([]Entry, error) {
	if e == nil || e.Repo == nil {
		return nil, apperr.Persistence("competition engine not wired", nil)
	}
	strats, err := e.Repo.ListActiveStrategies(ctx)
	if err != nil {
		return nil, apperr.Persistence("list active strategies", err)
	}

	entries := make([]Entry, 0, len(strats))
	for _, strat := range strats {
		snap, err := e.Repo.LatestSnapshot(ctx, strat.ID)
		if err != nil {
			return nil, apperr.Persistence("load latest snapshot", err)
		}
		entry := Entry{
			StrategyID:   strat.ID,
			StrategyName: strat.Name,
			TradingStage: string(strat.TradingStage),
		}
		if snap != nil {
			entry.PortfolioValue = snap.PortfolioValue
			entry.ReturnPct = snap.TotalReturnPct
			entry.WinRate = snap.WinRate
			entry.TotalTrades = snap.TotalTrades
			entry.Virtual = snap.Simulated
		} else {
			// Seeded but never filled: still sits at starting capital.
			entry.Virtual = true
			entry.PortfolioValue = e.starting()
		}
		entry.Status = statusFor(entry.ReturnPct)
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ReturnPct != entries[j].ReturnPct {
			return entries[i].ReturnPct > entries[j].ReturnPct
		}
		return entries[i].StrategyID < entries[j].StrategyID
	})
	for i := range entries {
		entries[i].Rank = uint64(i + 1)
	}
	return entries, nil
}

// GetCompetitionSummary aggregates the current leaderboard.
func (e *Engine) GetCompetitionSummary(ctx context.Context) (*Summary, error) {
	entries, err := e.GetLeaderboard(ctx)
	if err != nil {
		return nil, err
	}
	out := &Summary{ActiveStrategies: len(entries), Entries: len(entries)}
	if len(entries) == 0 {
		return out, nil
	}
	var sum float64
	for _, entry := range entries {
		sum += entry.ReturnPct
	}
	out.MeanReturnPct = sum / float64(len(entries))
	out.Leader = entries[0].StrategyName
	return out, nil
}
