package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"stratlab/internal/competition"
	"stratlab/internal/graduation"
	"stratlab/internal/models"
	"stratlab/internal/registry"
	"stratlab/internal/repository"
	"stratlab/internal/service"
)

type StrategyHandler struct {
	Registry   *registry.Service
	Pause      *service.PauseManager
	Graduation *graduation.Engine
	Board      *competition.Engine
	Repo       repository.Repository
}

func (h *StrategyHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/strategies")
	group.GET("", h.list)
	group.POST("", h.create)
	group.GET("/:name", h.get)
	group.PATCH("/:name", h.update)
	group.POST("/:name/pause", h.pause)
	group.POST("/:name/resume", h.resume)
	group.POST("/:name/enable", h.enable)
	group.POST("/:name/disable", h.disable)
	group.GET("/:name/graduation", h.graduationStatus)
	group.POST("/:name/graduate", h.graduate)
	group.GET("/:name/snapshots", h.listSnapshots)
	group.POST("/:name/snapshots", h.ingestSnapshot)
	group.POST("/:name/fills", h.recordFill)
}

func strategyName(c *gin.Context) (string, bool) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		Error(c, http.StatusBadRequest, "name required", nil)
		return "", false
	}
	return name, true
}

func (h *StrategyHandler) list(c *gin.Context) {
	if h.Registry == nil {
		Error(c, http.StatusInternalServerError, "registry unavailable", nil)
		return
	}
	var (
		items []models.Strategy
		err   error
	)
	switch strings.TrimSpace(c.Query("filter")) {
	case "active":
		items, err = h.Registry.ListActive(c.Request.Context())
	case "enabled":
		items, err = h.Registry.ListEnabled(c.Request.Context())
	default:
		items, err = h.Registry.ListAll(c.Request.Context())
	}
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, map[string]any{"count": len(items)})
}

type createStrategyRequest struct {
	Name         string `json:"name" binding:"required"`
	StrategyType string `json:"strategy_type" binding:"required"`
}

func (h *StrategyHandler) create(c *gin.Context) {
	if h.Registry == nil {
		Error(c, http.StatusInternalServerError, "registry unavailable", nil)
		return
	}
	var req createStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	item, err := h.Registry.Create(c.Request.Context(), req.Name, req.StrategyType)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, apiResponse{Code: 0, Message: "ok", Data: item})
}

func (h *StrategyHandler) get(c *gin.Context) {
	if h.Registry == nil {
		Error(c, http.StatusInternalServerError, "registry unavailable", nil)
		return
	}
	name, ok := strategyName(c)
	if !ok {
		return
	}
	item, err := h.Registry.GetByName(c.Request.Context(), name)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, item, nil)
}

func (h *StrategyHandler) update(c *gin.Context) {
	if h.Registry == nil {
		Error(c, http.StatusInternalServerError, "registry unavailable", nil)
		return
	}
	name, ok := strategyName(c)
	if !ok {
		return
	}
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	item, err := h.Registry.GetByName(c.Request.Context(), name)
	if err != nil {
		Fail(c, err)
		return
	}
	if err := h.Registry.UpdateFields(c.Request.Context(), item.ID, fields); err != nil {
		Fail(c, err)
		return
	}
	updated, err := h.Registry.GetByID(c.Request.Context(), item.ID)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, updated, nil)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *StrategyHandler) pause(c *gin.Context) {
	if h.Pause == nil {
		Error(c, http.StatusInternalServerError, "pause manager unavailable", nil)
		return
	}
	name, ok := strategyName(c)
	if !ok {
		return
	}
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Pause.Pause(c.Request.Context(), name, req.Reason); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{"strategy": name, "paused": true}, nil)
}

func (h *StrategyHandler) resume(c *gin.Context) {
	if h.Pause == nil {
		Error(c, http.StatusInternalServerError, "pause manager unavailable", nil)
		return
	}
	name, ok := strategyName(c)
	if !ok {
		return
	}
	if err := h.Pause.Resume(c.Request.Context(), name); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{"strategy": name, "paused": false}, nil)
}

func (h *StrategyHandler) enable(c *gin.Context) {
	if h.Registry == nil {
		Error(c, http.StatusInternalServerError, "registry unavailable", nil)
		return
	}
	name, ok := strategyName(c)
	if !ok {
		return
	}
	if err := h.Registry.Enable(c.Request.Context(), name); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{"strategy": name, "enabled": true}, nil)
}

func (h *StrategyHandler) disable(c *gin.Context) {
	if h.Registry == nil {
		Error(c, http.StatusInternalServerError, "registry unavailable", nil)
		return
	}
	name, ok := strategyName(c)
	if !ok {
		return
	}
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Registry.Disable(c.Request.Context(), name, req.Reason); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{"strategy": name, "enabled": false}, nil)
}

func (h *StrategyHandler) graduationStatus(c *gin.Context) {
	if h.Graduation == nil {
		Error(c, http.StatusInternalServerError, "graduation engine unavailable", nil)
		return
	}
	name, ok := strategyName(c)
	if !ok {
		return
	}
	elig, err := h.Graduation.CheckEligibility(c.Request.Context(), name)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, elig, nil)
}

func (h *StrategyHandler) graduate(c *gin.Context) {
	if h.Graduation == nil {
		Error(c, http.StatusInternalServerError, "graduation engine unavailable", nil)
		return
	}
	name, ok := strategyName(c)
	if !ok {
		return
	}
	elig, err := h.Graduation.Graduate(c.Request.Context(), name)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, elig, nil)
}

func (h *StrategyHandler) listSnapshots(c *gin.Context) {
	if h.Registry == nil || h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	name, ok := strategyName(c)
	if !ok {
		return
	}
	strat, err := h.Registry.GetByName(c.Request.Context(), name)
	if err != nil {
		Fail(c, err)
		return
	}
	params := repository.ListSnapshotsParams{StrategyID: &strat.ID}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			Error(c, http.StatusBadRequest, "invalid limit", nil)
			return
		}
		params.Limit = limit
	}
	if raw := strings.TrimSpace(c.Query("offset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			Error(c, http.StatusBadRequest, "invalid offset", nil)
			return
		}
		params.Offset = offset
	}
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid since timestamp", nil)
			return
		}
		params.Since = &since
	}
	if raw := strings.TrimSpace(c.Query("until")); raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid until timestamp", nil)
			return
		}
		params.Until = &until
	}
	items, err := h.Repo.ListSnapshots(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"count": len(items)})
}

type snapshotRequest struct {
	Timestamp      *time.Time      `json:"timestamp"`
	PortfolioValue decimal.Decimal `json:"portfolio_value" binding:"required"`
	DailyPnL       decimal.Decimal `json:"daily_pnl"`
	TotalExposure  decimal.Decimal `json:"total_exposure"`
	AvgTradeProfit decimal.Decimal `json:"avg_trade_profit"`
	TotalReturnPct float64         `json:"total_return_pct"`
	SharpeRatio    float64         `json:"sharpe_ratio"`
	SortinoRatio   float64         `json:"sortino_ratio"`
	MaxDrawdown    float64         `json:"max_drawdown"`
	Volatility     float64         `json:"volatility"`
	WinRate        float64         `json:"win_rate"`
	TotalTrades    int             `json:"total_trades"`
	OpenPositions  int             `json:"open_positions"`
}

func (h *StrategyHandler) ingestSnapshot(c *gin.Context) {
	if h.Registry == nil || h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	name, ok := strategyName(c)
	if !ok {
		return
	}
	var req snapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	strat, err := h.Registry.GetByName(c.Request.Context(), name)
	if err != nil {
		Fail(c, err)
		return
	}
	ts := time.Now().UTC()
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}
	snap := &models.PerformanceSnapshot{
		StrategyID:     strat.ID,
		Timestamp:      ts,
		PortfolioValue: req.PortfolioValue,
		DailyPnL:       req.DailyPnL,
		TotalExposure:  req.TotalExposure,
		AvgTradeProfit: req.AvgTradeProfit,
		TotalReturnPct: req.TotalReturnPct,
		SharpeRatio:    req.SharpeRatio,
		SortinoRatio:   req.SortinoRatio,
		MaxDrawdown:    req.MaxDrawdown,
		Volatility:     req.Volatility,
		WinRate:        req.WinRate,
		TotalTrades:    req.TotalTrades,
		OpenPositions:  req.OpenPositions,
	}
	if err := h.Repo.InsertSnapshot(c.Request.Context(), snap); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	c.JSON(http.StatusCreated, apiResponse{Code: 0, Message: "ok", Data: snap})
}

type virtualFillRequest struct {
	PnL decimal.Decimal `json:"pnl"`
}

// recordFill feeds one simulated fill into the competition engine's virtual
// portfolio for the named strategy.
func (h *StrategyHandler) recordFill(c *gin.Context) {
	if h.Registry == nil || h.Board == nil {
		Error(c, http.StatusInternalServerError, "competition engine unavailable", nil)
		return
	}
	name, ok := strategyName(c)
	if !ok {
		return
	}
	var req virtualFillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	strat, err := h.Registry.GetByName(c.Request.Context(), name)
	if err != nil {
		Fail(c, err)
		return
	}
	snap, err := h.Board.RecordVirtualFill(c.Request.Context(), strat.ID, req.PnL)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, apiResponse{Code: 0, Message: "ok", Data: snap})
}
