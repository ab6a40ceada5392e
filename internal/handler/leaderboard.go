package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stratlab/internal/competition"
)

type LeaderboardHandler struct {
	Engine *competition.Engine
}

func (h *LeaderboardHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/leaderboard")
	group.GET("", h.leaderboard)
	group.GET("/summary", h.summary)
}

func (h *LeaderboardHandler) leaderboard(c *gin.Context) {
	if h.Engine == nil {
		Error(c, http.StatusInternalServerError, "competition engine unavailable", nil)
		return
	}
	entries, err := h.Engine.GetLeaderboard(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, entries, map[string]any{"count": len(entries)})
}

func (h *LeaderboardHandler) summary(c *gin.Context) {
	if h.Engine == nil {
		Error(c, http.StatusInternalServerError, "competition engine unavailable", nil)
		return
	}
	summary, err := h.Engine.GetCompetitionSummary(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, summary, nil)
}
