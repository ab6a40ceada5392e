package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stratlab/internal/killswitch"
)

type KillSwitchHandler struct {
	Manager *killswitch.Manager
}

func (h *KillSwitchHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/killswitch")
	group.GET("", h.state)
	group.POST("/activate", h.activate)
	group.POST("/deactivate", h.deactivate)
}

func (h *KillSwitchHandler) state(c *gin.Context) {
	if h.Manager == nil {
		Error(c, http.StatusInternalServerError, "kill switch unavailable", nil)
		return
	}
	st, err := h.Manager.GetState(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, st, nil)
}

type activateRequest struct {
	Reason         string `json:"reason" binding:"required"`
	ClosePositions bool   `json:"close_positions"`
	ActivatedBy    string `json:"activated_by"`
}

func (h *KillSwitchHandler) activate(c *gin.Context) {
	if h.Manager == nil {
		Error(c, http.StatusInternalServerError, "kill switch unavailable", nil)
		return
	}
	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	result, err := h.Manager.Activate(c.Request.Context(), req.Reason, req.ClosePositions, req.ActivatedBy)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, result, map[string]any{"failures": len(result.Failures)})
}

type deactivateRequest struct {
	AdminPassword string `json:"admin_password" binding:"required"`
}

func (h *KillSwitchHandler) deactivate(c *gin.Context) {
	if h.Manager == nil {
		Error(c, http.StatusInternalServerError, "kill switch unavailable", nil)
		return
	}
	var req deactivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	st, err := h.Manager.Deactivate(c.Request.Context(), req.AdminPassword)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, st, nil)
}
