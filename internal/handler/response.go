package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stratlab/internal/apperr"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// Fail maps the service error taxonomy onto HTTP statuses and keeps the
// machine-readable code in the meta so clients don't parse messages.
func Fail(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	status := http.StatusBadGateway
	switch code {
	case apperr.CodeValidation:
		status = http.StatusBadRequest
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeNotEligible:
		status = http.StatusUnprocessableEntity
	case apperr.CodeAlreadyInState, apperr.CodeConflict:
		status = http.StatusConflict
	}
	Error(c, status, err.Error(), map[string]any{"error_code": string(code)})
}
