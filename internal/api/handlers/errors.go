package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/batgauge/internal/battery"
	"github.com/langchou/batgauge/internal/repository"
	"github.com/langchou/batgauge/internal/service"
)

// respondError 把领域错误映射为 HTTP 状态码
func (h *Handler) respondError(c *gin.Context, msg string, err error) {
	var invalid *battery.InvalidInputError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Car not found"})
	case errors.As(err, &invalid):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": invalid.Error(), "field": invalid.Field})
	case errors.Is(err, service.ErrInvalidSession):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrSessionActive), errors.Is(err, service.ErrNoActiveSession):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
