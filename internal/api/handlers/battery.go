package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetBatteryHealth 获取电池健康报告
// GET /api/cars/:id/battery-health?refresh=true
func (h *Handler) GetBatteryHealth(c *gin.Context) {
	carID, ok := parseID(c)
	if !ok {
		return
	}

	refresh, err := strconv.ParseBool(c.DefaultQuery("refresh", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid refresh flag"})
		return
	}

	report, err := h.batteryService.GetReport(c.Request.Context(), carID, refresh)
	if err != nil {
		h.respondError(c, "Failed to compute battery health", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

// GetBatteryHealthHistory 历史报告
func (h *Handler) GetBatteryHealthHistory(c *gin.Context) {
	carID, ok := parseID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	history, err := h.batteryService.History(c.Request.Context(), carID, limit)
	if err != nil {
		h.respondError(c, "Failed to list battery health history", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": history})
}

// GetFleetHealth 车队健康等级分布
func (h *Handler) GetFleetHealth(c *gin.Context) {
	summary, err := h.batteryService.Fleet(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to summarize fleet battery health", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}
