package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/batgauge/internal/models"
	"github.com/langchou/batgauge/internal/repository"
)

// StartChargeRequest 开始充电请求
type StartChargeRequest struct {
	BatteryLevel *int       `json:"battery_level"`
	StartTime    *time.Time `json:"start_time"`
}

// CompleteChargeRequest 结束充电请求
type CompleteChargeRequest struct {
	BatteryLevel *int       `json:"battery_level"`
	EnergyAdded  *float64   `json:"charge_energy_added"` // kWh
	EndTime      *time.Time `json:"end_time"`
}

// ListCharges 获取充电列表
func (h *Handler) ListCharges(c *gin.Context) {
	carID, ok := parseID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage

	charges, err := h.chargeRepo.ListProcessesByCarID(c.Request.Context(), carID, perPage, offset)
	if err != nil {
		h.logger.Error("Failed to list charges", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list charges"})
		return
	}

	total, _ := h.chargeRepo.CountProcessesByCarID(c.Request.Context(), carID)

	c.JSON(http.StatusOK, gin.H{
		"data": charges,
		"pagination": gin.H{
			"page":     page,
			"per_page": perPage,
			"total":    total,
		},
	})
}

// GetCharge 获取充电详情
func (h *Handler) GetCharge(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid charge ID"})
		return
	}

	charge, err := h.chargeRepo.GetProcessByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Charge not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get charge", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get charge"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": charge})
}

// ImportCharges 批量导入历史充电记录
// POST /api/cars/:id/charges
func (h *Handler) ImportCharges(c *gin.Context) {
	carID, ok := parseID(c)
	if !ok {
		return
	}

	var processes []*models.ChargingProcess
	if err := c.ShouldBindJSON(&processes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	imported, err := h.chargingService.ImportSessions(c.Request.Context(), carID, processes)
	if err != nil {
		h.respondError(c, "Failed to import charges", err)
		return
	}

	h.logger.Info("Charges imported", zap.Int64("car_id", carID), zap.Int("count", imported))
	c.JSON(http.StatusCreated, gin.H{"data": gin.H{"imported": imported}})
}

// StartCharge 开始充电
// POST /api/cars/:id/charges/start
func (h *Handler) StartCharge(c *gin.Context) {
	carID, ok := parseID(c)
	if !ok {
		return
	}

	var req StartChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	if req.StartTime != nil {
		start = *req.StartTime
	}

	cp, err := h.chargingService.StartSession(c.Request.Context(), carID, req.BatteryLevel, start)
	if err != nil {
		h.respondError(c, "Failed to start charging session", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": cp})
}

// CompleteCharge 结束充电，报告在后台重算
// POST /api/cars/:id/charges/complete
func (h *Handler) CompleteCharge(c *gin.Context) {
	carID, ok := parseID(c)
	if !ok {
		return
	}

	var req CompleteChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	end := time.Now()
	if req.EndTime != nil {
		end = *req.EndTime
	}

	cp, err := h.chargingService.CompleteSession(c.Request.Context(), carID, req.BatteryLevel, req.EnergyAdded, end)
	if err != nil {
		h.respondError(c, "Failed to complete charging session", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": cp})
}

// GetChargingState 获取充电会话状态
func (h *Handler) GetChargingState(c *gin.Context) {
	carID, ok := parseID(c)
	if !ok {
		return
	}

	st, err := h.chargingService.State(c.Request.Context(), carID)
	if err != nil {
		h.respondError(c, "Failed to get charging state", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": st})
}
