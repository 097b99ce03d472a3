package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/batgauge/internal/models"
)

// CreateCarRequest 注册车辆请求
type CreateCarRequest struct {
	VIN                string  `json:"vin" binding:"required"`
	Name               string  `json:"name"`
	Model              string  `json:"model"`
	BatteryCapacityKwh float64 `json:"battery_capacity_kwh" binding:"required,gt=0"`
}

// ListCars 获取车辆列表
func (h *Handler) ListCars(c *gin.Context) {
	cars, err := h.carRepo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list cars", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list cars"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": cars})
}

// CreateCar 注册车辆，VIN 已存在时更新
// POST /api/cars
func (h *Handler) CreateCar(c *gin.Context) {
	var req CreateCarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	car := &models.Car{
		VIN:                strings.ToUpper(strings.TrimSpace(req.VIN)),
		Name:               req.Name,
		Model:              req.Model,
		BatteryCapacityKwh: req.BatteryCapacityKwh,
	}
	if err := h.carRepo.Upsert(c.Request.Context(), car); err != nil {
		h.logger.Error("Failed to save car", zap.Error(err), zap.String("vin", car.VIN))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save car"})
		return
	}

	h.logger.Info("Car registered", zap.Int64("car_id", car.ID), zap.String("vin", car.VIN))
	c.JSON(http.StatusCreated, gin.H{"data": car})
}

// GetCar 获取车辆详情
func (h *Handler) GetCar(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	car, err := h.carRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "Failed to get car", err)
		return
	}

	chargeCount, _ := h.chargeRepo.CountProcessesByCarID(c.Request.Context(), id)

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"car":          car,
			"charge_count": chargeCount,
		},
	})
}
