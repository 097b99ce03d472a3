package models

import (
	"time"

	"github.com/langchou/batgauge/internal/battery"
)

// Car 车辆信息
type Car struct {
	ID                 int64     `json:"id" db:"id"`
	VIN                string    `json:"vin" db:"vin"`
	Name               string    `json:"name" db:"name"`
	Model              string    `json:"model" db:"model"`
	BatteryCapacityKwh float64   `json:"battery_capacity_kwh" db:"battery_capacity_kwh"` // 标称电池容量
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// Profile 分析引擎需要的车辆参数
func (c *Car) Profile() battery.VehicleProfile {
	return battery.VehicleProfile{BatteryCapacityKwh: c.BatteryCapacityKwh}
}
