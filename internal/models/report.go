package models

import (
	"time"

	"github.com/langchou/batgauge/internal/battery"
)

// BatteryHealthSnapshot 历史电池健康报告
type BatteryHealthSnapshot struct {
	ID              int64           `json:"id" db:"id"`
	CarID           int64           `json:"car_id" db:"car_id"`
	Health          string          `json:"health" db:"health"`
	Confidence      string          `json:"confidence" db:"confidence"`
	DataPoints      int             `json:"data_points" db:"data_points"`
	DegradationRate *float64        `json:"degradation_rate,omitempty" db:"degradation_rate"`
	Report          *battery.Report `json:"report" db:"report"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// FleetHealth 按健康等级统计的车辆数（取每辆车最新报告）
type FleetHealth struct {
	Health string `json:"health"`
	Cars   int64  `json:"cars"`
}
