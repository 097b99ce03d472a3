package models

import (
	"time"

	"github.com/langchou/batgauge/internal/battery"
)

// ChargingProcess 充电记录
type ChargingProcess struct {
	ID                int64      `json:"id" db:"id"`
	CarID             int64      `json:"car_id" db:"car_id"`
	StartTime         time.Time  `json:"start_time" db:"start_time"`
	EndTime           *time.Time `json:"end_time,omitempty" db:"end_time"`
	StartBatteryLevel *int       `json:"start_battery_level,omitempty" db:"start_battery_level"`
	EndBatteryLevel   *int       `json:"end_battery_level,omitempty" db:"end_battery_level"`
	ChargeEnergyAdded *float64   `json:"charge_energy_added,omitempty" db:"charge_energy_added"` // kWh
	ChargerPowerMax   *int       `json:"charger_power_max,omitempty" db:"charger_power_max"`
	DurationMin       float64    `json:"duration_min" db:"duration_min"`
	OutsideTempAvg    *float64   `json:"outside_temp_avg,omitempty" db:"outside_temp_avg"`
	Cost              *float64   `json:"cost,omitempty" db:"cost"`
	Source            string     `json:"source" db:"source"` // live 或 import
}

// 充电记录来源
const (
	SourceLive   = "live"
	SourceImport = "import"
)

// Record 转换为分析引擎的输入
func (cp *ChargingProcess) Record() battery.ChargingRecord {
	return battery.ChargingRecord{
		VehicleID:         cp.CarID,
		StartTime:         cp.StartTime,
		EndTime:           cp.EndTime,
		StartBatteryLevel: cp.StartBatteryLevel,
		EndBatteryLevel:   cp.EndBatteryLevel,
		EnergyConsumedKwh: cp.ChargeEnergyAdded,
	}
}
