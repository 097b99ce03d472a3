package battery

import (
	"encoding/json"
	"time"
)

// 健康等级
const (
	HealthUnknown   = "unknown"
	HealthExcellent = "excellent"
	HealthVeryGood  = "very good"
	HealthGood      = "good"
	HealthFair      = "fair"
	HealthPoor      = "poor"
	HealthCritical  = "critical"
)

// 置信度
const (
	ConfidenceVeryLow = "very low"
	ConfidenceLow     = "low"
	ConfidenceMedium  = "medium"
	ConfidenceHigh    = "high"
)

// 效率趋势
const (
	TrendUnknown   = "unknown"
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

// 单位
const (
	UnitEfficiency = "km/kWh"
	UnitCapacity   = "kWh"
	UnitRange      = "km"
)

// ChargingRecord 充电记录（引擎输入，调用方所有，引擎不会修改）
type ChargingRecord struct {
	VehicleID         int64      `json:"vehicleId"`
	StartTime         time.Time  `json:"startTime"`
	EndTime           *time.Time `json:"endTime,omitempty"`
	StartBatteryLevel *int       `json:"startBatteryLevel,omitempty"` // 0-100
	EndBatteryLevel   *int       `json:"endBatteryLevel,omitempty"`   // 0-100
	EnergyConsumedKwh *float64   `json:"energyConsumedKwh,omitempty"` // kWh
}

// VehicleProfile 车辆电池参数
type VehicleProfile struct {
	BatteryCapacityKwh float64 `json:"batteryCapacityKwh"`
}

// Report 电池健康报告
type Report struct {
	Health           string             `json:"health"`
	Confidence       string             `json:"confidence"`
	DataPoints       int                `json:"dataPoints"`
	MinimumRequired  *int               `json:"minimumRequired,omitempty"`
	Message          string             `json:"message,omitempty"`
	Efficiency       *EfficiencyReport  `json:"efficiency"`
	Degradation      *DegradationReport `json:"degradation"`
	EstimatedRange   *RangeEstimate     `json:"estimatedRange"`
	ChargingBehavior *ChargingBehavior  `json:"chargingBehavior"`
	AnalysisPeriod   *AnalysisPeriod    `json:"analysisPeriod"`
	Recommendations  []Recommendation   `json:"recommendations"`
	LastUpdated      time.Time          `json:"lastUpdated"`
}

// EfficiencyReport 效率统计
type EfficiencyReport struct {
	Average *float64 `json:"average"`
	Unit    string   `json:"unit"`
	Trend   string   `json:"trend"`
	Min     *float64 `json:"min"`
	Max     *float64 `json:"max"`
}

// DegradationReport 衰减估计
type DegradationReport struct {
	Rate              float64 `json:"rate"`
	EstimatedCapacity float64 `json:"estimatedCapacity"`
	OriginalCapacity  float64 `json:"originalCapacity"`
	Unit              string  `json:"unit"`
	Status            string  `json:"status"`
}

// RangeEstimate 续航估计
type RangeEstimate struct {
	Estimated    int    `json:"estimated"`
	Original     int    `json:"original"`
	Unit         string `json:"unit"`
	CapacityLoss int    `json:"capacityLoss"` // 百分比
}

// ChargingTimes 按时段统计的充电次数
type ChargingTimes struct {
	Morning   int `json:"morning"`   // [6,12)
	Afternoon int `json:"afternoon"` // [12,18)
	Evening   int `json:"evening"`   // [18,24)
	Night     int `json:"night"`     // [0,6)
}

// ChargingBehavior 充电习惯
type ChargingBehavior struct {
	AverageSessionDuration int           `json:"averageSessionDuration"` // 分钟
	PreferredChargingTimes ChargingTimes `json:"preferredChargingTimes"`
	ChargingFrequency      float64       `json:"chargingFrequency"` // 次/天
	DeepCycles             int           `json:"deepCycles"`
	ShallowCycles          int           `json:"shallowCycles"`
}

// AnalysisPeriod 分析区间
type AnalysisPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Days  int       `json:"days"`
}

// Recommendation 建议
type Recommendation struct {
	Priority string `json:"priority"`
	Type     string `json:"type"`
	Message  string `json:"message"`
	Action   string `json:"action"`
}

// insufficientReport 数据不足时输出的字段子集
type insufficientReport struct {
	Health          string           `json:"health"`
	Confidence      string           `json:"confidence"`
	DataPoints      int              `json:"dataPoints"`
	MinimumRequired *int             `json:"minimumRequired,omitempty"`
	Message         string           `json:"message,omitempty"`
	Recommendations []Recommendation `json:"recommendations"`
	LastUpdated     time.Time        `json:"lastUpdated"`
}

// MarshalJSON 数据不足的报告只输出基础字段，完整报告的分析字段始终存在（可以为 null）
func (r Report) MarshalJSON() ([]byte, error) {
	recs := r.Recommendations
	if recs == nil {
		recs = []Recommendation{}
	}

	if r.Health == HealthUnknown {
		return json.Marshal(insufficientReport{
			Health:          r.Health,
			Confidence:      r.Confidence,
			DataPoints:      r.DataPoints,
			MinimumRequired: r.MinimumRequired,
			Message:         r.Message,
			Recommendations: recs,
			LastUpdated:     r.LastUpdated,
		})
	}

	type plain Report
	p := plain(r)
	p.Recommendations = recs
	p.MinimumRequired = nil
	p.Message = ""
	return json.Marshal(p)
}
