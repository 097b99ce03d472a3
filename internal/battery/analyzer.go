package battery

import (
	"math"
	"time"
)

// 标定参数，沿用既有取值，调整前需要领域数据支撑
const (
	DefaultLookback        = 90 * 24 * time.Hour // 回溯窗口
	MinimumSessions        = 5                   // 最少有效充电次数
	RecentWindowSize       = 10                  // 近期窗口大小
	MinRecentSessions      = 3                   // 近期窗口最少次数
	MaxPlausibleEfficiency = 10.0                // km/kWh，超出视为传感器噪声
	TrendSlopeThreshold    = 0.01
	DegradationFactor      = 2.0 // 效率下降 -> 容量衰减的换算系数
	MaxDegradationRate     = 0.5
	LongSessionMinutes     = 480
)

const insufficientDataMessage = "Insufficient charging data for battery health analysis"

// Options 分析参数
type Options struct {
	Lookback        time.Duration
	MinimumSessions int
	Location        *time.Location   // 充电时段统计使用的时区
	Now             func() time.Time // 时钟，测试时可替换
}

// DefaultOptions 默认分析参数
func DefaultOptions() Options {
	return Options{
		Lookback:        DefaultLookback,
		MinimumSessions: MinimumSessions,
		Location:        time.Local,
		Now:             time.Now,
	}
}

// Analyzer 电池健康分析器，无状态，可并发使用
type Analyzer struct {
	opts Options
}

// NewAnalyzer 创建分析器，零值字段使用默认值
func NewAnalyzer(opts Options) *Analyzer {
	def := DefaultOptions()
	if opts.Lookback <= 0 {
		opts.Lookback = def.Lookback
	}
	if opts.MinimumSessions <= 0 {
		opts.MinimumSessions = def.MinimumSessions
	}
	if opts.Location == nil {
		opts.Location = def.Location
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	return &Analyzer{opts: opts}
}

// Lookback 回溯窗口
func (a *Analyzer) Lookback() time.Duration {
	return a.opts.Lookback
}

// ComputeBatteryHealth 使用默认参数计算电池健康报告
func ComputeBatteryHealth(records []ChargingRecord, vehicle VehicleProfile) (*Report, error) {
	return NewAnalyzer(DefaultOptions()).Compute(records, vehicle)
}

// Compute 根据充电记录计算电池健康报告
func (a *Analyzer) Compute(records []ChargingRecord, vehicle VehicleProfile) (*Report, error) {
	if err := vehicle.Validate(); err != nil {
		return nil, err
	}

	now := a.opts.Now()
	sessions := FilterSessions(records, now.Add(-a.opts.Lookback))
	if len(sessions) < a.opts.MinimumSessions {
		required := a.opts.MinimumSessions
		return &Report{
			Health:          HealthUnknown,
			Confidence:      ConfidenceLow,
			DataPoints:      len(sessions),
			MinimumRequired: &required,
			Message:         insufficientDataMessage,
			Recommendations: []Recommendation{},
			LastUpdated:     now,
		}, nil
	}

	capacity := vehicle.BatteryCapacityKwh
	samples := EfficiencySamples(sessions, capacity)
	stats := SummarizeEfficiency(samples)
	trend := TrendUnknown
	if stats.SampleSize > 0 {
		trend = AnalyzeTrend(samples)
	}

	// 分级和建议使用未舍入的衰减率，报告中的数值再舍入
	rate := EstimateDegradation(sessions, capacity)
	health := ClassifyHealth(rate)
	behavior := AnalyzeBehavior(sessions, a.opts.Location)

	return &Report{
		Health:     health,
		Confidence: ClassifyConfidence(len(sessions)),
		DataPoints: len(sessions),
		Efficiency: &EfficiencyReport{
			Average: stats.Average,
			Unit:    UnitEfficiency,
			Trend:   trend,
			Min:     stats.Min,
			Max:     stats.Max,
		},
		Degradation: &DegradationReport{
			Rate:              roundTo(rate, 3),
			EstimatedCapacity: roundTo(capacity*(1-rate), 2),
			OriginalCapacity:  roundTo(capacity, 2),
			Unit:              UnitCapacity,
			Status:            health,
		},
		EstimatedRange:   EstimateRange(capacity, rate, stats.Average),
		ChargingBehavior: &behavior,
		AnalysisPeriod:   analysisPeriod(sessions),
		Recommendations:  Recommend(rate, behavior),
		LastUpdated:      now,
	}, nil
}

// Validate 校验车辆参数
func (v VehicleProfile) Validate() error {
	c := v.BatteryCapacityKwh
	if math.IsNaN(c) || math.IsInf(c, 0) || c <= 0 {
		return &InvalidInputError{Field: "batteryCapacityKwh", Reason: "must be a positive number"}
	}
	return nil
}

// analysisPeriod 以首末有效记录的开始时间为区间
func analysisPeriod(sessions []ChargingRecord) *AnalysisPeriod {
	if len(sessions) == 0 {
		return nil
	}
	start := sessions[0].StartTime
	end := sessions[len(sessions)-1].StartTime
	return &AnalysisPeriod{
		Start: start,
		End:   end,
		Days:  spanDays(start, end),
	}
}

// spanDays 首末开始时间相差的整天数（四舍五入），分析区间和充电频率共用
func spanDays(first, last time.Time) int {
	return int(math.Round(last.Sub(first).Hours() / 24))
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
