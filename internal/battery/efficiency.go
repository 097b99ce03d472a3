package battery

import "math"

// EfficiencyStats 效率汇总，没有有效样本时各字段为 nil
type EfficiencyStats struct {
	Average    *float64
	Min        *float64
	Max        *float64
	SampleSize int
}

// SessionEfficiency 单次充电的效率 (km/kWh)
//
// 所用容量 = (结束电量 - 开始电量) * 电池容量 / 100，效率 = 所用容量 / 充入电量。
// 第二个返回值表示该样本是否可信。
func SessionEfficiency(r ChargingRecord, capacityKwh float64) (float64, bool) {
	if r.StartBatteryLevel == nil || r.EndBatteryLevel == nil || r.EnergyConsumedKwh == nil {
		return 0, false
	}
	used := float64(*r.EndBatteryLevel-*r.StartBatteryLevel) * capacityKwh / 100
	eff := used / *r.EnergyConsumedKwh
	if math.IsNaN(eff) || math.IsInf(eff, 0) {
		return 0, false
	}
	if eff <= 0 || eff >= MaxPlausibleEfficiency {
		return 0, false
	}
	return eff, true
}

// EfficiencySamples 按记录顺序计算有效效率样本
func EfficiencySamples(sessions []ChargingRecord, capacityKwh float64) []float64 {
	samples := make([]float64, 0, len(sessions))
	for _, s := range sessions {
		if eff, ok := SessionEfficiency(s, capacityKwh); ok {
			samples = append(samples, eff)
		}
	}
	return samples
}

// SummarizeEfficiency 计算平均、最小、最大值（保留两位小数）
func SummarizeEfficiency(samples []float64) EfficiencyStats {
	if len(samples) == 0 {
		return EfficiencyStats{}
	}

	sum, lo, hi := 0.0, samples[0], samples[0]
	for _, s := range samples {
		sum += s
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}

	avg := roundTo(sum/float64(len(samples)), 2)
	lo = roundTo(lo, 2)
	hi = roundTo(hi, 2)
	return EfficiencyStats{
		Average:    &avg,
		Min:        &lo,
		Max:        &hi,
		SampleSize: len(samples),
	}
}

// averageEfficiency 记录子集的平均效率，无有效样本时为 0
func averageEfficiency(sessions []ChargingRecord, capacityKwh float64) float64 {
	stats := SummarizeEfficiency(EfficiencySamples(sessions, capacityKwh))
	if stats.Average == nil {
		return 0
	}
	return *stats.Average
}
