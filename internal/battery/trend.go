package battery

import "math"

// Slope 以样本序号 0..n-1 为自变量的最小二乘斜率
func Slope(samples []float64) float64 {
	n := float64(len(samples))
	if len(samples) < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range samples {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	denom := n*sumX2 - sumX*sumX
	if math.Abs(denom) < 1e-10 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// AnalyzeTrend 根据斜率判断效率趋势
func AnalyzeTrend(samples []float64) string {
	if len(samples) < 2 {
		return TrendStable
	}
	s := Slope(samples)
	switch {
	case s > TrendSlopeThreshold:
		return TrendImproving
	case s < -TrendSlopeThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}
