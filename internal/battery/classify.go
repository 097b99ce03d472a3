package battery

// healthThresholds 按顺序匹配，第一个满足 rate < limit 的等级生效
var healthThresholds = []struct {
	limit  float64
	health string
}{
	{0.05, HealthExcellent},
	{0.10, HealthVeryGood},
	{0.15, HealthGood},
	{0.20, HealthFair},
	{0.30, HealthPoor},
}

// ClassifyHealth 衰减率 -> 健康等级
func ClassifyHealth(rate float64) string {
	for _, t := range healthThresholds {
		if rate < t.limit {
			return t.health
		}
	}
	return HealthCritical
}

// ClassifyConfidence 有效样本数 -> 置信度
func ClassifyConfidence(samples int) string {
	switch {
	case samples >= 20:
		return ConfidenceHigh
	case samples >= 10:
		return ConfidenceMedium
	case samples >= 5:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}
