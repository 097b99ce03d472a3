package battery

import "math"

// EstimateRange 根据衰减率和平均效率估算续航，平均效率未知时返回 nil
func EstimateRange(capacityKwh, rate float64, avgEfficiency *float64) *RangeEstimate {
	if avgEfficiency == nil {
		return nil
	}
	effective := capacityKwh * (1 - rate)
	return &RangeEstimate{
		Estimated:    int(math.Round(effective * *avgEfficiency)),
		Original:     int(math.Round(capacityKwh * *avgEfficiency)),
		Unit:         UnitRange,
		CapacityLoss: int(math.Round(rate * 100)),
	}
}
