package battery

import "math"

// EstimateDegradation 比较近期与全部记录的平均效率，估算容量衰减率，结果在 [0, MaxDegradationRate]
func EstimateDegradation(sessions []ChargingRecord, capacityKwh float64) float64 {
	recent := sessions
	if len(recent) > RecentWindowSize {
		recent = recent[len(recent)-RecentWindowSize:]
	}
	if len(recent) < MinRecentSessions {
		return 0
	}

	recentEff := averageEfficiency(recent, capacityKwh)
	allEff := averageEfficiency(sessions, capacityKwh)
	if recentEff == 0 || allEff == 0 {
		return 0
	}

	drop := math.Max(0, (allEff-recentEff)/allEff)
	return math.Min(drop*DegradationFactor, MaxDegradationRate)
}
