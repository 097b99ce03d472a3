package battery

// 建议优先级
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// 建议类型
const (
	RecommendBatteryHealth    = "battery_health"
	RecommendChargingHabit    = "charging_habit"
	RecommendChargingDuration = "charging_duration"
	RecommendMaintenance      = "maintenance"
)

const (
	inspectionDegradation  = 0.2
	maintenanceDegradation = 0.1
)

// Recommend 规则互相独立，全部评估，可以同时命中多条，也可以一条都没有
func Recommend(rate float64, b ChargingBehavior) []Recommendation {
	recs := []Recommendation{}

	if rate > inspectionDegradation {
		recs = append(recs, Recommendation{
			Priority: PriorityHigh,
			Type:     RecommendBatteryHealth,
			Message:  "Battery degradation is higher than expected",
			Action:   "Schedule a battery inspection with an authorized service center",
		})
	}

	if b.DeepCycles > b.ShallowCycles*2 {
		recs = append(recs, Recommendation{
			Priority: PriorityMedium,
			Type:     RecommendChargingHabit,
			Message:  "Frequent deep discharge cycles detected",
			Action:   "Charge more often and keep the battery between 20% and 80%",
		})
	}

	if b.AverageSessionDuration > LongSessionMinutes {
		recs = append(recs, Recommendation{
			Priority: PriorityLow,
			Type:     RecommendChargingDuration,
			Message:  "Charging sessions are longer than 8 hours on average",
			Action:   "Unplug once the target charge level is reached or set a charge limit",
		})
	}

	if rate < maintenanceDegradation {
		recs = append(recs, Recommendation{
			Priority: PriorityLow,
			Type:     RecommendMaintenance,
			Message:  "Battery health is in good condition",
			Action:   "Keep up the current charging habits",
		})
	}

	return recs
}
