package battery

import (
	"math"
	"time"
)

const (
	deepCycleDepth    = 50
	shallowCycleDepth = 20
)

// AnalyzeBehavior 统计充电习惯：平均时长、时段分布、频率、深/浅循环
func AnalyzeBehavior(sessions []ChargingRecord, loc *time.Location) ChargingBehavior {
	var b ChargingBehavior
	if len(sessions) == 0 {
		return b
	}
	if loc == nil {
		loc = time.Local
	}

	var totalMin float64
	var timed int
	first, last := sessions[0].StartTime, sessions[0].StartTime

	for _, s := range sessions {
		if s.StartTime.Before(first) {
			first = s.StartTime
		}
		if s.StartTime.After(last) {
			last = s.StartTime
		}

		if s.EndTime != nil && !s.StartTime.IsZero() {
			if d := s.EndTime.Sub(s.StartTime); d >= 0 {
				totalMin += d.Minutes()
				timed++
			}
		}

		switch h := s.StartTime.In(loc).Hour(); {
		case h >= 6 && h < 12:
			b.PreferredChargingTimes.Morning++
		case h >= 12 && h < 18:
			b.PreferredChargingTimes.Afternoon++
		case h >= 18:
			b.PreferredChargingTimes.Evening++
		default:
			b.PreferredChargingTimes.Night++
		}

		if s.StartBatteryLevel != nil && s.EndBatteryLevel != nil {
			depth := *s.EndBatteryLevel - *s.StartBatteryLevel
			if depth > deepCycleDepth {
				b.DeepCycles++
			} else if depth > shallowCycleDepth {
				b.ShallowCycles++
			}
		}
	}

	if timed > 0 {
		b.AverageSessionDuration = int(math.Round(totalMin / float64(timed)))
	}

	days := max(spanDays(first, last), 1)
	b.ChargingFrequency = roundTo(float64(len(sessions))/float64(days), 2)
	return b
}
