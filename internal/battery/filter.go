package battery

import (
	"math"
	"slices"
	"time"
)

// FilterSessions 选出字段完整、数值合法且开始时间不早于 since 的记录，按开始时间升序返回副本
func FilterSessions(records []ChargingRecord, since time.Time) []ChargingRecord {
	sessions := make([]ChargingRecord, 0, len(records))
	for _, r := range records {
		if r.StartTime.Before(since) {
			continue
		}
		if !r.qualifies() {
			continue
		}
		sessions = append(sessions, r)
	}

	slices.SortStableFunc(sessions, func(a, b ChargingRecord) int {
		return a.StartTime.Compare(b.StartTime)
	})
	return sessions
}

// qualifies 效率计算所需字段齐全且在物理范围内
func (r ChargingRecord) qualifies() bool {
	if r.StartBatteryLevel == nil || r.EndBatteryLevel == nil || r.EnergyConsumedKwh == nil {
		return false
	}
	if !validLevel(*r.StartBatteryLevel) || !validLevel(*r.EndBatteryLevel) {
		return false
	}
	e := *r.EnergyConsumedKwh
	return !math.IsNaN(e) && !math.IsInf(e, 0) && e >= 0
}

func validLevel(level int) bool {
	return level >= 0 && level <= 100
}
