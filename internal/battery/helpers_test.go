package battery

import "time"

var baseTime = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func intPtr(v int) *int              { return &v }
func floatPtr(v float64) *float64    { return &v }
func timePtr(v time.Time) *time.Time { return &v }

// session 构造一条完整的充电记录，时长一小时
func session(start time.Time, from, to int, energy float64) ChargingRecord {
	end := start.Add(time.Hour)
	return ChargingRecord{
		VehicleID:         1,
		StartTime:         start,
		EndTime:           &end,
		StartBatteryLevel: intPtr(from),
		EndBatteryLevel:   intPtr(to),
		EnergyConsumedKwh: floatPtr(energy),
	}
}

// dailySessions 生成 n 条间隔一天的相同记录
func dailySessions(n, from, to int, energy float64) []ChargingRecord {
	out := make([]ChargingRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, session(baseTime.AddDate(0, 0, i), from, to, energy))
	}
	return out
}

func fixedAnalyzer(now time.Time) *Analyzer {
	return NewAnalyzer(Options{
		Location: time.UTC,
		Now:      func() time.Time { return now },
	})
}

// efficiencyRun 从 start 开始每天一条 20%→80% 的记录，容量 100 kWh 时效率恰为 eff
func efficiencyRun(start time.Time, n int, eff float64) []ChargingRecord {
	out := make([]ChargingRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, session(start.AddDate(0, 0, i), 20, 80, 60/eff))
	}
	return out
}

// boundarySessions older 条效率 a 的记录之后接 10 条效率 b 的记录
func boundarySessions(older int, a, b float64) []ChargingRecord {
	records := efficiencyRun(baseTime, older, a)
	return append(records, efficiencyRun(baseTime.AddDate(0, 0, older), RecentWindowSize, b)...)
}
