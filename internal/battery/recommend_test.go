package battery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommend(t *testing.T) {
	tests := []struct {
		name     string
		rate     float64
		behavior ChargingBehavior
		want     []string
	}{
		{
			name: "nothing fires",
			rate: 0.15,
			want: []string{},
		},
		{
			name: "healthy battery",
			rate: 0.02,
			want: []string{RecommendMaintenance},
		},
		{
			name: "inspection",
			rate: 0.25,
			want: []string{RecommendBatteryHealth},
		},
		{
			name:     "deep cycles",
			rate:     0.12,
			behavior: ChargingBehavior{DeepCycles: 5, ShallowCycles: 2},
			want:     []string{RecommendChargingHabit},
		},
		{
			name:     "deep cycles not dominant",
			rate:     0.12,
			behavior: ChargingBehavior{DeepCycles: 4, ShallowCycles: 2},
			want:     []string{},
		},
		{
			name:     "all at once",
			rate:     0.3,
			behavior: ChargingBehavior{DeepCycles: 3, AverageSessionDuration: 481},
			want:     []string{RecommendBatteryHealth, RecommendChargingHabit, RecommendChargingDuration},
		},
		{
			name:     "exactly eight hours",
			rate:     0.12,
			behavior: ChargingBehavior{AverageSessionDuration: 480},
			want:     []string{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recs := Recommend(tc.rate, tc.behavior)
			assert.NotNil(t, recs)
			assert.Equal(t, tc.want, recommendationTypes(recs))
		})
	}
}

func TestRecommendPriorities(t *testing.T) {
	recs := Recommend(0.25, ChargingBehavior{DeepCycles: 1, AverageSessionDuration: 600})
	priorities := map[string]string{}
	for _, r := range recs {
		priorities[r.Type] = r.Priority
		assert.NotEmpty(t, r.Message)
		assert.NotEmpty(t, r.Action)
	}
	assert.Equal(t, PriorityHigh, priorities[RecommendBatteryHealth])
	assert.Equal(t, PriorityMedium, priorities[RecommendChargingHabit])
	assert.Equal(t, PriorityLow, priorities[RecommendChargingDuration])
}

func TestRecommendationThresholdsUseUnroundedRate(t *testing.T) {
	now := baseTime.AddDate(0, 0, 30)

	t.Run("maintenance just below 0.1", func(t *testing.T) {
		records := boundarySessions(3, 2.33, 1.91)
		raw := EstimateDegradation(FilterSessions(records, time.Time{}), 100)
		require.Less(t, raw, maintenanceDegradation)

		report, err := fixedAnalyzer(now).Compute(records, VehicleProfile{BatteryCapacityKwh: 100})
		require.NoError(t, err)
		assert.Equal(t, 0.1, report.Degradation.Rate)
		assert.Contains(t, recommendationTypes(report.Recommendations), RecommendMaintenance)
	})

	t.Run("inspection just above 0.2", func(t *testing.T) {
		// 全部平均 4.09，近期 3.68：衰减率约 0.2005
		records := boundarySessions(1, 8.14, 3.68)
		raw := EstimateDegradation(FilterSessions(records, time.Time{}), 100)
		require.Greater(t, raw, inspectionDegradation)
		require.Less(t, raw, 0.2005)

		report, err := fixedAnalyzer(now).Compute(records, VehicleProfile{BatteryCapacityKwh: 100})
		require.NoError(t, err)
		assert.Equal(t, 0.2, report.Degradation.Rate)
		assert.Equal(t, HealthPoor, report.Health)
		assert.Contains(t, recommendationTypes(report.Recommendations), RecommendBatteryHealth)
	})
}
