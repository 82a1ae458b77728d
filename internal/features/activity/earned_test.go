package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

func TestComputeEarnedMinutes(t *testing.T) {
	tests := []struct {
		name string
		in   Metrics
		want int64
	}{
		{"run without heart rate", Metrics{DistanceKM: 5, DurationMinutes: 25, TypeLabel: "Run"}, 6},
		{"hard heart rate and fast pace", Metrics{DistanceKM: 10, DurationMinutes: 40, AvgHeartRate: ptr(175)}, 27},
		{"medium heart rate", Metrics{DistanceKM: 4, DurationMinutes: 40, AvgHeartRate: ptr(160)}, 8},
		{"ride is weighted down", Metrics{DistanceKM: 20, DurationMinutes: 60, TypeLabel: "Ride"}, 27},
		{"chosen intensity", Metrics{DistanceKM: 3, DurationMinutes: 30, TypeLabel: "Walk", Intensity: "Hard"}, 6},
		{"explicit pace", Metrics{DistanceKM: 2, DurationMinutes: 20, PaceMinPerKM: ptr(4.5)}, 3},
		{"never below one", Metrics{DurationMinutes: 10}, 1},
		{"negative input", Metrics{DistanceKM: -3, DurationMinutes: -5}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeEarnedMinutes(tt.in))
		})
	}
}

func TestIntensityLabel(t *testing.T) {
	assert.Equal(t, IntensityEasy, IntensityLabel(ptr(140), ptr(4)))
	assert.Equal(t, IntensityMedium, IntensityLabel(ptr(150), nil))
	assert.Equal(t, IntensityMedium, IntensityLabel(ptr(170), nil))
	assert.Equal(t, IntensityHard, IntensityLabel(ptr(171), nil))
	assert.Equal(t, IntensityHard, IntensityLabel(nil, ptr(4.9)))
	assert.Equal(t, IntensityMedium, IntensityLabel(nil, ptr(6)))
	assert.Equal(t, IntensityEasy, IntensityLabel(nil, ptr(9)))
	assert.Equal(t, IntensityEasy, IntensityLabel(nil, nil))
}

func TestSimulatedEarnedMinutes(t *testing.T) {
	assert.Equal(t, int64(20), SimulatedEarnedMinutes(10, IntensityEasy))
	assert.Equal(t, int64(12), SimulatedEarnedMinutes(4.3, IntensityMedium))
	assert.Equal(t, int64(30), SimulatedEarnedMinutes(7.5, IntensityHard))
	assert.Equal(t, int64(1), SimulatedEarnedMinutes(0, IntensityHard))
}
