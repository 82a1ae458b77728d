// Package activity: earned.go converts workout metrics into game minutes.
package activity

import (
	"math"
	"strings"
)

// Metrics are the inputs of ComputeEarnedMinutes.
// Nil AvgHeartRate or PaceMinPerKM means unknown.
type Metrics struct {
	DistanceKM      float64
	DurationMinutes float64
	AvgHeartRate    *float64
	PaceMinPerKM    *float64
	TypeLabel       string // "Run", "Ride", ...
	Intensity       string // Easy/Medium/Hard chosen by the child, optional
}

// ComputeEarnedMinutes returns the game minutes earned by a workout.
//
// With a heart rate:    d*hr + t*0.05 + d*paceBonus
// Without a heart rate: d*intensity + t*0.03 + d*paceBonus
//
// hr is 1.0 below 150 bpm, 2.0 above 170, else 1.5.
// paceBonus is 0.5 under 5 min/km, 0.2 under 6.5 min/km, else 0.
// intensity comes from the chosen label (1.0/1.5/2.0) or the type (ride 0.8, other 1.0).
// The result is floored and never below 1.
func ComputeEarnedMinutes(m Metrics) int64 {
	d := math.Max(m.DistanceKM, 0)
	t := math.Max(m.DurationMinutes, 0)

	pace := 999.0
	switch {
	case m.PaceMinPerKM != nil:
		pace = *m.PaceMinPerKM
	case d > 0:
		pace = t / d
	}

	paceBonus := 0.0
	if pace < 5 {
		paceBonus = 0.5
	} else if pace < 6.5 {
		paceBonus = 0.2
	}

	var earned float64
	if m.AvgHeartRate != nil {
		earned = d*heartRateMultiplier(*m.AvgHeartRate) + t*0.05 + d*paceBonus
	} else {
		earned = d*intensityMultiplier(m.Intensity, m.TypeLabel) + t*0.03 + d*paceBonus
	}

	minutes := int64(math.Floor(earned))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// IntensityLabel classifies a workout by heart rate, falling back to pace.
func IntensityLabel(avgHR, paceMinPerKM *float64) string {
	if avgHR != nil {
		switch {
		case *avgHR < 150:
			return IntensityEasy
		case *avgHR > 170:
			return IntensityHard
		default:
			return IntensityMedium
		}
	}
	if paceMinPerKM != nil {
		switch {
		case *paceMinPerKM < 5:
			return IntensityHard
		case *paceMinPerKM < 6.5:
			return IntensityMedium
		}
	}
	return IntensityEasy
}

func heartRateMultiplier(avgHR float64) float64 {
	switch {
	case avgHR < 150:
		return 1.0
	case avgHR > 170:
		return 2.0
	default:
		return 1.5
	}
}

func intensityMultiplier(label, typeLabel string) float64 {
	switch strings.ToLower(label) {
	case "easy":
		return 1.0
	case "medium":
		return 1.5
	case "hard":
		return 2.0
	}
	if strings.Contains(strings.ToLower(typeLabel), "ride") {
		return 0.8
	}
	return 1.0
}

// SimulatedEarnedMinutes is the demo rate of Simulate:
// 2 minutes per km times the intensity multiplier (1.0/1.5/2.0), truncated.
// Never below 1.
//
//	SimulatedEarnedMinutes(4.3, "Medium") → 12
func SimulatedEarnedMinutes(distanceKM float64, intensity string) int64 {
	minutes := int64(math.Max(distanceKM, 0) * 2 * intensityMultiplier(intensity, ""))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
