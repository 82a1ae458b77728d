// Package activity records workouts and turns them into earned game time.
// models.go describes stored activities and the input of Log.
package activity

import (
	"time"

	"fitplay.app/gametime/internal/features/streak"
)

// Intensity labels.
const (
	IntensityEasy   = "Easy"
	IntensityMedium = "Medium"
	IntensityHard   = "Hard"
)

// ReasonDuplicate is returned when an external activity was already logged.
const ReasonDuplicate = "duplicate"

// Activity is a row of the activities table.
type Activity struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	Source          streak.Source `json:"source"`
	ExternalID      *string       `json:"external_id,omitempty"` // Tracker id, unique per user and source
	Title           string        `json:"title"`
	Type            string        `json:"type"`
	DistanceKM      float64       `json:"distance_km"`
	DurationMinutes int           `json:"duration_minutes"`
	AvgHeartRate    *float64      `json:"avg_heart_rate,omitempty"`
	Intensity       string        `json:"intensity"`
	EarnedMinutes   int64         `json:"earned_minutes"`
	ActivityDate    time.Time     `json:"activity_date"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Input is what a caller submits to Log.
type Input struct {
	Title           string        `json:"title" validate:"required,max=200"`
	Type            string        `json:"type" validate:"required,max=32"`
	DistanceKM      float64       `json:"distance_km" validate:"gte=0,lte=1000"`
	DurationMinutes int           `json:"duration_minutes" validate:"gte=0,lte=1440"`
	AvgHeartRate    *float64      `json:"avg_heart_rate" validate:"omitempty,gt=0,lte=250"`
	Intensity       string        `json:"intensity" validate:"omitempty,oneof=Easy Medium Hard"`
	Date            string        `json:"date" validate:"max=64"` // Empty means today
	Source          streak.Source `json:"source" validate:"omitempty,oneof=manual simulated tracker test parent"`
	ExternalID      string        `json:"external_id" validate:"max=128"`
}

// LogResult is the outcome of Log.
type LogResult struct {
	Applied         bool           `json:"applied"`
	Reason          string         `json:"reason,omitempty"`
	Activity        *Activity      `json:"activity,omitempty"`
	CreditedMinutes int64          `json:"credited_minutes"` // 0 for activities not dated today
	Streak          *streak.Result `json:"streak,omitempty"`
}

// SimulateResult summarizes Simulate.
type SimulateResult struct {
	Created         int   `json:"count"`
	CreditedMinutes int64 `json:"credited_minutes"`
}
