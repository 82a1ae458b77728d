// Package streak runs the consecutive-day activity streak.
// models.go describes reward settings and the outcome of recording a day.
package streak

import "time"

// Settings are a parent's reward parameters.
// The reward for day n is min(cap, base + (n-1)*increment).
type Settings struct {
	BaseMinutes      int64 `json:"base_minutes" validate:"gte=0,lte=1440"`
	IncrementMinutes int64 `json:"increment_minutes" validate:"gte=0,lte=1440"`
	CapMinutes       int64 `json:"cap_minutes" validate:"gte=0,lte=1440"`
}

// DefaultSettings apply when a parent saved nothing (or the child has no parent).
func DefaultSettings() Settings {
	return Settings{BaseMinutes: 5, IncrementMinutes: 2, CapMinutes: 60}
}

// Source labels where an activity day came from.
type Source string

const (
	SourceManual    Source = "manual"    // Child logged it by hand
	SourceSimulated Source = "simulated" // Demo data
	SourceTracker   Source = "tracker"   // Imported from a fitness tracker
	SourceTest      Source = "test"      // CLI harness
	SourceParent    Source = "parent"    // Parent confirmed it
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceManual, SourceSimulated, SourceTracker, SourceTest, SourceParent:
		return true
	}
	return false
}

// ReasonAlreadyRecorded is returned when the day already counted.
const ReasonAlreadyRecorded = "already recorded"

// ReasonDisabled is returned when streaks are switched off.
const ReasonDisabled = "streaks disabled"

// Result is the outcome of RecordDailyActivity.
// Applied=false is a normal outcome, not an error.
type Result struct {
	Applied       bool      `json:"applied"`
	Reason        string    `json:"reason,omitempty"`
	ActivityDate  time.Time `json:"activity_date"`
	StreakCount   int       `json:"streak_count"`
	LongestStreak int       `json:"longest_streak"`
	RewardMinutes int64     `json:"reward_minutes"`
}
