// Package streak: rewards.go computes streak bonuses.
package streak

import (
	"fmt"

	"fitplay.app/gametime/internal/common"
)

// CalculateReward returns the bonus minutes for day streakCount of a streak.
//
// With the default settings {base 5, increment 2, cap 60}:
//
//	Day 1: 5
//	Day 2: 7
//	Day 3: 9
//	...
//	Day 28+: 60 (cap)
//
// The result is never negative.
func CalculateReward(s Settings, streakCount int) int64 {
	steps := int64(streakCount - 1)
	if steps < 0 {
		steps = 0
	}
	reward := s.BaseMinutes + steps*s.IncrementMinutes
	if reward > s.CapMinutes {
		reward = s.CapMinutes
	}
	if reward < 0 {
		reward = 0
	}
	return reward
}

// FormatRewardMessage is the notification text for an applied day.
// Example: "🔥 3-day streak! +9 bonus minutes (tracker)"
func FormatRewardMessage(streakCount int, reward int64, source Source) string {
	return fmt.Sprintf("🔥 %d-day streak! +%d bonus %s (%s)",
		streakCount, reward, common.PluralizeMinutes(reward), source)
}

// FormatReminderMessage is the evening nudge for a streak at risk.
// Example: "⚠️ Your streak is 3 days long! Log an activity today to keep it going."
func FormatReminderMessage(streakCount int) string {
	return fmt.Sprintf("⚠️ Your streak is %d %s long! Log an activity today to keep it going.",
		streakCount, common.PluralizeDays(streakCount))
}

// FormatOverrideMessage tells the child a parent changed the streak.
// Example: "Streak updated to 1 day with 5 min/day bonus"
func FormatOverrideMessage(streakCount int, bonusMinutes int64) string {
	return fmt.Sprintf("Streak updated to %d %s with %d min/day bonus",
		streakCount, common.PluralizeDays(streakCount), bonusMinutes)
}
