// Package ledger: reset.go implements the daily rollover rule.
//
// On the first touch of a new UTC day:
//  1. today's non-persistent credits are taken back from earned and limit
//  2. today's used counter goes to zero (lifetime used stays)
//  3. a running timer is stopped and its time discarded
//  4. the reset date moves to today
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"fitplay.app/gametime/internal/clock"
)

// needsReset reports whether rec was last reset before today.
func needsReset(rec *Record, today time.Time) bool {
	if rec.LastDailyResetDate == nil {
		return true
	}
	return clock.DateOf(*rec.LastDailyResetDate).Before(today)
}

// applyDailyReset mutates rec for a new day. It is a no-op when rec was
// already reset today, so it can run before every mutation.
func applyDailyReset(rec *Record, now time.Time) ResetReport {
	today := clock.DateOf(now)
	report := ResetReport{UserID: rec.UserID, DiscardedMinutes: decimal.Zero}
	if !needsReset(rec, today) {
		return report
	}

	report.Applied = true
	report.PreviousReset = clonePtr(rec.LastDailyResetDate)
	report.RevertedMinutes = rec.DailyEarnedMinutesToday

	// Step 1: revert today's daily credits, never below zero
	rec.EarnedMinutes -= rec.DailyEarnedMinutesToday
	if rec.EarnedMinutes < 0 {
		rec.EarnedMinutes = 0
		report.Clamped = true
	}
	rec.DailyLimitMinutes -= rec.DailyEarnedMinutesToday
	if rec.DailyLimitMinutes < 0 {
		rec.DailyLimitMinutes = 0
		report.Clamped = true
	}

	// Step 2: today's usage starts over
	rec.TodayUsedMinutes = decimal.Zero

	// Step 3: a timer spanning midnight is dropped
	if rec.TimerRunning {
		report.DiscardedTimer = true
		report.DiscardedMinutes = PeekElapsedMinutes(rec, now)
	}
	rec.TimerRunning = false
	rec.TimerStartedAt = nil

	// Step 4
	rec.DailyEarnedMinutesToday = 0
	rec.LastDailyResetDate = &today

	return report
}
