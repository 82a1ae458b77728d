// Package jobs runs background tasks on a cron schedule:
// the midnight daily reset and the evening streak reminders.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"fitplay.app/gametime/internal/features/ledger"
)

// Resetter applies the daily rollover to every ledger.
type Resetter interface {
	ResetAll(ctx context.Context) (*ledger.ResetSummary, error)
}

// Reminder sends streak reminders.
type Reminder interface {
	SendReminders(ctx context.Context) (int, error)
}

// Schedule holds the cron specs. An empty spec disables the job.
type Schedule struct {
	DailyReset      string
	StreakReminders string
}

// Scheduler manages background jobs.
type Scheduler struct {
	cron     *cron.Cron
	resetter Resetter
	reminder Reminder // may be nil
	schedule Schedule
}

// NewScheduler creates a scheduler in UTC, the zone calendar days are counted in.
func NewScheduler(resetter Resetter, reminder Reminder, schedule Schedule) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		resetter: resetter,
		reminder: reminder,
		schedule: schedule,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.schedule.DailyReset != "" {
		if _, err := s.cron.AddFunc(s.schedule.DailyReset, func() { s.RunDailyReset(ctx) }); err != nil {
			return fmt.Errorf("bad daily reset schedule %q: %w", s.schedule.DailyReset, err)
		}
	}
	if s.reminder != nil && s.schedule.StreakReminders != "" {
		if _, err := s.cron.AddFunc(s.schedule.StreakReminders, func() { s.RunReminders(ctx) }); err != nil {
			return fmt.Errorf("bad reminder schedule %q: %w", s.schedule.StreakReminders, err)
		}
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"daily_reset": s.schedule.DailyReset,
		"reminders":   s.schedule.StreakReminders,
	}).Info("Scheduler started (UTC)")
	return nil
}

// RunDailyReset runs one rollover pass.
func (s *Scheduler) RunDailyReset(ctx context.Context) {
	log.Info("[CRON] Daily reset")
	if _, err := s.resetter.ResetAll(ctx); err != nil {
		log.WithError(err).Error("[CRON] Daily reset failed")
	}
}

// RunReminders sends the streak reminders once.
func (s *Scheduler) RunReminders(ctx context.Context) {
	log.Debug("[CRON] Streak reminders")
	if _, err := s.reminder.SendReminders(ctx); err != nil {
		log.WithError(err).Error("[CRON] Streak reminders failed")
	}
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Scheduler stopped")
}
