// Package streak: service.go contains the streak business logic.
// One activity day per child counts once; consecutive days grow the reward
// up to the parent's cap.
package streak

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"fitplay.app/gametime/internal/clock"
	"fitplay.app/gametime/internal/common"
	"fitplay.app/gametime/internal/features/ledger"
	"fitplay.app/gametime/internal/metrics"
)

// SettingsStore persists parent reward settings.
type SettingsStore interface {
	Get(ctx context.Context, parentID string) (*Settings, error)
	Upsert(ctx context.Context, parentID string, s Settings) error
}

// Parents tells parent accounts apart from children.
// A missing account returns an error wrapping ErrRecordNotFound.
type Parents interface {
	IsParent(ctx context.Context, id string) (bool, error)
}

// Options tune the service.
type Options struct {
	Enabled           bool     // FEATURE_STREAKS_ENABLED
	Defaults          Settings // used when a parent saved nothing, zero means DefaultSettings()
	ReminderThreshold int      // minimum streak that gets a reminder
	Parents           Parents  // checks settings owners, nil skips the check
}

// Service manages streaks on top of the ledger.
type Service struct {
	settings SettingsStore   // Parent reward settings
	ledger   *ledger.Service // Ledger for atomic record updates
	opts     Options
}

// NewService creates a streak service.
func NewService(settings SettingsStore, ledgerService *ledger.Service, opts Options) *Service {
	if opts.Defaults == (Settings{}) {
		opts.Defaults = DefaultSettings()
	}
	return &Service{
		settings: settings,
		ledger:   ledgerService,
		opts:     opts,
	}
}

// GetStreakSettings returns the settings of parentID, or the defaults when
// the parent saved none. A nil parent gets the defaults.
func (s *Service) GetStreakSettings(ctx context.Context, parentID *string) (Settings, error) {
	if parentID == nil || *parentID == "" {
		return s.opts.Defaults, nil
	}
	settings, err := s.settings.Get(ctx, *parentID)
	if errors.Is(err, common.ErrRecordNotFound) {
		return s.opts.Defaults, nil
	}
	if err != nil {
		return Settings{}, err
	}
	return *settings, nil
}

// SetStreakSettings validates and saves a parent's settings.
// Unknown ids are ErrRecordNotFound, child accounts ErrNotParent.
func (s *Service) SetStreakSettings(ctx context.Context, parentID string, settings Settings) error {
	if settings.BaseMinutes < 0 || settings.IncrementMinutes < 0 || settings.CapMinutes < 0 {
		return fmt.Errorf("%w: streak settings must be >= 0", common.ErrInvalidInput)
	}
	if s.opts.Parents != nil {
		ok, err := s.opts.Parents.IsParent(ctx, parentID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("member %s: %w", parentID, common.ErrNotParent)
		}
	}
	if err := s.settings.Upsert(ctx, parentID, settings); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"parent_id": parentID,
		"base":      settings.BaseMinutes,
		"increment": settings.IncrementMinutes,
		"cap":       settings.CapMinutes,
	}).Info("Streak settings saved")
	return nil
}

// RecordDailyActivity counts rawDate (empty = today) as an activity day of userID.
//
// Algorithm:
//  1. Parse the date and load the parent's settings
//  2. Same day as last_activity_date → already recorded, nothing changes
//  3. The day after last_activity_date → streak+1, any other date → 1
//  4. Credit the reward to earned and limit in the same transaction
//  5. Notify the child
func (s *Service) RecordDailyActivity(ctx context.Context, userID, rawDate string, source Source) (*Result, error) {
	if source == "" {
		source = SourceManual
	}
	if !source.Valid() {
		return nil, fmt.Errorf("%w: unknown source %q", common.ErrInvalidInput, source)
	}

	// Step 1
	date, err := ParseActivityDate(rawDate, clock.Today(s.ledger.Clock()))
	if err != nil {
		return nil, err
	}
	if !s.opts.Enabled {
		return &Result{Applied: false, Reason: ReasonDisabled, ActivityDate: date}, nil
	}

	current, err := s.ledger.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	settings, err := s.GetStreakSettings(ctx, current.ParentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load streak settings: %w", err)
	}

	result := &Result{ActivityDate: date}
	rec, err := s.ledger.Apply(ctx, userID, "streak", func(rec *ledger.Record, _ time.Time) error {
		// Step 2
		if rec.LastActivityDate != nil && clock.SameDay(*rec.LastActivityDate, date) {
			result.Applied = false
			result.Reason = ReasonAlreadyRecorded
			result.StreakCount = rec.StreakCount
			result.LongestStreak = rec.LongestStreak
			return nil
		}

		// Step 3
		newStreak := 1
		if rec.LastActivityDate != nil && clock.DateOf(*rec.LastActivityDate).AddDate(0, 0, 1).Equal(date) {
			newStreak = rec.StreakCount + 1
		}
		reward := CalculateReward(settings, newStreak)

		// Step 4
		activityDate := date
		rec.LastActivityDate = &activityDate
		rec.StreakCount = newStreak
		if newStreak > rec.LongestStreak {
			rec.LongestStreak = newStreak
		}
		rec.StreakBonusMinutes = reward
		rec.EarnedMinutes += reward
		rec.DailyLimitMinutes += reward

		result.Applied = true
		result.StreakCount = newStreak
		result.LongestStreak = rec.LongestStreak
		result.RewardMinutes = reward
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Applied {
		log.WithFields(log.Fields{
			"user_id": userID,
			"date":    date.Format(clock.DateLayout),
		}).Debug("Activity day already recorded")
		return result, nil
	}

	// Step 5
	metrics.StreakRewardMinutes.Add(float64(result.RewardMinutes))
	log.WithFields(log.Fields{
		"user_id": userID,
		"date":    date.Format(clock.DateLayout),
		"streak":  result.StreakCount,
		"reward":  result.RewardMinutes,
		"source":  source,
	}).Info("Streak day recorded")
	s.ledger.Notify(ctx, userID, "streak", FormatRewardMessage(result.StreakCount, result.RewardMinutes, source), result.RewardMinutes)
	s.ledger.Publish(rec)

	return result, nil
}

// OverrideStreak lets a parent correct a child's streak by hand.
//
// The count and the last reward are replaced, the personal best only grows.
// A positive count is kept alive: when the last activity day is older than
// yesterday it moves to yesterday, so an activity today continues the streak.
// Nothing is credited.
func (s *Service) OverrideStreak(ctx context.Context, parentID, childID string, streakCount int, bonusMinutes int64) (*Progress, error) {
	if streakCount < 0 || bonusMinutes < 0 {
		return nil, fmt.Errorf("%w: streak count and bonus must be >= 0", common.ErrInvalidInput)
	}

	yesterday := clock.Today(s.ledger.Clock()).AddDate(0, 0, -1)
	rec, err := s.ledger.Apply(ctx, childID, "streak_override", func(rec *ledger.Record, _ time.Time) error {
		// Only the child's own parent may touch the streak
		if rec.ParentID == nil || *rec.ParentID != parentID {
			return fmt.Errorf("child %s of %s: %w", childID, parentID, common.ErrNotYourChild)
		}
		rec.StreakCount = streakCount
		rec.StreakBonusMinutes = bonusMinutes
		if streakCount > rec.LongestStreak {
			rec.LongestStreak = streakCount
		}
		if streakCount > 0 && (rec.LastActivityDate == nil || clock.DateOf(*rec.LastActivityDate).Before(yesterday)) {
			y := yesterday
			rec.LastActivityDate = &y
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"parent_id": parentID,
		"child_id":  childID,
		"streak":    streakCount,
		"bonus":     bonusMinutes,
	}).Info("Streak overridden by parent")
	s.ledger.Notify(ctx, childID, "parent", FormatOverrideMessage(streakCount, bonusMinutes), 0)
	s.ledger.Publish(rec)

	return s.Progress(ctx, childID)
}

// Progress returns the streak card of userID.
// A streak whose last day is older than yesterday is shown as broken (0).
func (s *Service) Progress(ctx context.Context, userID string) (*Progress, error) {
	rec, err := s.ledger.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	settings, err := s.GetStreakSettings(ctx, rec.ParentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load streak settings: %w", err)
	}

	today := clock.Today(s.ledger.Clock())
	p := &Progress{LongestStreak: rec.LongestStreak}
	if rec.LastActivityDate == nil {
		p.NextRewardMinutes = CalculateReward(settings, 1)
		return p, nil
	}

	last := clock.DateOf(*rec.LastActivityDate)
	p.LastActivityDate = last.Format(clock.DateLayout)
	switch {
	case last.Equal(today):
		p.StreakCount = rec.StreakCount
		p.RecordedToday = true
		p.TodayRewardMinutes = rec.StreakBonusMinutes
		p.NextRewardMinutes = CalculateReward(settings, rec.StreakCount+1)
	case last.AddDate(0, 0, 1).Equal(today):
		p.StreakCount = rec.StreakCount
		p.NextRewardMinutes = CalculateReward(settings, rec.StreakCount+1)
	default:
		p.NextRewardMinutes = CalculateReward(settings, 1)
	}
	return p, nil
}

// SendReminders nudges children whose streak is at least the threshold,
// who were active yesterday and have nothing logged today.
// Each child gets at most one reminder per day. Returns the number sent.
func (s *Service) SendReminders(ctx context.Context) (int, error) {
	if !s.opts.Enabled {
		return 0, nil
	}
	threshold := s.opts.ReminderThreshold
	if threshold < 1 {
		threshold = 1
	}

	candidates, err := s.ledger.ListByMinStreak(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to list streaks: %w", err)
	}

	today := clock.Today(s.ledger.Clock())
	yesterday := today.AddDate(0, 0, -1)
	sent := 0
	for _, c := range candidates {
		if !atRisk(c, yesterday, today) {
			continue
		}

		var streakCount int
		marked := false
		_, err := s.ledger.Apply(ctx, c.UserID, "reminder", func(rec *ledger.Record, _ time.Time) error {
			// Re-check under the lock; an activity may have landed meanwhile.
			if !atRisk(rec, yesterday, today) {
				return nil
			}
			t := today
			rec.ReminderSentOn = &t
			streakCount = rec.StreakCount
			marked = true
			return nil
		})
		if err != nil {
			log.WithError(err).WithField("user_id", c.UserID).Error("Failed to mark streak reminder")
			continue
		}
		if !marked {
			continue
		}

		s.ledger.Notify(ctx, c.UserID, "streak", FormatReminderMessage(streakCount), 0)
		sent++
	}

	log.WithFields(log.Fields{
		"candidates": len(candidates),
		"sent":       sent,
	}).Info("Streak reminders sent")
	return sent, nil
}

func atRisk(rec *ledger.Record, yesterday, today time.Time) bool {
	if rec.LastActivityDate == nil || !clock.SameDay(*rec.LastActivityDate, yesterday) {
		return false
	}
	return rec.ReminderSentOn == nil || !clock.SameDay(*rec.ReminderSentOn, today)
}
