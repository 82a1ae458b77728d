// Package ledger: service.go contains the ledger business logic:
// timer start/stop, credits, usage, daily limits and the daily reset.
//
// Every mutation follows the same path (see Apply):
//  1. take the per-user lock
//  2. in one store transaction: lock the row, apply the daily reset, apply the change
//  3. after commit: log, notify, refresh the snapshot cache, push to live subscribers
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"fitplay.app/gametime/internal/clock"
	"fitplay.app/gametime/internal/common"
	"fitplay.app/gametime/internal/metrics"
)

// systemSender is the "from" of notifications the service writes itself.
const systemSender = "system"

// Options tune the service.
type Options struct {
	DefaultDailyLimit  int64 // limit of a freshly created record
	DefaultWeeklyLimit int64 // weekly limit of a freshly created record
}

// Service manages ledger records.
type Service struct {
	store     Store         // Persistent records
	clock     clock.Clock   // Source of now/today
	locks     *Locker       // Per-user writer lock
	cache     SnapshotCache // Last-known balances, may be nil
	notifier  Notifier      // Child notification list, may be nil
	publisher Publisher     // Live balance feed, may be nil
	opts      Options
}

// NewService creates a ledger service. cache, notifier and publisher are optional.
func NewService(store Store, clk clock.Clock, cache SnapshotCache, notifier Notifier, publisher Publisher, opts Options) *Service {
	return &Service{
		store:     store,
		clock:     clk,
		locks:     NewLocker(),
		cache:     cache,
		notifier:  notifier,
		publisher: publisher,
		opts:      opts,
	}
}

// Clock exposes the service clock to features built on the ledger.
func (s *Service) Clock() clock.Clock {
	return s.clock
}

// Create makes a zeroed record for a new child.
// The record counts as already reset today, so nothing is reverted on its first touch.
func (s *Service) Create(ctx context.Context, userID string, parentID *string) (*Record, error) {
	today := clock.Today(s.clock)
	rec := &Record{
		UserID:              userID,
		ParentID:            parentID,
		LifetimeUsedMinutes: decimal.Zero,
		TodayUsedMinutes:    decimal.Zero,
		DailyLimitMinutes:   s.opts.DefaultDailyLimit,
		WeeklyLimitMinutes:  s.opts.DefaultWeeklyLimit,
		LastDailyResetDate:  &today,
	}
	err := s.store.Create(ctx, rec)
	metrics.LedgerOperations.WithLabelValues("create", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"user_id":     userID,
		"daily_limit": rec.DailyLimitMinutes,
	}).Info("Ledger record created")
	return rec, nil
}

// Delete removes the record of userID.
func (s *Service) Delete(ctx context.Context, userID string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	err := s.store.Delete(ctx, userID)
	metrics.LedgerOperations.WithLabelValues("delete", metrics.Result(err)).Inc()
	return err
}

// Get returns the raw record without applying the daily reset.
func (s *Service) Get(ctx context.Context, userID string) (*Record, error) {
	return s.store.Get(ctx, userID)
}

// Apply runs fn on userID's record under the per-user lock and inside one
// store transaction, after the daily reset. fn receives the current instant.
// An error from fn leaves the record unchanged.
func (s *Service) Apply(ctx context.Context, userID, op string, fn func(rec *Record, now time.Time) error) (*Record, error) {
	rec, _, err := s.apply(ctx, userID, op, fn)
	return rec, err
}

func (s *Service) apply(ctx context.Context, userID, op string, fn func(rec *Record, now time.Time) error) (*Record, ResetReport, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	now := s.clock.Now()
	var report ResetReport
	rec, err := s.store.Update(ctx, userID, func(rec *Record) error {
		report = applyDailyReset(rec, now)
		if fn == nil {
			return nil
		}
		return fn(rec, now)
	})
	metrics.LedgerOperations.WithLabelValues(op, metrics.Result(err)).Inc()
	if err != nil {
		return nil, ResetReport{}, err
	}

	s.afterReset(ctx, report)
	b := ComputeBalance(rec, now)
	s.remember(ctx, &b)
	return rec, report, nil
}

// GetBalance returns the balance of userID, applying the daily reset first.
// When the store is unreachable the last known snapshot is returned with Stale set.
func (s *Service) GetBalance(ctx context.Context, userID string) (*Balance, error) {
	rec, err := s.store.Get(ctx, userID)
	if err == nil && needsReset(rec, clock.Today(s.clock)) {
		rec, err = s.Apply(ctx, userID, "reset", nil)
	}
	if err != nil {
		if errors.Is(err, common.ErrStoreUnavailable) && s.cache != nil {
			snap, cerr := s.cache.Get(ctx, userID)
			if cerr == nil && snap != nil {
				snap.Stale = true
				metrics.StaleBalances.Inc()
				log.WithError(err).WithField("user_id", userID).Warn("Store unavailable, serving last known balance")
				return snap, nil
			}
		}
		return nil, err
	}

	b := ComputeBalance(rec, s.clock.Now())
	s.remember(ctx, &b)
	return &b, nil
}

// StartTimer starts the play timer. ErrAlreadyRunning when one is running;
// the original start time is kept in that case.
func (s *Service) StartTimer(ctx context.Context, userID string) (*Balance, error) {
	rec, err := s.Apply(ctx, userID, "timer_start", startTimer)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":    userID,
		"started_at": rec.TimerStartedAt,
	}).Info("Timer started")
	s.notify(ctx, userID, systemSender, fmt.Sprintf("Timer started at %s", common.FormatDateTime(*rec.TimerStartedAt)), 0)

	b := ComputeBalance(rec, s.clock.Now())
	s.publish(b)
	return &b, nil
}

// StopTimer stops the play timer and records the elapsed time rounded to half minutes.
// Stopping an idle timer records nothing and is not an error.
func (s *Service) StopTimer(ctx context.Context, userID string) (*StopResult, error) {
	var (
		minutes    decimal.Decimal
		wasRunning bool
		startedAt  *time.Time
	)
	rec, err := s.Apply(ctx, userID, "timer_stop", func(rec *Record, now time.Time) error {
		startedAt = clonePtr(rec.TimerStartedAt)
		minutes, wasRunning = stopTimer(rec, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	b := ComputeBalance(rec, now)
	if wasRunning {
		log.WithFields(log.Fields{
			"user_id": userID,
			"minutes": minutes.String(),
		}).Info("Timer stopped")
		s.notify(ctx, userID, systemSender, fmt.Sprintf("Timer stopped at %s (started %s). Recorded %s",
			common.FormatDateTime(now), common.FormatDateTime(*startedAt), common.FormatMinutes(minutes)), 0)
		s.publish(b)
	}
	return &StopResult{WasRunning: wasRunning, MinutesRecorded: minutes, Balance: &b}, nil
}

// AddEarnedAndIncreaseLimit credits minutes to earned and to the daily limit.
// A non-persistent credit is also counted in today's daily earnings and is
// taken back by the next daily reset.
func (s *Service) AddEarnedAndIncreaseLimit(ctx context.Context, userID string, minutes int64, persistent bool) (*Balance, error) {
	if minutes < 0 {
		return nil, fmt.Errorf("%w: minutes must be >= 0, got %d", common.ErrInvalidInput, minutes)
	}
	rec, err := s.Apply(ctx, userID, "credit", func(rec *Record, _ time.Time) error {
		rec.EarnedMinutes += minutes
		rec.DailyLimitMinutes += minutes
		if !persistent {
			rec.DailyEarnedMinutesToday += minutes
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":    userID,
		"minutes":    minutes,
		"persistent": persistent,
	}).Info("Minutes credited")

	b := ComputeBalance(rec, s.clock.Now())
	s.publish(b)
	return &b, nil
}

// GrantBonus is a parent credit followed by a notification to the child.
func (s *Service) GrantBonus(ctx context.Context, userID string, bonus Bonus) (*Balance, error) {
	b, err := s.AddEarnedAndIncreaseLimit(ctx, userID, bonus.Minutes, bonus.Persistent)
	if err != nil {
		return nil, err
	}
	from := bonus.From
	if from == "" {
		from = "parent"
	}
	msg := bonus.Message
	if msg == "" {
		msg = fmt.Sprintf("You received %d bonus %s!", bonus.Minutes, common.PluralizeMinutes(bonus.Minutes))
	}
	s.notify(ctx, userID, from, msg, bonus.Minutes)
	return b, nil
}

// UseGameTime records minutes spent outside the timer. No balance check is done:
// a negative balance is shown as zero.
func (s *Service) UseGameTime(ctx context.Context, userID string, minutes decimal.Decimal) (*Balance, error) {
	if minutes.IsNegative() {
		return nil, fmt.Errorf("%w: minutes must be >= 0, got %s", common.ErrInvalidInput, minutes)
	}
	minutes = minutes.Round(1)
	rec, err := s.Apply(ctx, userID, "use", func(rec *Record, _ time.Time) error {
		rec.LifetimeUsedMinutes = rec.LifetimeUsedMinutes.Add(minutes)
		rec.TodayUsedMinutes = rec.TodayUsedMinutes.Add(minutes)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"minutes": minutes.String(),
	}).Info("Game time used")

	b := ComputeBalance(rec, s.clock.Now())
	s.publish(b)
	return &b, nil
}

// SetDailyLimit overwrites the daily limit and tells the child how it changed.
func (s *Service) SetDailyLimit(ctx context.Context, userID string, minutes int64) (*Balance, error) {
	if minutes < 0 {
		return nil, fmt.Errorf("%w: daily limit must be >= 0, got %d", common.ErrInvalidInput, minutes)
	}
	var previous int64
	rec, err := s.Apply(ctx, userID, "set_limit", func(rec *Record, _ time.Time) error {
		previous = rec.DailyLimitMinutes
		rec.DailyLimitMinutes = minutes
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case minutes > previous:
		s.notify(ctx, userID, "parent", fmt.Sprintf("Your daily limit was increased from %d to %d minutes", previous, minutes), 0)
	case minutes < previous:
		s.notify(ctx, userID, "parent", fmt.Sprintf("Your daily limit was decreased from %d to %d minutes", previous, minutes), 0)
	}

	b := ComputeBalance(rec, s.clock.Now())
	s.publish(b)
	return &b, nil
}

// SetWeeklyLimit stores the weekly limit a parent chose.
// It is shown next to the balance; the daily limit is what the timer enforces.
func (s *Service) SetWeeklyLimit(ctx context.Context, userID string, minutes int64) (*Balance, error) {
	if minutes < 0 {
		return nil, fmt.Errorf("%w: weekly limit must be >= 0, got %d", common.ErrInvalidInput, minutes)
	}
	var previous int64
	rec, err := s.Apply(ctx, userID, "set_weekly_limit", func(rec *Record, _ time.Time) error {
		previous = rec.WeeklyLimitMinutes
		rec.WeeklyLimitMinutes = minutes
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case minutes > previous:
		s.notify(ctx, userID, "parent", fmt.Sprintf("Your weekly limit was increased from %d to %d minutes", previous, minutes), 0)
	case minutes < previous:
		s.notify(ctx, userID, "parent", fmt.Sprintf("Your weekly limit was decreased from %d to %d minutes", previous, minutes), 0)
	}

	b := ComputeBalance(rec, s.clock.Now())
	s.publish(b)
	return &b, nil
}

// ResetIfNeeded applies the daily reset when the record was last reset before today.
// Calling it twice on the same day changes nothing.
func (s *Service) ResetIfNeeded(ctx context.Context, userID string) (*ResetReport, error) {
	current, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !needsReset(current, clock.Today(s.clock)) {
		return &ResetReport{UserID: userID, DiscardedMinutes: decimal.Zero}, nil
	}

	rec, report, err := s.apply(ctx, userID, "reset", nil)
	if err != nil {
		return nil, err
	}
	if report.Applied {
		s.Publish(rec)
	}
	return &report, nil
}

// ResetAll runs ResetIfNeeded for every record. Used by the midnight job and
// the reset-daily command. A failing record is logged and skipped.
func (s *Service) ResetAll(ctx context.Context) (*ResetSummary, error) {
	log.Info("Starting daily reset")

	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledgers: %w", err)
	}

	summary := &ResetSummary{Total: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		report, err := s.ResetIfNeeded(ctx, id)
		if err != nil {
			summary.Failures++
			log.WithError(err).WithField("user_id", id).Error("Daily reset failed")
			continue
		}
		if report.Applied {
			summary.Applied++
		}
		if report.Clamped {
			summary.Clamped++
		}
	}

	log.WithFields(log.Fields{
		"total":    summary.Total,
		"applied":  summary.Applied,
		"clamped":  summary.Clamped,
		"failures": summary.Failures,
	}).Info("Daily reset finished")
	return summary, nil
}

// Top returns up to limit records ordered by earned minutes. Reads are not locked.
func (s *Service) Top(ctx context.Context, limit int) ([]*Record, error) {
	return s.store.Top(ctx, limit)
}

// ListByMinStreak returns records whose streak is at least minStreak.
func (s *Service) ListByMinStreak(ctx context.Context, minStreak int) ([]*Record, error) {
	return s.store.ListByMinStreak(ctx, minStreak)
}

// Publish computes rec's balance and pushes it to live subscribers.
// Features that mutate through Apply call it once they are done.
func (s *Service) Publish(rec *Record) Balance {
	b := ComputeBalance(rec, s.clock.Now())
	s.publish(b)
	return b
}

// Notify forwards to the configured notifier; failures are only logged.
func (s *Service) Notify(ctx context.Context, userID, from, message string, bonusMinutes int64) {
	s.notify(ctx, userID, from, message, bonusMinutes)
}

func (s *Service) afterReset(ctx context.Context, report ResetReport) {
	if !report.Applied {
		return
	}
	fields := log.Fields{
		"user_id":  report.UserID,
		"reverted": report.RevertedMinutes,
	}
	if report.Clamped {
		metrics.DailyResets.WithLabelValues("inconsistent").Inc()
		log.WithFields(fields).Warn("Daily reset clamped earned/limit at zero")
	} else {
		metrics.DailyResets.WithLabelValues("ok").Inc()
		log.WithFields(fields).Debug("Daily reset applied")
	}
	if report.DiscardedTimer {
		s.notify(ctx, report.UserID, systemSender,
			fmt.Sprintf("Timer stopped at the daily reset; %s not counted", common.FormatMinutes(report.DiscardedMinutes)), 0)
	}
}

func (s *Service) notify(ctx context.Context, userID, from, message string, bonusMinutes int64) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, from, message, bonusMinutes); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Failed to add notification")
	}
}

func (s *Service) remember(ctx context.Context, b *Balance) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, b); err != nil {
		log.WithError(err).WithField("user_id", b.UserID).Debug("Failed to cache balance snapshot")
	}
}

func (s *Service) publish(b Balance) {
	if s.publisher != nil {
		s.publisher.PublishBalance(b)
	}
}
