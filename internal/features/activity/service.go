// Package activity: service.go logs workouts.
//
// Log, step by step:
//  1. validate and parse the activity date (future dates are rejected)
//  2. compute earned minutes and the intensity label
//  3. store the activity (a repeated external id is a duplicate, not an error)
//  4. credit the minutes: today's activity as a daily credit, a past day's
//     activity as a persistent credit (the rollover must not take it back)
//  5. count the day for the streak
package activity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"fitplay.app/gametime/internal/clock"
	"fitplay.app/gametime/internal/common"
	"fitplay.app/gametime/internal/features/ledger"
	"fitplay.app/gametime/internal/features/streak"
	"fitplay.app/gametime/internal/metrics"
)

// MaxSimulated bounds one Simulate call.
const MaxSimulated = 100

// Store persists activities.
type Store interface {
	Insert(ctx context.Context, a *Activity) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, userID string, limit int) ([]*Activity, error)
}

// Service logs activities on top of the ledger and the streak engine.
type Service struct {
	store   Store           // activities table
	ledger  *ledger.Service // Credits earned minutes
	streaks *streak.Service // Counts the activity day

	mu  sync.Mutex // Guards rnd, rand.Rand is not safe for concurrent use
	rnd *rand.Rand // Simulate only
}

// NewService creates an activity service. rnd may be nil.
func NewService(store Store, ledgerService *ledger.Service, streaks *streak.Service, rnd *rand.Rand) *Service {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Service{store: store, ledger: ledgerService, streaks: streaks, rnd: rnd}
}

// logPolicy decides how a stored activity affects the ledger.
type logPolicy struct {
	pastDays bool  // credit and count activities dated before today
	earned   int64 // precomputed earned minutes, 0 = compute from metrics
}

// Log records one activity of userID.
// Every activity is credited; one dated before today is credited persistently.
func (s *Service) Log(ctx context.Context, userID string, in Input) (*LogResult, error) {
	return s.log(ctx, userID, in, logPolicy{pastDays: true})
}

func (s *Service) log(ctx context.Context, userID string, in Input, policy logPolicy) (*LogResult, error) {
	// Step 1: validate input
	if in.Source == "" {
		in.Source = streak.SourceManual
	}
	if !in.Source.Valid() {
		return nil, fmt.Errorf("%w: unknown source %q", common.ErrInvalidInput, in.Source)
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Type) == "" {
		return nil, fmt.Errorf("%w: title and type are required", common.ErrInvalidInput)
	}
	if in.DistanceKM < 0 || in.DurationMinutes < 0 {
		return nil, fmt.Errorf("%w: distance and duration must be >= 0", common.ErrInvalidInput)
	}
	today := clock.Today(s.ledger.Clock())
	date, err := streak.ParseActivityDate(in.Date, today) // rejects dates after today
	if err != nil {
		return nil, err
	}
	// The child must exist before anything is stored
	if _, err := s.ledger.Get(ctx, userID); err != nil {
		return nil, err
	}

	// Step 2: earned minutes and intensity
	var pace *float64
	if in.DistanceKM > 0 && in.DurationMinutes > 0 {
		p := float64(in.DurationMinutes) / in.DistanceKM // min/km
		pace = &p
	}
	intensity := in.Intensity
	if intensity == "" {
		intensity = IntensityLabel(in.AvgHeartRate, pace)
	}
	earned := policy.earned
	if earned <= 0 {
		earned = ComputeEarnedMinutes(Metrics{
			DistanceKM:      in.DistanceKM,
			DurationMinutes: float64(in.DurationMinutes),
			AvgHeartRate:    in.AvgHeartRate,
			PaceMinPerKM:    pace,
			TypeLabel:       in.Type,
			Intensity:       in.Intensity,
		})
	}

	// Step 3: store
	a := &Activity{
		UserID:          userID,
		Source:          in.Source,
		Title:           strings.TrimSpace(in.Title),
		Type:            strings.TrimSpace(in.Type),
		DistanceKM:      math.Round(in.DistanceKM*100) / 100,
		DurationMinutes: in.DurationMinutes,
		AvgHeartRate:    in.AvgHeartRate,
		Intensity:       intensity,
		EarnedMinutes:   earned,
		ActivityDate:    date,
	}
	if ext := strings.TrimSpace(in.ExternalID); ext != "" {
		a.ExternalID = &ext
	}
	if err := s.store.Insert(ctx, a); err != nil {
		// Tracker imports are retried; a known external id is not an error
		if a.ExternalID != nil && errors.Is(err, common.ErrAlreadyExists) {
			log.WithFields(log.Fields{
				"user_id":     userID,
				"external_id": *a.ExternalID,
			}).Debug("Activity already logged")
			return &LogResult{Applied: false, Reason: ReasonDuplicate}, nil
		}
		return nil, err
	}

	result := &LogResult{Applied: true, Activity: a}
	isToday := date.Equal(today)
	counts := isToday || policy.pastDays

	// Step 4: credit
	if counts {
		// A daily credit is reverted at midnight, so only today's activity may use one
		persistent := !isToday
		if _, err := s.ledger.AddEarnedAndIncreaseLimit(ctx, userID, earned, persistent); err != nil {
			// Keep the log and the ledger in step: no activity without its credit
			if derr := s.store.Delete(ctx, a.ID); derr != nil {
				log.WithError(derr).WithField("activity_id", a.ID).Error("Failed to remove uncredited activity")
			}
			return nil, fmt.Errorf("failed to credit activity: %w", err)
		}
		result.CreditedMinutes = earned
	}
	metrics.ActivitiesLogged.WithLabelValues(string(in.Source)).Inc()

	// Step 5: streak (a failure here does not undo the activity)
	if counts {
		res, err := s.streaks.RecordDailyActivity(ctx, userID, date.Format(clock.DateLayout), in.Source)
		if err != nil {
			log.WithError(err).WithField("user_id", userID).Warn("Failed to record streak for activity")
		} else {
			result.Streak = res
		}
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"source":   in.Source,
		"date":     date.Format(clock.DateLayout),
		"earned":   earned,
		"credited": result.CreditedMinutes,
	}).Info("Activity logged")
	return result, nil
}

// List returns the newest activities of userID.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]*Activity, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.List(ctx, userID, limit)
}

// Simulate logs count random activities for demos. The first one is dated
// today, the rest fall within the last 30 days. Past activities are stored
// without credit or streak effect, and earned minutes use the simple demo
// rate from SimulatedEarnedMinutes.
func (s *Service) Simulate(ctx context.Context, userID string, count int) (*SimulateResult, error) {
	if count < 1 || count > MaxSimulated {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", common.ErrInvalidInput, MaxSimulated)
	}

	today := clock.Today(s.ledger.Clock())
	summary := &SimulateResult{}
	for i := 0; i < count; i++ {
		in := s.randomInput(i, today)
		policy := logPolicy{earned: SimulatedEarnedMinutes(in.DistanceKM, in.Intensity)}
		res, err := s.log(ctx, userID, in, policy)
		if err != nil {
			// Nothing else can succeed when the child or the store is gone
			if errors.Is(err, common.ErrRecordNotFound) || errors.Is(err, common.ErrStoreUnavailable) {
				return summary, err
			}
			log.WithError(err).WithField("user_id", userID).Warn("Failed to create simulated activity")
			continue
		}
		summary.Created++
		summary.CreditedMinutes += res.CreditedMinutes
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"created":  summary.Created,
		"credited": summary.CreditedMinutes,
	}).Info("Simulated activities created")
	return summary, nil
}

var simulatedTypes = []string{"Run", "Ride", "Swim", "Walk", "Hiking"}

var simulatedIntensities = []string{IntensityEasy, IntensityMedium, IntensityHard}

// randomInput builds the i-th simulated workout with a pace typical for its type.
func (s *Service) randomInput(i int, today time.Time) Input {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind := simulatedTypes[s.rnd.IntN(len(simulatedTypes))]
	intensity := simulatedIntensities[s.rnd.IntN(len(simulatedIntensities))]
	distance := math.Round(s.uniform(2, 15)*10) / 10 // 2-15 km

	// Pace in min/km
	var pace float64
	switch kind {
	case "Run":
		pace = s.uniform(4.0, 6.5)
	case "Walk":
		pace = s.uniform(8.0, 12.0)
	case "Hiking":
		pace = s.uniform(10.0, 18.0)
	case "Ride":
		pace = 60.0 / s.uniform(15, 35) // 15-35 km/h
	case "Swim":
		pace = s.uniform(20.0, 40.0)
	}
	duration := int(math.Max(1, math.Round(distance*pace)))

	// First activity today, the others within the last 30 days
	date := today
	if i > 0 {
		date = today.AddDate(0, 0, -(1 + s.rnd.IntN(30)))
	}

	return Input{
		Title:           fmt.Sprintf("%s #%d", kind, i+1),
		Type:            kind,
		DistanceKM:      distance,
		DurationMinutes: duration,
		Intensity:       intensity,
		Date:            date.Format(clock.DateLayout),
		Source:          streak.SourceSimulated,
	}
}

func (s *Service) uniform(lo, hi float64) float64 {
	return lo + s.rnd.Float64()*(hi-lo)
}
