// Package challenge: service.go contains the unlock and completion flow.
//
//	child: request unlock ──► parent: approve ──► child: complete ──► reward credited
//	                      └─► parent: reject (the child may ask again)
//
// The reward is a persistent credit: it is earned once and survives the
// daily rollover.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"fitplay.app/gametime/internal/common"
	"fitplay.app/gametime/internal/features/ledger"
	"fitplay.app/gametime/internal/metrics"
)

// Store persists challenges, requests, unlocks and completions.
type Store interface {
	CreateChallenge(ctx context.Context, c *Challenge) error
	GetChallenge(ctx context.Context, id string) (*Challenge, error)
	ListChallenges(ctx context.Context) ([]*Challenge, error)
	UnlockedIDs(ctx context.Context, childID string) (map[string]bool, error)
	CompletedIDs(ctx context.Context, childID string) (map[string]bool, error)
	IsUnlocked(ctx context.Context, childID, challengeID string) (bool, error)
	CreateRequest(ctx context.Context, req *Request) error
	GetRequest(ctx context.Context, id string) (*Request, error)
	ListPending(ctx context.Context, parentID string) ([]*Request, error)
	Respond(ctx context.Context, id string, status Status, at time.Time) (*Request, error)
	InsertCompletion(ctx context.Context, c *Completion) error
	DeleteCompletion(ctx context.Context, childID, challengeID string) error
}

// Parents tells parent accounts apart from children.
type Parents interface {
	IsParent(ctx context.Context, id string) (bool, error)
}

// Service runs the challenge flow on top of the ledger.
type Service struct {
	store   Store
	ledger  *ledger.Service // Child records, rewards and notifications
	parents Parents
}

// NewService creates a challenge service.
func NewService(store Store, ledgerService *ledger.Service, parents Parents) *Service {
	return &Service{store: store, ledger: ledgerService, parents: parents}
}

// Create adds a challenge to the catalog on behalf of parentID.
func (s *Service) Create(ctx context.Context, parentID string, in NewChallenge) (*Challenge, error) {
	if err := s.requireParent(ctx, parentID); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", common.ErrInvalidInput)
	}
	if in.RewardMinutes == nil || *in.RewardMinutes < 0 || *in.RewardMinutes > MaxRewardMinutes {
		return nil, fmt.Errorf("%w: reward_minutes must be between 0 and %d", common.ErrInvalidInput, MaxRewardMinutes)
	}

	c := &Challenge{
		Title:         title,
		Description:   strings.TrimSpace(in.Description),
		RewardMinutes: *in.RewardMinutes,
		CreatedBy:     &parentID,
	}
	if err := s.store.CreateChallenge(ctx, c); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"challenge_id": c.ID,
		"parent_id":    parentID,
		"reward":       c.RewardMinutes,
	}).Info("Challenge created")
	return c, nil
}

// List returns the whole catalog without child state.
func (s *Service) List(ctx context.Context) ([]*Challenge, error) {
	return s.store.ListChallenges(ctx)
}

// ListForChild returns the catalog with childID's lock and completion flags.
func (s *Service) ListForChild(ctx context.Context, childID string) ([]*ChildChallenge, error) {
	if _, err := s.ledger.Get(ctx, childID); err != nil {
		return nil, err
	}
	all, err := s.store.ListChallenges(ctx)
	if err != nil {
		return nil, err
	}
	unlocked, err := s.store.UnlockedIDs(ctx, childID)
	if err != nil {
		return nil, err
	}
	completed, err := s.store.CompletedIDs(ctx, childID)
	if err != nil {
		return nil, err
	}

	out := make([]*ChildChallenge, 0, len(all))
	for _, c := range all {
		out = append(out, &ChildChallenge{
			Challenge: *c,
			Locked:    !unlocked[c.ID],
			Completed: completed[c.ID],
		})
	}
	return out, nil
}

// RequestUnlock files a pending request for childID.
// Asking for an unlocked challenge, or asking twice, is ErrAlreadyExists.
func (s *Service) RequestUnlock(ctx context.Context, childID, challengeID string) (*Request, error) {
	rec, err := s.ledger.Get(ctx, childID)
	if err != nil {
		return nil, err
	}
	if rec.ParentID == nil {
		return nil, fmt.Errorf("%w: child %s has no parent to approve", common.ErrInvalidInput, childID)
	}
	c, err := s.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	unlocked, err := s.store.IsUnlocked(ctx, childID, challengeID)
	if err != nil {
		return nil, err
	}
	if unlocked {
		return nil, fmt.Errorf("challenge %s already unlocked: %w", challengeID, common.ErrAlreadyExists)
	}

	req := &Request{ChildID: childID, ChallengeID: challengeID}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"request_id":   req.ID,
		"child_id":     childID,
		"challenge_id": challengeID,
	}).Info("Challenge unlock requested")
	s.ledger.Notify(ctx, childID, "system", fmt.Sprintf("Unlock of %q sent to your parent", c.Title), 0)
	return req, nil
}

// Pending lists the open requests of parentID's children.
func (s *Service) Pending(ctx context.Context, parentID string) ([]*Request, error) {
	if err := s.requireParent(ctx, parentID); err != nil {
		return nil, err
	}
	return s.store.ListPending(ctx, parentID)
}

// Respond approves or rejects requestID. Only the child's own parent may answer.
func (s *Service) Respond(ctx context.Context, parentID, requestID, action string) (*Request, error) {
	var status Status
	switch action {
	case ActionApprove:
		status = StatusApproved
	case ActionReject:
		status = StatusRejected
	default:
		return nil, fmt.Errorf("%w: action must be %q or %q", common.ErrInvalidInput, ActionApprove, ActionReject)
	}

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	rec, err := s.ledger.Get(ctx, req.ChildID)
	if err != nil {
		return nil, err
	}
	if rec.ParentID == nil || *rec.ParentID != parentID {
		return nil, fmt.Errorf("request %s of %s: %w", requestID, parentID, common.ErrNotYourChild)
	}

	req, err = s.store.Respond(ctx, requestID, status, s.ledger.Clock().Now())
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"request_id": requestID,
		"parent_id":  parentID,
		"status":     status,
	}).Info("Challenge unlock answered")

	title := req.ChallengeID
	if c, err := s.store.GetChallenge(ctx, req.ChallengeID); err == nil {
		title = c.Title
	}
	s.ledger.Notify(ctx, req.ChildID, "parent", fmt.Sprintf("Your parent %s the challenge %q", status, title), 0)
	return req, nil
}

// Complete marks an unlocked challenge as done and credits its reward once.
//
// The completion row is written first; when the credit fails it is removed,
// so a retry can credit again.
func (s *Service) Complete(ctx context.Context, childID, challengeID string) (*CompleteResult, error) {
	if _, err := s.ledger.Get(ctx, childID); err != nil {
		return nil, err
	}
	c, err := s.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	unlocked, err := s.store.IsUnlocked(ctx, childID, challengeID)
	if err != nil {
		return nil, err
	}
	if !unlocked {
		return nil, fmt.Errorf("challenge %s for %s: %w", challengeID, childID, common.ErrChallengeLocked)
	}

	// Step 1: claim the completion
	err = s.store.InsertCompletion(ctx, &Completion{ChildID: childID, ChallengeID: challengeID, RewardMinutes: c.RewardMinutes})
	if errors.Is(err, common.ErrAlreadyExists) {
		return &CompleteResult{Applied: false, Reason: ReasonAlreadyCompleted}, nil
	}
	if err != nil {
		return nil, err
	}

	// Step 2: credit the reward
	if _, err := s.ledger.AddEarnedAndIncreaseLimit(ctx, childID, c.RewardMinutes, true); err != nil {
		if derr := s.store.DeleteCompletion(ctx, childID, challengeID); derr != nil {
			log.WithError(derr).WithField("challenge_id", challengeID).Error("Failed to undo challenge completion")
		}
		return nil, fmt.Errorf("failed to credit challenge reward: %w", err)
	}
	metrics.ChallengeRewardMinutes.Add(float64(c.RewardMinutes))

	log.WithFields(log.Fields{
		"child_id":     childID,
		"challenge_id": challengeID,
		"reward":       c.RewardMinutes,
	}).Info("Challenge completed")
	s.ledger.Notify(ctx, childID, "system",
		fmt.Sprintf("🏆 Challenge %q completed! %s", c.Title, common.FormatMinutesAmount(c.RewardMinutes)),
		c.RewardMinutes)

	return &CompleteResult{Applied: true, RewardMinutes: c.RewardMinutes}, nil
}

// requireParent maps an unknown id to ErrRecordNotFound and a child to ErrNotParent.
func (s *Service) requireParent(ctx context.Context, id string) error {
	ok, err := s.parents.IsParent(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("member %s: %w", id, common.ErrNotParent)
	}
	return nil
}
