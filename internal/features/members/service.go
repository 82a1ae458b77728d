// Package members: service.go contains the account business logic.
// A child always has a ledger record; AddChild and DeleteChild keep the two in step.
package members

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"fitplay.app/gametime/internal/common"
	"fitplay.app/gametime/internal/features/ledger"
)

// Store persists members.
type Store interface {
	Create(ctx context.Context, m *Member) error
	GetByID(ctx context.Context, id string) (*Member, error)
	ListChildren(ctx context.Context, parentID string) ([]*Member, error)
	ListByIDs(ctx context.Context, ids []string) ([]*Member, error)
	Delete(ctx context.Context, id string) error
	SetTelegramChat(ctx context.Context, id string, chatID *int64) error
}

// Service manages parent and child accounts.
type Service struct {
	repo   Store           // members table
	ledger *ledger.Service // Child ledger records
}

// NewService creates a members service.
func NewService(repo Store, ledgerService *ledger.Service) *Service {
	return &Service{repo: repo, ledger: ledgerService}
}

// CreateParent registers a parent account.
func (s *Service) CreateParent(ctx context.Context, name, email string) (*Member, error) {
	m := &Member{
		ID:          uuid.NewString(),
		Email:       strings.TrimSpace(email),
		Name:        strings.TrimSpace(name),
		AccountType: TypeParent,
	}
	if m.Email == "" {
		return nil, fmt.Errorf("%w: email is required", common.ErrInvalidInput)
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"member_id": m.ID,
		"email":     m.Email,
	}).Info("Parent registered")
	return m, nil
}

// AddChild creates a child under parentID together with its zeroed ledger record.
// When the ledger record cannot be created the member row is removed again.
func (s *Service) AddChild(ctx context.Context, parentID, name, email string) (*Member, error) {
	parent, err := s.repo.GetByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if !parent.IsParent() {
		return nil, fmt.Errorf("member %s: %w", parentID, common.ErrNotParent)
	}

	child := &Member{
		ID:          uuid.NewString(),
		Email:       strings.TrimSpace(email),
		Name:        strings.TrimSpace(name),
		AccountType: TypeChild,
		ParentID:    &parent.ID,
	}
	if child.Email == "" {
		return nil, fmt.Errorf("%w: email is required", common.ErrInvalidInput)
	}
	if err := s.repo.Create(ctx, child); err != nil {
		return nil, err
	}

	if _, err := s.ledger.Create(ctx, child.ID, &parent.ID); err != nil {
		if derr := s.repo.Delete(ctx, child.ID); derr != nil {
			log.WithError(derr).WithField("member_id", child.ID).Error("Failed to roll back child without ledger")
		}
		return nil, fmt.Errorf("failed to create ledger for child: %w", err)
	}

	log.WithFields(log.Fields{
		"parent_id": parentID,
		"child_id":  child.ID,
	}).Info("Child added")
	return child, nil
}

// DeleteChild removes childID and everything it owns. Only its parent may do it.
func (s *Service) DeleteChild(ctx context.Context, parentID, childID string) error {
	child, err := s.ownChild(ctx, parentID, childID)
	if err != nil {
		return err
	}

	if err := s.ledger.Delete(ctx, child.ID); err != nil && !errors.Is(err, common.ErrRecordNotFound) {
		return fmt.Errorf("failed to delete ledger: %w", err)
	}
	if err := s.repo.Delete(ctx, child.ID); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"parent_id": parentID,
		"child_id":  childID,
	}).Info("Child deleted")
	return nil
}

// ListChildren returns the children of parentID with their balances.
// A child whose balance cannot be read is listed without one.
func (s *Service) ListChildren(ctx context.Context, parentID string) ([]*ChildSummary, error) {
	parent, err := s.repo.GetByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if !parent.IsParent() {
		return nil, fmt.Errorf("member %s: %w", parentID, common.ErrNotParent)
	}

	children, err := s.repo.ListChildren(ctx, parentID)
	if err != nil {
		return nil, err
	}

	out := make([]*ChildSummary, 0, len(children))
	for _, c := range children {
		summary := &ChildSummary{Member: c}
		b, err := s.ledger.GetBalance(ctx, c.ID)
		if err != nil {
			log.WithError(err).WithField("child_id", c.ID).Warn("Failed to read child balance")
		} else {
			summary.Balance = b
		}
		out = append(out, summary)
	}
	return out, nil
}

// SetTelegramChat links (or with nil unlinks) the parent's Telegram chat.
func (s *Service) SetTelegramChat(ctx context.Context, parentID string, chatID *int64) error {
	parent, err := s.repo.GetByID(ctx, parentID)
	if err != nil {
		return err
	}
	if !parent.IsParent() {
		return fmt.Errorf("member %s: %w", parentID, common.ErrNotParent)
	}
	if err := s.repo.SetTelegramChat(ctx, parentID, chatID); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"parent_id": parentID,
		"linked":    chatID != nil,
	}).Info("Telegram chat updated")
	return nil
}

// ParentChat returns the Telegram chat of childID's parent.
func (s *Service) ParentChat(ctx context.Context, childID string) (int64, string, bool, error) {
	child, err := s.repo.GetByID(ctx, childID)
	if err != nil {
		return 0, "", false, err
	}
	if child.ParentID == nil {
		return 0, child.DisplayName(), false, nil
	}
	parent, err := s.repo.GetByID(ctx, *child.ParentID)
	if err != nil {
		return 0, "", false, err
	}
	if parent.TelegramChatID == nil {
		return 0, child.DisplayName(), false, nil
	}
	return *parent.TelegramChatID, child.DisplayName(), true, nil
}

// Leaderboard returns the top limit children by earned minutes.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]*LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	records, err := s.ledger.Top(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []*LeaderboardEntry{}, nil
	}

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.UserID)
	}
	found, err := s.repo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(found))
	for _, m := range found {
		names[m.ID] = m.DisplayName()
	}

	out := make([]*LeaderboardEntry, 0, len(records))
	for i, rec := range records {
		out = append(out, &LeaderboardEntry{
			Rank:          i + 1,
			ChildID:       rec.UserID,
			Name:          names[rec.UserID],
			EarnedMinutes: rec.EarnedMinutes,
			StreakCount:   rec.StreakCount,
			LongestStreak: rec.LongestStreak,
		})
	}
	return out, nil
}

// IsParent reports whether id is a parent account.
// Unknown ids return ErrRecordNotFound.
func (s *Service) IsParent(ctx context.Context, id string) (bool, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return m.IsParent(), nil
}

// ownChild loads childID and checks it belongs to parentID.
func (s *Service) ownChild(ctx context.Context, parentID, childID string) (*Member, error) {
	child, err := s.repo.GetByID(ctx, childID)
	if err != nil {
		return nil, err
	}
	if child.ParentID == nil || *child.ParentID != parentID {
		return nil, fmt.Errorf("child %s of %s: %w", childID, parentID, common.ErrNotYourChild)
	}
	return child, nil
}
