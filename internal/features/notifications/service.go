// Package notifications: service.go stores notifications and forwards them.
package notifications

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"fitplay.app/gametime/internal/common"
)

// Store persists notifications.
type Store interface {
	Insert(ctx context.Context, n *Notification) error
	List(ctx context.Context, childID string, limit int) ([]*Notification, error)
	MarkRead(ctx context.Context, childID, id string) error
}

// Forwarder delivers a stored notification somewhere else (a parent's chat).
type Forwarder interface {
	Forward(ctx context.Context, n *Notification) error
}

// Service manages child notifications.
type Service struct {
	store     Store
	forwarder Forwarder // may be nil
}

// NewService creates a notifications service. forwarder is optional.
func NewService(store Store, forwarder Forwarder) *Service {
	return &Service{store: store, forwarder: forwarder}
}

// Notify appends a notification for childID. Forwarding errors are logged only.
func (s *Service) Notify(ctx context.Context, childID, from, message string, bonusMinutes int64) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return fmt.Errorf("%w: empty notification message", common.ErrInvalidInput)
	}
	if from == "" {
		from = "system"
	}
	n := &Notification{
		ChildID:      childID,
		FromName:     common.Truncate(from, 64),
		Message:      common.Truncate(message, 500),
		BonusMinutes: bonusMinutes,
	}
	if err := s.store.Insert(ctx, n); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"child_id": childID,
		"from":     n.FromName,
		"bonus":    bonusMinutes,
	}).Debug("Notification added")

	if s.forwarder != nil {
		if err := s.forwarder.Forward(ctx, n); err != nil {
			log.WithError(err).WithField("child_id", childID).Warn("Failed to forward notification")
		}
	}
	return nil
}

// List returns the newest notifications of childID.
func (s *Service) List(ctx context.Context, childID string, limit int) ([]*Notification, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	return s.store.List(ctx, childID, limit)
}

// MarkRead flags one notification of childID as read.
func (s *Service) MarkRead(ctx context.Context, childID, id string) error {
	return s.store.MarkRead(ctx, childID, id)
}
