// Package notifications: telegram.go forwards notifications to the parent's Telegram chat.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"fitplay.app/gametime/internal/common"
)

// sendTimeout bounds a single Telegram call.
const sendTimeout = 5 * time.Second

// ChatResolver finds the Telegram chat of a child's parent.
// ok=false means the parent linked no chat.
type ChatResolver interface {
	ParentChat(ctx context.Context, childID string) (chatID int64, childName string, ok bool, err error)
}

// TelegramForwarder sends notifications with a Telegram bot.
type TelegramForwarder struct {
	bot   *telego.Bot
	chats ChatResolver
}

// NewTelegramForwarder creates the bot client for token.
func NewTelegramForwarder(token string, chats ChatResolver) (*TelegramForwarder, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	log.Info("Telegram forwarding enabled")
	return &TelegramForwarder{bot: bot, chats: chats}, nil
}

// Forward sends n to the parent's chat. Children without a linked parent chat are skipped.
func (f *TelegramForwarder) Forward(ctx context.Context, n *Notification) error {
	chatID, childName, ok, err := f.chats.ParentChat(ctx, n.ChildID)
	if err != nil {
		return fmt.Errorf("failed to resolve parent chat: %w", err)
	}
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if _, err := f.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), FormatForward(childName, n))); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

// FormatForward renders n for the parent.
//
//	👦 Mia
//	From system: You received 10 bonus minutes! (+10 minutes)
func FormatForward(childName string, n *Notification) string {
	text := fmt.Sprintf("👦 %s\nFrom %s: %s", childName, n.FromName, n.Message)
	if n.BonusMinutes > 0 {
		text += fmt.Sprintf(" (%s)", common.FormatMinutesAmount(n.BonusMinutes))
	}
	return text
}
