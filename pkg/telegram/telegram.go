// Package telegram pages the operations chat when an alert invocation cannot
// proceed, e.g. the push credential exchange fails.
package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"

	"github.com/jussrz/SOSit/internal/utils"
)

type Notifier struct {
	token  string
	chatID int64
	logger *logrus.Logger
}

// New returns a Notifier, or nil when no bot is configured. A nil Notifier is
// safe to call.
func New(token string, chatID int64, logger *logrus.Logger) *Notifier {
	if token == "" || chatID == 0 {
		return nil
	}
	return &Notifier{token: token, chatID: chatID, logger: logger}
}

// Notify sends the message to the ops chat. Paging is best-effort: failures
// are logged, never propagated into the alert flow.
func (n *Notifier) Notify(msg string) {
	if n == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := utils.Retry(n.logger, 3, time.Second, func() error {
		b, err := bot.New(n.token)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram bot: %w", err)
		}
		params := &bot.SendMessageParams{
			ChatID: n.chatID,
			Text:   msg,
		}
		if _, err := b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", n.chatID, err)
		}
		return nil
	})
	if err != nil {
		n.logger.Errorf("Ops paging failed: %v", err)
	}
}
