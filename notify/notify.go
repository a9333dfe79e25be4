package notify

import (
	"context"

	"github.com/bot-api/telegram"
	log "github.com/sirupsen/logrus"
)

// Notifier pushes short run summaries to an operator channel.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

type telegramNotifier struct {
	api    *telegram.API
	chatID int64
}

// NewTelegram returns a notifier posting to one Telegram chat.
func NewTelegram(token string, chatID int64) Notifier {
	return &telegramNotifier{
		api:    telegram.New(token),
		chatID: chatID,
	}
}

func (n *telegramNotifier) Send(ctx context.Context, text string) error {
	_, err := n.api.SendMessage(ctx, telegram.NewMessage(n.chatID, text))
	if err != nil {
		log.Warnf("telegram send failed: %v", err)
	}
	return err
}

type noop struct{}

func (noop) Send(context.Context, string) error { return nil }

// Noop returns a notifier that drops everything, used when no Telegram
// credentials are configured.
func Noop() Notifier {
	return noop{}
}
