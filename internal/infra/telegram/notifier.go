package telegram

import (
	"context"
	"errors"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"vidscribe/internal/config"
	"vidscribe/internal/domain/ports/adapter"
)

var (
	_ adapter.Notifier = (*BotNotifier)(nil)
	_ adapter.Notifier = Noop{}
)

// maxMessageRunes is the Bot API limit for one text message.
const maxMessageRunes = 4096

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotNotifier sends operator messages to one chat.
type BotNotifier struct {
	bot    sender
	chatID int64
	log    *zerolog.Logger
}

// NewNotifier returns a BotNotifier when a token and chat are configured and
// a Noop otherwise.
func NewNotifier(cfg config.TelegramConfig, logger *zerolog.Logger) (adapter.Notifier, error) {
	if cfg.Token == "" || cfg.ChatID == 0 {
		return Noop{}, nil
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return newBotNotifier(bot, cfg.ChatID, logger), nil
}

func newBotNotifier(bot sender, chatID int64, logger *zerolog.Logger) *BotNotifier {
	l := logger.With().Str("component", "TelegramNotifier").Logger()
	return &BotNotifier{bot: bot, chatID: chatID, log: &l}
}

func (n *BotNotifier) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if text == "" {
		return errors.New("telegram: empty message")
	}
	msg := tgbotapi.NewMessage(n.chatID, truncate(text, maxMessageRunes))
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn().Err(err).Int64("chat_id", n.chatID).Msg("send failed")
		return err
	}
	return nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

// Noop drops every message.
type Noop struct{}

func (Noop) Notify(context.Context, string) error { return nil }
