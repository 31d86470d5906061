package telegram

import (
	"context"
	"fmt"
	"strings"

	"goldbot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the part of the bot API used for outgoing messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// StatusFunc returns the current engine status.
type StatusFunc func() domain.Snapshot

// Bot sends trade notifications to one chat and answers /status there.
type Bot struct {
	api    *tgbotapi.BotAPI
	sender Sender
	chatID int64
	status StatusFunc
	logger *zap.Logger
}

// New connects to Telegram. An empty token returns a disabled bot.
func New(token string, chatID int64, status StatusFunc, logger *zap.Logger) (*Bot, error) {
	if token == "" {
		logger.Warn("telegram token empty, telegram notifications disabled")
		return &Bot{chatID: chatID, status: status, logger: logger}, nil
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}
	api.Debug = false
	logger.Info("telegram connected", zap.String("bot", api.Self.UserName))
	return &Bot{api: api, sender: api, chatID: chatID, status: status, logger: logger}, nil
}

// NewWithSender builds a bot that only sends, used when updates are handled elsewhere.
func NewWithSender(sender Sender, chatID int64, status StatusFunc, logger *zap.Logger) *Bot {
	return &Bot{sender: sender, chatID: chatID, status: status, logger: logger}
}

func (b *Bot) IsEnabled() bool {
	return b.sender != nil && b.chatID != 0
}

// Notify posts n to the configured chat.
func (b *Bot) Notify(_ context.Context, n domain.Notification) error {
	if !b.IsEnabled() {
		return nil
	}
	text := n.Title
	if n.Body != "" {
		text += "\n" + n.Body
	}
	if _, err := b.sender.Send(tgbotapi.NewMessage(b.chatID, text)); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// Run answers chat commands until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	if b.api == nil {
		return nil
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if up.Message == nil || up.Message.Chat == nil {
				continue
			}
			b.handle(up.Message.Chat.ID, up.Message.Text)
		}
	}
}

func (b *Bot) handle(chatID int64, text string) {
	// only the configured chat gets answers
	if chatID != b.chatID {
		return
	}
	var reply string
	switch cmd := strings.TrimSpace(text); {
	case strings.HasPrefix(cmd, "/status"):
		reply = FormatStatus(b.status())
	case strings.HasPrefix(cmd, "/start"):
		reply = "Commands: /status"
	default:
		return
	}
	if _, err := b.sender.Send(tgbotapi.NewMessage(chatID, reply)); err != nil {
		b.logger.Warn("telegram reply failed", zap.Error(err))
	}
}

// FormatStatus renders a snapshot as a chat message.
func FormatStatus(s domain.Snapshot) string {
	return fmt.Sprintf(
		"Trades today: %d\nDay P&L: %.2f USD\nOpen positions: %d\nConsecutive losses: %d\nDay start equity: %.2f USD",
		s.TradesToday, s.DayPnl, s.OpenPositionCount, s.ConsecutiveLosses, s.DayStartEquity,
	)
}

var _ domain.Notifier = (*Bot)(nil)
