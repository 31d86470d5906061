package telegram

import (
	"context"
	"errors"
	"testing"

	"goldbot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func snapshot() domain.Snapshot {
	return domain.Snapshot{TradesToday: 2, DayPnl: -3.5, OpenPositionCount: 1, ConsecutiveLosses: 1, DayStartEquity: 1000}
}

func TestNotifySendsToChat(t *testing.T) {
	s := &fakeSender{}
	b := NewWithSender(s, 42, snapshot, zap.NewNop())

	require.NoError(t, b.Notify(context.Background(), domain.Notification{Title: "SELL opened", Body: "entry 2000.00"}))
	require.Len(t, s.sent, 1)
	assert.Equal(t, int64(42), s.sent[0].ChatID)
	assert.Equal(t, "SELL opened\nentry 2000.00", s.sent[0].Text)
}

func TestNotifyDisabled(t *testing.T) {
	b, err := New("", 42, snapshot, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, b.IsEnabled())
	assert.NoError(t, b.Notify(context.Background(), domain.Notification{Title: "x"}))
	assert.NoError(t, b.Run(context.Background()))
}

func TestNotifyWrapsError(t *testing.T) {
	b := NewWithSender(&fakeSender{err: errors.New("blocked")}, 42, snapshot, zap.NewNop())
	assert.ErrorContains(t, b.Notify(context.Background(), domain.Notification{Title: "x"}), "blocked")
}

func TestHandleStatusOnlyForConfiguredChat(t *testing.T) {
	s := &fakeSender{}
	b := NewWithSender(s, 42, snapshot, zap.NewNop())

	b.handle(7, "/status")
	assert.Empty(t, s.sent)

	b.handle(42, "/status")
	require.Len(t, s.sent, 1)
	assert.Contains(t, s.sent[0].Text, "Trades today: 2")
	assert.Contains(t, s.sent[0].Text, "Day P&L: -3.50 USD")

	b.handle(42, "hello")
	assert.Len(t, s.sent, 1)
}
