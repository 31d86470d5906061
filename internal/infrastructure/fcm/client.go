package fcm

import (
	"context"
	"fmt"

	"goldbot/internal/domain"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const channelID = "trade_alerts"

// TokenSource lists the device tokens a notification fans out to.
type TokenSource interface {
	Tokens() []string
}

// Sender is the part of messaging.Client the notifier uses.
type Sender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type Client struct {
	sender Sender
	tokens TokenSource
	logger *zap.Logger
}

// NewClient initializes Firebase Cloud Messaging. Without credentials the client is
// disabled and Notify is a no-op.
func NewClient(ctx context.Context, credPath, credJSON string, tokens TokenSource, logger *zap.Logger) (*Client, error) {
	var opt option.ClientOption
	switch {
	case credPath != "":
		opt = option.WithCredentialsFile(credPath)
	case credJSON != "":
		opt = option.WithCredentialsJSON([]byte(credJSON))
	default:
		logger.Warn("no firebase credentials found, push notifications disabled")
		return &Client{tokens: tokens, logger: logger}, nil
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	logger.Info("firebase cloud messaging initialized")
	return &Client{sender: client, tokens: tokens, logger: logger}, nil
}

// NewWithSender builds a client around an existing sender.
func NewWithSender(sender Sender, tokens TokenSource, logger *zap.Logger) *Client {
	return &Client{sender: sender, tokens: tokens, logger: logger}
}

// IsEnabled returns true if FCM client is initialized
func (c *Client) IsEnabled() bool {
	return c.sender != nil
}

// Notify sends n to every registered device.
func (c *Client) Notify(ctx context.Context, n domain.Notification) error {
	if c.sender == nil {
		return nil
	}
	tokens := c.tokens.Tokens()
	if len(tokens) == 0 {
		return nil
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: channelID,
				Priority:  messaging.PriorityHigh,
			},
		},
	}

	response, err := c.sender.SendEachForMulticast(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending multicast: %w", err)
	}

	c.logger.Debug("push notification sent",
		zap.Int("success", response.SuccessCount),
		zap.Int("failure", response.FailureCount),
	)
	return nil
}

var _ domain.Notifier = (*Client)(nil)
