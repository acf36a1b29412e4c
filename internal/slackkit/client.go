package slackkit

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// Client wraps the Slack Web API with the handful of calls this service
// makes. All notification calls are best-effort; callers log failures and
// never roll back committed state because of them.
type Client struct {
	api    *slack.Client
	logger *zap.Logger
}

// NewClient creates a Slack API client from a bot token.
func NewClient(botToken string, logger *zap.Logger) *Client {
	return &Client{
		api:    slack.New(botToken),
		logger: logger,
	}
}

// PostMessage posts a message and returns its (channel, ts) address.
func (c *Client) PostMessage(ctx context.Context, channel, text string, blocks []slack.Block) (string, string, error) {
	postedChannel, ts, err := c.api.PostMessageContext(ctx, channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return "", "", fmt.Errorf("failed to post message: %w", err)
	}
	return postedChannel, ts, nil
}

// UpdateMessage replaces the content of an existing message.
func (c *Client) UpdateMessage(ctx context.Context, channel, ts, text string, blocks []slack.Block) error {
	_, _, _, err := c.api.UpdateMessageContext(ctx, channel, ts,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return nil
}

// PostEphemeral sends a message visible only to one user.
func (c *Client) PostEphemeral(ctx context.Context, channel, user, text string) error {
	_, err := c.api.PostEphemeralContext(ctx, channel, user,
		slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("failed to post ephemeral message: %w", err)
	}
	return nil
}

// OpenView opens a modal in response to an interaction trigger.
func (c *Client) OpenView(ctx context.Context, triggerID string, view slack.ModalViewRequest) error {
	_, err := c.api.OpenViewContext(ctx, triggerID, view)
	if err != nil {
		return fmt.Errorf("failed to open view: %w", err)
	}
	return nil
}

// PublishHomeView publishes a user's App Home tab.
func (c *Client) PublishHomeView(ctx context.Context, userID string, view slack.HomeTabViewRequest) error {
	_, err := c.api.PublishViewContext(ctx, userID, view, "")
	if err != nil {
		return fmt.Errorf("failed to publish home view: %w", err)
	}
	return nil
}
