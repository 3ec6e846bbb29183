package slack

import (
	"context"
	"strings"

	"github.com/slack-go/slack"
)

type Provider interface {
	PostMessage(ctx context.Context, channelID string, message string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) PostMessage(ctx context.Context, channelID string, message string) error {
	return nil
}

// Client posts plain-text messages with a bot token.
type Client struct {
	api *slack.Client
}

func NewClient(token string, opts ...slack.Option) *Client {
	return &Client{api: slack.New(strings.TrimSpace(token), opts...)}
}

func (c *Client) PostMessage(ctx context.Context, channelID string, message string) error {
	_, _, err := c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(message, false))
	return err
}
