package slack

import (
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.slack",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Provider {
	if cfg.Slack.Token == "" || cfg.Slack.OperatorChannel == "" {
		return &NoOpProvider{}
	}
	return NewClient(cfg.Slack.Token)
}
