package scheduler

import (
	"strings"
	"time"

	"github.com/CloserClaus/closer-claus-hub-sub004/internal/config"
)

// Config controls when scheduled jobs fire and how long they may run.
type Config struct {
	CronSpec      string
	PayoutTimeout time.Duration
	// EnabledJobs limits RunOnce to the named jobs; empty enables all.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		CronSpec:      config.DefaultPayoutConfig().CronSpec,
		PayoutTimeout: 30 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(c.CronSpec) == "" {
		c.CronSpec = defaults.CronSpec
	}
	if c.PayoutTimeout <= 0 {
		c.PayoutTimeout = defaults.PayoutTimeout
	}
	return c
}

// ProvideConfig reads the cron spec from the payout config. A reloaded spec
// takes effect on the next process start.
func ProvideConfig(holder *config.PayoutConfigHolder) Config {
	return Config{
		CronSpec: holder.Get().CronSpec,
	}.withDefaults()
}
