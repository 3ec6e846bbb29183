package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PayoutConfig holds the tunables of the payout batch and notification queue.
type PayoutConfig struct {
	MaxRetries             int           `mapstructure:"max_retries"`
	ProviderTimeout        time.Duration `mapstructure:"provider_timeout"`
	BatchSize              int           `mapstructure:"batch_size"`
	CronSpec               string        `mapstructure:"cron_spec"`
	RecoveryThreshold      time.Duration `mapstructure:"recovery_threshold"`
	LockTTL                time.Duration `mapstructure:"lock_ttl"`
	Currency               string        `mapstructure:"currency"`
	NotificationQueueSize  int           `mapstructure:"notification_queue_size"`
	NotificationWorkers    int           `mapstructure:"notification_workers"`
	NotificationMaxElapsed time.Duration `mapstructure:"notification_max_elapsed"`
}

func DefaultPayoutConfig() PayoutConfig {
	return PayoutConfig{
		MaxRetries:             3,
		ProviderTimeout:        30 * time.Second,
		BatchSize:              100,
		CronSpec:               "0 0 6 * * *",
		RecoveryThreshold:      15 * time.Minute,
		LockTTL:                10 * time.Minute,
		Currency:               "usd",
		NotificationQueueSize:  1024,
		NotificationWorkers:    2,
		NotificationMaxElapsed: 30 * time.Second,
	}
}

type PayoutConfigHolder struct {
	current atomic.Value // holds PayoutConfig
}

// NewStaticPayoutConfigHolder returns a holder that never reloads.
func NewStaticPayoutConfigHolder(cfg PayoutConfig) *PayoutConfigHolder {
	holder := &PayoutConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewPayoutConfigHolder(log *zap.Logger) (*PayoutConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("payout.config")

	v := viper.New()

	v.SetConfigName("payout")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/closerclaus/config")
	v.AddConfigPath("/etc/closerclaus")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CLOSERCLAUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPayoutConfig()
	v.SetDefault("payout.max_retries", defaults.MaxRetries)
	v.SetDefault("payout.provider_timeout", defaults.ProviderTimeout)
	v.SetDefault("payout.batch_size", defaults.BatchSize)
	v.SetDefault("payout.cron_spec", defaults.CronSpec)
	v.SetDefault("payout.recovery_threshold", defaults.RecoveryThreshold)
	v.SetDefault("payout.lock_ttl", defaults.LockTTL)
	v.SetDefault("payout.currency", defaults.Currency)
	v.SetDefault("payout.notification_queue_size", defaults.NotificationQueueSize)
	v.SetDefault("payout.notification_workers", defaults.NotificationWorkers)
	v.SetDefault("payout.notification_max_elapsed", defaults.NotificationMaxElapsed)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg PayoutConfig
	if err := v.UnmarshalKey("payout", &cfg); err != nil {
		return nil, err
	}
	if err := ValidatePayoutConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticPayoutConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PayoutConfig
		if err := v.UnmarshalKey("payout", &updated); err != nil {
			log.Warn("payout config reload failed", zap.Error(err))
			return
		}
		if err := ValidatePayoutConfig(updated); err != nil {
			log.Warn("invalid payout config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("payout config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PayoutConfigHolder) Get() PayoutConfig {
	if h == nil {
		return DefaultPayoutConfig()
	}
	cfg, ok := h.current.Load().(PayoutConfig)
	if !ok {
		return DefaultPayoutConfig()
	}
	return cfg
}

func ValidatePayoutConfig(cfg PayoutConfig) error {
	if cfg.MaxRetries <= 0 {
		return errors.New("payout.max_retries must be positive")
	}
	if cfg.ProviderTimeout <= 0 {
		return errors.New("payout.provider_timeout must be positive")
	}
	if cfg.BatchSize <= 0 {
		return errors.New("payout.batch_size must be positive")
	}
	if strings.TrimSpace(cfg.CronSpec) == "" {
		return errors.New("payout.cron_spec cannot be empty")
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("payout.currency cannot be empty")
	}
	if cfg.NotificationQueueSize <= 0 {
		return errors.New("payout.notification_queue_size must be positive")
	}
	return nil
}
