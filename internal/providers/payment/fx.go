package payment

import (
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/config"
	paymentdomain "github.com/CloserClaus/closer-claus-hub-sub004/internal/providers/payment/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/providers/payment/stripe"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.payment",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, holder *config.PayoutConfigHolder, log *zap.Logger) paymentdomain.Gateway {
	if !cfg.Stripe.Configured() {
		log.Warn("payment provider not configured; payout batches will be skipped")
	}
	return stripe.NewClient(stripe.Config{
		SecretKey: cfg.Stripe.SecretKey,
		BaseURL:   cfg.Stripe.BaseURL,
		Timeout:   holder.Get().ProviderTimeout,
	})
}
