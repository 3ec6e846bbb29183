package ledger

import (
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(service.NewService),
)
