package payout

import (
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/lock"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/payout/repository"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/payout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payout.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewProcessor),
	fx.Provide(func(l *lock.Locker) service.BatchLocker { return l }),
)
