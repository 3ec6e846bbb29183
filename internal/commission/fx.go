package commission

import (
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/commission/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/commission/repository"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/commission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("commission.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(svc domain.Service) domain.Writer { return svc }),
)
