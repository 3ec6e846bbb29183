package contract

import (
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/contract/repository"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/contract/service"
	"go.uber.org/fx"
)

var Module = fx.Module("contract.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
