package notification

import (
	"context"

	"github.com/CloserClaus/closer-claus-hub-sub004/internal/notification/domain"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/notification/repository"
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewQueue),
	fx.Provide(func(q *service.Queue) domain.Dispatcher { return q }),
	fx.Invoke(func(lc fx.Lifecycle, q *service.Queue) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return q.Close(ctx)
			},
		})
	}),
)
