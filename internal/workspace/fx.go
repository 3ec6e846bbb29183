package workspace

import (
	"github.com/CloserClaus/closer-claus-hub-sub004/internal/workspace/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("workspace.repository",
	fx.Provide(repository.Provide),
)
