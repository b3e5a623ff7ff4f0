package asset

import (
	"go.uber.org/fx"

	"github.com/stackdesk/stackdesk/internal/asset/repository"
	"github.com/stackdesk/stackdesk/internal/asset/service"
)

var Module = fx.Module("asset.service",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
