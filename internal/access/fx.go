package access

import (
	"github.com/stackdesk/stackdesk/internal/access/repository"
	"github.com/stackdesk/stackdesk/internal/access/service"
	"go.uber.org/fx"
)

var Module = fx.Module("access.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
