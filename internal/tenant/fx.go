package tenant

import (
	"github.com/stackdesk/stackdesk/internal/tenant/repository"
	"github.com/stackdesk/stackdesk/internal/tenant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tenant.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
