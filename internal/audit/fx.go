package audit

import (
	"go.uber.org/fx"

	"github.com/stackdesk/stackdesk/internal/audit/repository"
	"github.com/stackdesk/stackdesk/internal/audit/service"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
