package knowledge

import (
	"go.uber.org/fx"

	"github.com/stackdesk/stackdesk/internal/knowledge/repository"
	"github.com/stackdesk/stackdesk/internal/knowledge/service"
)

var Module = fx.Module("knowledge.service",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
