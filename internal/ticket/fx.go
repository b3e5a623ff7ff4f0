package ticket

import (
	"go.uber.org/fx"

	"github.com/stackdesk/stackdesk/internal/ticket/repository"
	"github.com/stackdesk/stackdesk/internal/ticket/service"
)

var Module = fx.Module("ticket.service",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
