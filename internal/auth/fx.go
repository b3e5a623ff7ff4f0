package auth

import (
	"github.com/stackdesk/stackdesk/internal/auth/repository"
	"github.com/stackdesk/stackdesk/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
