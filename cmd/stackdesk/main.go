package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/stackdesk/stackdesk/internal/config"
	"github.com/stackdesk/stackdesk/internal/migration"
	"github.com/stackdesk/stackdesk/internal/observability"
	"github.com/stackdesk/stackdesk/internal/seed"
	"github.com/stackdesk/stackdesk/internal/server"
	"github.com/stackdesk/stackdesk/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		migration.Module,
		server.Module,
		seed.Module,
	)

	app.Run()
}

func newSnowflakeNode(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
