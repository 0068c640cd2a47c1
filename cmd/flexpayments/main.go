package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/jmdurant/oe-module-flex-payments/internal/config"
	"github.com/jmdurant/oe-module-flex-payments/internal/logger"
	"github.com/jmdurant/oe-module-flex-payments/internal/migration"
	"github.com/jmdurant/oe-module-flex-payments/internal/observability"
	"github.com/jmdurant/oe-module-flex-payments/internal/secrets"
	"github.com/jmdurant/oe-module-flex-payments/internal/server"
	"github.com/jmdurant/oe-module-flex-payments/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		secrets.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
