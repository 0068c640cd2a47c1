package flex

import (
	"github.com/jmdurant/oe-module-flex-payments/internal/flex/client"
	"github.com/jmdurant/oe-module-flex-payments/internal/flex/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("flex.gateway",
	fx.Provide(client.New),
	fx.Provide(webhook.NewService),
)
