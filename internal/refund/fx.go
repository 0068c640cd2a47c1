package refund

import (
	"github.com/jmdurant/oe-module-flex-payments/internal/refund/repository"
	"github.com/jmdurant/oe-module-flex-payments/internal/refund/service"
	"go.uber.org/fx"
)

var Module = fx.Module("refund.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
