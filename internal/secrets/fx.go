package secrets

import (
	"github.com/jmdurant/oe-module-flex-payments/internal/config"
	"go.uber.org/fx"
)

func NewFromConfig(cfg config.Config) *Cipher {
	return NewCipher(cfg.ConfigSecret)
}

var Module = fx.Module("secrets",
	fx.Provide(NewFromConfig),
)
