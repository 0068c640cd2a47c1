package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmdurant/oe-module-flex-payments/internal/config"
	"github.com/jmdurant/oe-module-flex-payments/internal/flex"
	"github.com/jmdurant/oe-module-flex-payments/internal/flex/client"
	"github.com/jmdurant/oe-module-flex-payments/internal/flex/signature"
	"github.com/jmdurant/oe-module-flex-payments/internal/flex/webhook"
	"github.com/jmdurant/oe-module-flex-payments/internal/observability/metrics"
	"github.com/jmdurant/oe-module-flex-payments/internal/refund"
	refunddomain "github.com/jmdurant/oe-module-flex-payments/internal/refund/domain"
	"github.com/jmdurant/oe-module-flex-payments/internal/secrets"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	refund.Module,
	flex.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	flexClient *client.Client
	webhooks   webhook.Service
	refunds    refunddomain.Service
	metrics    *metrics.Metrics

	mobileAuth      *signature.Authenticator
	mobileSecretErr error
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	Cipher     *secrets.Cipher
	FlexClient *client.Client
	Webhooks   webhook.Service
	Refunds    refunddomain.Service
	Metrics    *metrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		flexClient: p.FlexClient,
		webhooks:   p.Webhooks,
		refunds:    p.Refunds,
		metrics:    p.Metrics,
	}

	mobileSecret := ""
	if p.Cfg.MobileSecretEncrypted != "" {
		decrypted, err := p.Cipher.Decrypt(p.Cfg.MobileSecretEncrypted)
		if err != nil {
			svc.log.Error("mobile hmac secret cannot be decrypted", zap.Error(err))
			svc.mobileSecretErr = err
		} else {
			mobileSecret = decrypted
		}
	}
	svc.mobileAuth = signature.New(mobileSecret, p.Cfg.WebhookToleranceSeconds)

	svc.registerFlexRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerFlexRoutes() {
	flexGroup := s.engine.Group("/flex")

	flexGroup.POST("/webhook", s.HandleFlexWebhook)

	checkout := flexGroup.Group("/checkout")
	{
		checkout.POST("/sessions", s.MobileCORS(), s.CreateCheckoutSession)
		if s.cfg.AllowMobileCORS {
			checkout.OPTIONS("/sessions", s.MobileCORS(), func(c *gin.Context) {
				c.Status(http.StatusNoContent)
			})
		}
		checkout.GET("/sessions/:id", s.GetCheckoutSession)
		checkout.POST("/sessions/:id/capture", s.CaptureCheckoutSession)
		checkout.POST("/sessions/:id/refund", s.RefundCheckoutSession)
		checkout.POST("/sessions/:id/receipt", s.SendCheckoutReceipt)
	}
}
