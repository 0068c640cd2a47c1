package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jmdurant/oe-module-flex-payments/internal/config"
	"github.com/jmdurant/oe-module-flex-payments/internal/flex/domain"
	"github.com/jmdurant/oe-module-flex-payments/internal/flex/signature"
	"github.com/jmdurant/oe-module-flex-payments/internal/observability/metrics"
	refunddomain "github.com/jmdurant/oe-module-flex-payments/internal/refund/domain"
	"github.com/jmdurant/oe-module-flex-payments/internal/secrets"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	DB      *gorm.DB
	GenID   *snowflake.Node
	Cipher  *secrets.Cipher
	Refunds refunddomain.Service
	Metrics *metrics.Metrics `optional:"true"`
}

type service struct {
	cfg     config.Config
	log     *zap.Logger
	db      *gorm.DB
	genID   *snowflake.Node
	refunds refunddomain.Service
	metrics *metrics.Metrics
	now     func() time.Time

	auth      *signature.Authenticator
	secretErr error
}

func NewService(p Params) Service {
	s := &service{
		cfg:     p.Config,
		log:     p.Log.Named("flex.webhook"),
		db:      p.DB,
		genID:   p.GenID,
		refunds: p.Refunds,
		metrics: p.Metrics,
		now:     time.Now,
	}

	secret := ""
	if p.Config.WebhookSecretEncrypted != "" {
		decrypted, err := p.Cipher.Decrypt(p.Config.WebhookSecretEncrypted)
		if err != nil {
			s.log.Error("webhook secret cannot be decrypted", zap.Error(err))
			s.secretErr = domain.ErrSecretUnavailable
		} else {
			secret = decrypted
		}
	}
	s.auth = signature.New(secret, p.Config.WebhookToleranceSeconds)
	return s
}

func (s *service) IngestWebhook(ctx context.Context, rawBody []byte, headers http.Header) error {
	if !s.cfg.FlexEnable {
		return domain.ErrNotEnabled
	}
	if s.secretErr != nil {
		return s.secretErr
	}

	if _, err := s.auth.VerifyWebhook(rawBody, headers.Get(s.cfg.WebhookSignatureHeader)); err != nil {
		s.record(ctx, "unknown", "rejected")
		return err
	}

	if !json.Valid(rawBody) {
		s.record(ctx, "unknown", "invalid_payload")
		return domain.ErrInvalidPayload
	}

	var event domain.Event
	decoder := json.NewDecoder(bytes.NewReader(rawBody))
	decoder.UseNumber()
	if err := decoder.Decode(&event); err != nil {
		s.record(ctx, "unknown", "invalid_payload")
		return domain.ErrInvalidPayload
	}

	log := s.log.With(
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
	)

	var recordID snowflake.ID
	if event.ID != "" {
		id, err := s.storeEvent(ctx, &event, rawBody)
		if err != nil {
			log.Error("failed to record webhook event", zap.Error(err))
			return err
		}
		recordID = id
	}

	s.dispatch(ctx, log, &event)

	if recordID != 0 {
		if err := s.markProcessed(ctx, recordID); err != nil {
			log.Warn("failed to mark event processed", zap.Error(err))
		}
	}
	return nil
}

// dispatch routes an authenticated event. Handler failures are logged and
// swallowed; the delivery is already authenticated and recorded, so the
// gateway must not retry it.
func (s *service) dispatch(ctx context.Context, log *zap.Logger, event *domain.Event) {
	switch {
	case event.Type == "payment_intent.succeeded":
		// Acknowledged without action. Payment completion is recorded by
		// the checkout controller when the buyer returns.
		s.record(ctx, event.Type, "acknowledged")

	case strings.Contains(event.Type, "refund"):
		s.handleRefund(ctx, log, event)

	default:
		log.Info("ignoring unhandled event type")
		s.record(ctx, event.Type, "ignored")
	}
}

func (s *service) handleRefund(ctx context.Context, log *zap.Logger, event *domain.Event) {
	object := event.Data.Object

	sessionID := firstString(object, "checkout_session_id", "session_id", "id")
	if sessionID == "" {
		log.Warn("refund event carries no checkout session id")
		s.record(ctx, event.Type, "missing_session")
		return
	}

	amount, ok := refundAmount(object)
	if !ok {
		log.Warn("refund event carries no parseable amount",
			zap.String("session_id", sessionID))
		s.record(ctx, event.Type, "missing_amount")
		return
	}

	var eventID *string
	if event.ID != "" {
		eventID = &event.ID
	}

	result, err := s.refunds.PostRefundARBySession(ctx, sessionID, amount, refunddomain.SourceWebhook, eventID)
	switch {
	case err != nil:
		log.Error("refund posting failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		s.record(ctx, event.Type, "posting_failed")
	case result.Skipped:
		log.Info("refund already posted for event",
			zap.String("session_id", sessionID))
		s.record(ctx, event.Type, "deduplicated")
	default:
		log.Info("refund posted from webhook",
			zap.String("session_id", sessionID),
			zap.String("ar_session_id", result.ARSessionID.String()))
		s.record(ctx, event.Type, "posted")
	}
}

func (s *service) storeEvent(ctx context.Context, event *domain.Event, rawBody []byte) (snowflake.ID, error) {
	id := s.genID.Generate()
	res := s.db.WithContext(ctx).Exec(
		`INSERT INTO module_flex_webhook_events (id, event_id, event_type, payload, received_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (event_id) DO NOTHING`,
		id,
		event.ID,
		event.Type,
		rawBody,
		s.now().UTC(),
	)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		// Redelivery; the earlier row keeps its processed_at.
		return 0, nil
	}
	return id, nil
}

func (s *service) markProcessed(ctx context.Context, id snowflake.ID) error {
	return s.db.WithContext(ctx).Exec(
		`UPDATE module_flex_webhook_events SET processed_at = ? WHERE id = ?`,
		s.now().UTC(),
		id,
	).Error
}

func (s *service) record(ctx context.Context, eventType, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordWebhookEvent(ctx, eventType, outcome)
	}
}

// refundAmount extracts the refunded amount from an event object. A nested
// refund object's amount takes precedence over the top-level one.
func refundAmount(object map[string]any) (decimal.Decimal, bool) {
	raw := object["amount"]
	if nested, ok := object["refund"].(map[string]any); ok {
		if v, ok := nested["amount"]; ok {
			raw = v
		}
	}
	return parseAmount(raw)
}

func parseAmount(raw any) (decimal.Decimal, bool) {
	var text string
	switch cast := raw.(type) {
	case json.Number:
		text = cast.String()
	case string:
		text = strings.TrimSpace(cast)
	case float64:
		return decimal.NewFromFloat(cast), true
	default:
		return decimal.Decimal{}, false
	}
	if text == "" {
		return decimal.Decimal{}, false
	}
	parsed, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return parsed, true
}

func firstString(object map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := object[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}
