package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jmdurant/oe-module-flex-payments/internal/observability/metrics"
	"github.com/jmdurant/oe-module-flex-payments/internal/refund/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// errMarkerClaimed aborts the posting transaction when a concurrent attempt
// for the same event id committed first.
var errMarkerClaimed = errors.New("marker_claimed")

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("refund.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		metrics: p.Metrics,
		now:     time.Now,
	}
}

func (s *Service) PostRefundARBySession(
	ctx context.Context,
	sessionID string,
	amount decimal.Decimal,
	source domain.Source,
	eventID *string,
) (domain.Result, error) {

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Result{}, domain.ErrInvalidSession
	}
	switch source {
	case domain.SourceController, domain.SourceWebhook:
	default:
		return domain.Result{}, domain.ErrInvalidSource
	}
	if amount.Sign() <= 0 {
		return domain.Result{}, domain.ErrInvalidAmount
	}
	if eventID != nil && strings.TrimSpace(*eventID) == "" {
		eventID = nil
	}

	if eventID != nil {
		marker, err := s.repo.FindMarkerByEventID(ctx, s.db, *eventID)
		if err != nil {
			return domain.Result{}, err
		}
		if marker != nil {
			s.recordOutcome(ctx, source, "deduplicated")
			return domain.Result{Skipped: true}, nil
		}
	}

	payment, err := s.repo.FindPaymentBySession(ctx, s.db, sessionID)
	if err != nil {
		return domain.Result{}, err
	}
	if payment == nil {
		s.recordOutcome(ctx, source, "payment_not_found")
		return domain.Result{}, domain.ErrPaymentNotFound
	}

	abs := amount.Abs().Round(2)
	negated := abs.Neg()
	now := s.now().UTC()

	var result domain.Result
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		arSession := &domain.ARSession{
			ID:             s.genID.Generate(),
			Reference:      sessionID,
			CheckDate:      now,
			DepositDate:    now,
			PayTotal:       negated,
			PaymentType:    "patient",
			Description:    "Flex refund",
			PatientID:      payment.Pid,
			PaymentMethod:  "credit card",
			AdjustmentCode: "refund",
			PostToDate:     now,
		}
		if err := s.repo.InsertARSession(ctx, tx, arSession); err != nil {
			return err
		}

		// Allocated under the same transaction that inserts the row, so
		// concurrent posts for one (pid, encounter) cannot collide.
		sequenceNo, err := s.repo.NextSequenceNo(ctx, tx, payment.Pid, payment.Encounter)
		if err != nil {
			return err
		}

		activity := &domain.ARActivity{
			ID:          s.genID.Generate(),
			Pid:         payment.Pid,
			Encounter:   payment.Encounter,
			SequenceNo:  sequenceNo,
			PostTime:    now,
			ARSessionID: arSession.ID,
			PayAmount:   negated,
			AdjAmount:   decimal.Zero,
			AccountCode: "Refund",
		}
		if err := s.repo.InsertARActivity(ctx, tx, activity); err != nil {
			return err
		}

		claimed, err := s.repo.InsertMarker(ctx, tx, &domain.Marker{
			ID:           s.genID.Generate(),
			SessionID:    sessionID,
			EventID:      eventID,
			Amount:       abs,
			Source:       string(source),
			ARSessionID:  arSession.ID,
			ARActivityID: activity.ID,
			CreatedAt:    now,
		})
		if err != nil {
			return err
		}
		if !claimed {
			return errMarkerClaimed
		}

		result = domain.Result{
			ARSessionID:  arSession.ID,
			ARActivityID: activity.ID,
		}
		return nil
	})
	if errors.Is(err, errMarkerClaimed) {
		s.recordOutcome(ctx, source, "deduplicated")
		return domain.Result{Skipped: true}, nil
	}
	if err != nil {
		return domain.Result{}, err
	}

	s.log.Info("refund posted",
		zap.String("session_id", sessionID),
		zap.String("source", string(source)),
		zap.String("amount", abs.StringFixed(2)),
		zap.String("ar_session_id", result.ARSessionID.String()),
	)
	s.recordOutcome(ctx, source, "posted")
	return result, nil
}

func (s *Service) recordOutcome(ctx context.Context, source domain.Source, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordRefundPosting(ctx, string(source), outcome)
	}
}
