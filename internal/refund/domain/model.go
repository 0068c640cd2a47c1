package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Source identifies which path initiated a refund posting.
type Source string

const (
	SourceController Source = "controller"
	SourceWebhook    Source = "webhook"
)

// Payment is the originating payment row in the host EMR ledger. Read-only
// to this module; its `source` column carries the gateway session id.
type Payment struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	Pid       int64     `gorm:"column:pid"`
	Encounter int64     `gorm:"column:encounter"`
	Source    string    `gorm:"column:source"`
	Dtime     time.Time `gorm:"column:dtime"`
}

func (Payment) TableName() string { return "payments" }

// ARSession groups one financial posting. Refunds carry a negative
// pay_total.
type ARSession struct {
	ID             snowflake.ID    `gorm:"column:session_id;primaryKey"`
	PayerID        int64           `gorm:"column:payer_id"`
	UserID         int64           `gorm:"column:user_id"`
	Reference      string          `gorm:"column:reference"`
	CheckDate      time.Time       `gorm:"column:check_date"`
	DepositDate    time.Time       `gorm:"column:deposit_date"`
	PayTotal       decimal.Decimal `gorm:"column:pay_total;type:decimal(12,2)"`
	PaymentType    string          `gorm:"column:payment_type"`
	Description    string          `gorm:"column:description"`
	PatientID      int64           `gorm:"column:patient_id"`
	PaymentMethod  string          `gorm:"column:payment_method"`
	AdjustmentCode string          `gorm:"column:adjustment_code"`
	PostToDate     time.Time       `gorm:"column:post_to_date"`
}

func (ARSession) TableName() string { return "ar_session" }

// ARActivity is a per-encounter ledger line. sequence_no is strictly
// increasing per (pid, encounter).
type ARActivity struct {
	ID          snowflake.ID    `gorm:"column:id;primaryKey"`
	Pid         int64           `gorm:"column:pid;index:ix_ar_activity_pid_encounter,priority:1"`
	Encounter   int64           `gorm:"column:encounter;index:ix_ar_activity_pid_encounter,priority:2"`
	SequenceNo  int64           `gorm:"column:sequence_no"`
	PayerType   int             `gorm:"column:payer_type"`
	PostTime    time.Time       `gorm:"column:post_time"`
	PostUser    int64           `gorm:"column:post_user"`
	ARSessionID snowflake.ID    `gorm:"column:session_id"`
	PayAmount   decimal.Decimal `gorm:"column:pay_amount;type:decimal(12,2)"`
	AdjAmount   decimal.Decimal `gorm:"column:adj_amount;type:decimal(12,2)"`
	AccountCode string          `gorm:"column:account_code"`
}

func (ARActivity) TableName() string { return "ar_activity" }

// Marker is the idempotency record for one processed refund attempt. At
// most one marker exists per non-null gateway event id; null-event-id
// refunds are not deduplicated here.
type Marker struct {
	ID           snowflake.ID    `gorm:"column:id;primaryKey"`
	SessionID    string          `gorm:"column:session_id;type:text;not null"`
	EventID      *string         `gorm:"column:event_id;type:text;uniqueIndex"`
	Amount       decimal.Decimal `gorm:"column:amount;type:decimal(12,2);not null"`
	Source       string          `gorm:"column:source;type:text;not null"`
	ARSessionID  snowflake.ID    `gorm:"column:ar_session_id"`
	ARActivityID snowflake.ID    `gorm:"column:ar_activity_id"`
	CreatedAt    time.Time       `gorm:"column:created_at;not null"`
}

func (Marker) TableName() string { return "module_flex_refunds" }

// Result is the outcome of a refund posting.
type Result struct {
	Skipped      bool
	ARSessionID  snowflake.ID
	ARActivityID snowflake.ID
}

// Service posts verified refunds into the AR ledger exactly once.
type Service interface {
	// PostRefundARBySession reverses the payment identified by the gateway
	// session id. amount is a positive magnitude; negation happens inside.
	// eventID, when non-nil, deduplicates at-least-once deliveries.
	PostRefundARBySession(ctx context.Context, sessionID string, amount decimal.Decimal, source Source, eventID *string) (Result, error)
}
