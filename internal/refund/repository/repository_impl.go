package repository

import (
	"context"

	"github.com/jmdurant/oe-module-flex-payments/internal/refund/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindMarkerByEventID(ctx context.Context, db *gorm.DB, eventID string) (*domain.Marker, error) {
	var item domain.Marker
	err := db.WithContext(ctx).Raw(
		`SELECT id, session_id, event_id, amount, source, ar_session_id, ar_activity_id, created_at
		 FROM module_flex_refunds
		 WHERE event_id = ?
		 LIMIT 1`,
		eventID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindPaymentBySession(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Payment, error) {
	var item domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT id, pid, encounter, source, dtime
		 FROM payments
		 WHERE source = ?
		 ORDER BY dtime DESC
		 LIMIT 1`,
		sessionID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertARSession(ctx context.Context, tx *gorm.DB, session *domain.ARSession) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO ar_session (
			session_id, payer_id, user_id, reference, check_date, deposit_date,
			pay_total, payment_type, description, patient_id, payment_method,
			adjustment_code, post_to_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.PayerID,
		session.UserID,
		session.Reference,
		session.CheckDate,
		session.DepositDate,
		session.PayTotal,
		session.PaymentType,
		session.Description,
		session.PatientID,
		session.PaymentMethod,
		session.AdjustmentCode,
		session.PostToDate,
	).Error
}

func (r *repo) NextSequenceNo(ctx context.Context, tx *gorm.DB, pid, encounter int64) (int64, error) {
	// Lock the encounter's payment rows before reading MAX. Two concurrent
	// postings for the same (pid, encounter) otherwise both read N and both
	// insert N+1; the row lock serializes them. A payment row always exists
	// here because posting resolves the payment first.
	var lockIDs []int64
	err := tx.WithContext(ctx).Raw(
		`SELECT id
		 FROM payments
		 WHERE pid = ? AND encounter = ?
		 FOR UPDATE`,
		pid,
		encounter,
	).Scan(&lockIDs).Error
	if err != nil {
		return 0, err
	}

	var next int64
	err = tx.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(sequence_no), 0) + 1
		 FROM ar_activity
		 WHERE pid = ? AND encounter = ?`,
		pid,
		encounter,
	).Scan(&next).Error
	if err != nil {
		return 0, err
	}
	if next < 1 {
		next = 1
	}
	return next, nil
}

func (r *repo) InsertARActivity(ctx context.Context, tx *gorm.DB, activity *domain.ARActivity) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO ar_activity (
			id, pid, encounter, sequence_no, payer_type, post_time, post_user,
			session_id, pay_amount, adj_amount, account_code
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		activity.ID,
		activity.Pid,
		activity.Encounter,
		activity.SequenceNo,
		activity.PayerType,
		activity.PostTime,
		activity.PostUser,
		activity.ARSessionID,
		activity.PayAmount,
		activity.AdjAmount,
		activity.AccountCode,
	).Error
}

func (r *repo) InsertMarker(ctx context.Context, tx *gorm.DB, marker *domain.Marker) (bool, error) {
	res := tx.WithContext(ctx).Exec(
		`INSERT INTO module_flex_refunds (
			id, session_id, event_id, amount, source,
			ar_session_id, ar_activity_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`,
		marker.ID,
		marker.SessionID,
		marker.EventID,
		marker.Amount,
		marker.Source,
		marker.ARSessionID,
		marker.ARActivityID,
		marker.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
