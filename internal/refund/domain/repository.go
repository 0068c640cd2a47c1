package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository is the storage access layer for refund reconciliation. The
// transactional methods take the caller's tx handle so sequence allocation
// and the marker claim stay inside one atomic commit.
type Repository interface {
	FindMarkerByEventID(ctx context.Context, db *gorm.DB, eventID string) (*Marker, error)
	FindPaymentBySession(ctx context.Context, db *gorm.DB, sessionID string) (*Payment, error)

	InsertARSession(ctx context.Context, tx *gorm.DB, session *ARSession) error
	NextSequenceNo(ctx context.Context, tx *gorm.DB, pid, encounter int64) (int64, error)
	InsertARActivity(ctx context.Context, tx *gorm.DB, activity *ARActivity) error

	// InsertMarker claims the event id. Returns false without error when a
	// concurrent attempt already holds it.
	InsertMarker(ctx context.Context, tx *gorm.DB, marker *Marker) (bool, error)
}
