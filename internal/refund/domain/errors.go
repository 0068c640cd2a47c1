package domain

import "errors"

var (
	// ErrPaymentNotFound is terminal: retrying will not make the
	// originating payment appear.
	ErrPaymentNotFound = errors.New("payment_not_found")

	ErrInvalidAmount  = errors.New("invalid_amount")
	ErrInvalidSession = errors.New("invalid_session")
	ErrInvalidSource  = errors.New("invalid_source")
)
