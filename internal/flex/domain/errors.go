package domain

import "errors"

var (
	ErrNotEnabled     = errors.New("gateway_not_enabled")
	ErrNotConfigured  = errors.New("gateway_not_configured")
	ErrInvalidPayload = errors.New("invalid_payload")
	ErrEventIgnored   = errors.New("event_ignored")

	// Authentication outcomes. Handlers collapse all of these into one
	// generic rejection so callers cannot probe which check failed.
	ErrMissingSignature = errors.New("missing_signature")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrExpired          = errors.New("expired")
	ErrMalformedRequest = errors.New("malformed_request")

	// ErrSecretUnavailable means a secret is configured but cannot be
	// decrypted. A deployment problem, not a forged request.
	ErrSecretUnavailable = errors.New("secret_unavailable")

	ErrIntentNotFound = errors.New("payment_intent_id_not_found")
)

// IsAuthFailure reports whether err is a request-authentication rejection.
func IsAuthFailure(err error) bool {
	switch {
	case errors.Is(err, ErrMissingSignature),
		errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrExpired),
		errors.Is(err, ErrMalformedRequest):
		return true
	default:
		return false
	}
}
