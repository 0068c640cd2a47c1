package signature

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/jmdurant/oe-module-flex-payments/internal/flex/domain"
)

// Result is a verification outcome. Skipped means no secret is configured
// and authentication is a deliberate no-op, not a failure.
type Result struct {
	OK      bool
	Skipped bool
}

// Authenticator verifies gateway webhooks and mobile-originated requests
// against one shared secret. It is a pure function of its inputs and the
// injected clock; safe for concurrent use.
type Authenticator struct {
	secret           string
	toleranceSeconds int
	now              func() time.Time
}

func New(secret string, toleranceSeconds int) *Authenticator {
	return &Authenticator{
		secret:           secret,
		toleranceSeconds: toleranceSeconds,
		now:              time.Now,
	}
}

// NewWithClock is used by tests to pin the verification clock.
func NewWithClock(secret string, toleranceSeconds int, now func() time.Time) *Authenticator {
	a := New(secret, toleranceSeconds)
	a.now = now
	return a
}

// VerifyWebhook authenticates a raw webhook body against its signature
// header. The timestamped encoding signs "{t}.{body}"; the bare encoding
// signs the body alone. The digest is proven valid before freshness is
// examined so an attacker cannot probe the clock with unauthenticated
// values.
func (a *Authenticator) VerifyWebhook(rawBody []byte, headerValue string) (Result, error) {
	if a.secret == "" {
		return Result{OK: true, Skipped: true}, nil
	}
	headerValue = strings.TrimSpace(headerValue)
	if headerValue == "" {
		return Result{}, domain.ErrMissingSignature
	}

	header := ParseHeader(headerValue)
	if header.Digest == "" {
		return Result{}, domain.ErrInvalidSignature
	}

	message := rawBody
	if header.Timestamp != nil {
		signed := make([]byte, 0, len(rawBody)+21)
		signed = strconv.AppendInt(signed, *header.Timestamp, 10)
		signed = append(signed, '.')
		signed = append(signed, rawBody...)
		message = signed
	}

	if !ConstantTimeEqual(ComputeDigest(a.secret, message), header.Digest) {
		return Result{}, domain.ErrInvalidSignature
	}
	if header.Timestamp != nil && !freshEnough(*header.Timestamp, a.toleranceSeconds, a.now()) {
		return Result{}, domain.ErrExpired
	}
	return Result{OK: true}, nil
}

// MobileRequest carries the signed fields of a mobile checkout request in
// their raw wire string forms.
type MobileRequest struct {
	TS        string
	Nonce     string
	Signature string
	Amount    string
	Currency  string
}

// MobileRequestFromPayload extracts the signed fields from a decoded JSON
// object, keeping each value's string form exactly as received.
func MobileRequestFromPayload(payload map[string]any) MobileRequest {
	return MobileRequest{
		TS:        rawString(payload["ts"]),
		Nonce:     rawString(payload["nonce"]),
		Signature: rawString(payload["signature"]),
		Amount:    rawString(payload["amount"]),
		Currency:  rawString(payload["currency"]),
	}
}

// VerifyMobile authenticates a mobile-originated request. The canonical
// signed string is "{amount}.{currency}.{ts}.{nonce}", reproduced byte
// for byte from the raw wire values. Unlike VerifyWebhook, freshness is
// checked before the digest.
func (a *Authenticator) VerifyMobile(req MobileRequest) (Result, error) {
	if a.secret == "" {
		return Result{OK: true, Skipped: true}, nil
	}
	if req.TS == "" || req.Nonce == "" || req.Signature == "" {
		return Result{}, domain.ErrMalformedRequest
	}

	if a.toleranceSeconds > 0 {
		ts, err := strconv.ParseInt(strings.TrimSpace(req.TS), 10, 64)
		if err != nil {
			ts = 0
		}
		if !freshEnough(ts, a.toleranceSeconds, a.now()) {
			return Result{}, domain.ErrExpired
		}
	}

	base := req.Amount + "." + req.Currency + "." + req.TS + "." + req.Nonce
	if !ConstantTimeEqual(ComputeDigest(a.secret, []byte(base)), req.Signature) {
		return Result{}, domain.ErrInvalidSignature
	}
	return Result{OK: true}, nil
}

func rawString(value any) string {
	switch cast := value.(type) {
	case string:
		return cast
	case json.Number:
		return cast.String()
	case float64:
		return strconv.FormatFloat(cast, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(cast, 10)
	case int:
		return strconv.Itoa(cast)
	case bool:
		return strconv.FormatBool(cast)
	}
	return ""
}
