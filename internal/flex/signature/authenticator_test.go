package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jmdurant/oe-module-flex-payments/internal/flex/domain"
)

const testSecret = "whsec_test"

func fixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}

func digest(secret string, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookBareDigest(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"checkout_session.refunded"}`)
	auth := New(testSecret, 300)

	result, err := auth.VerifyWebhook(body, digest(testSecret, string(body)))
	if err != nil {
		t.Fatalf("expected valid signature, got error: %v", err)
	}
	if !result.OK || result.Skipped {
		t.Fatalf("unexpected result: %+v", result)
	}

	if _, err := auth.VerifyWebhook(body, digest("wrong", string(body))); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
}

func TestVerifyWebhookTimestamped(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"checkout_session.refunded"}`)
	now := time.Unix(1_700_000_000, 0)
	auth := NewWithClock(testSecret, 300, fixedClock(now))

	header := func(ts int64, secret string) string {
		return fmt.Sprintf("t=%d,v1=%s", ts, digest(secret, fmt.Sprintf("%d.%s", ts, body)))
	}

	if _, err := auth.VerifyWebhook(body, header(now.Unix(), testSecret)); err != nil {
		t.Fatalf("expected valid signature, got error: %v", err)
	}

	if _, err := auth.VerifyWebhook(body, header(now.Unix()-3600, testSecret)); !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected expired, got %v", err)
	}

	// A stale timestamp with a bad digest must fail on the digest, not
	// reveal anything about freshness.
	if _, err := auth.VerifyWebhook(body, header(now.Unix()-3600, "wrong")); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
}

func TestVerifyWebhookToleranceDisabled(t *testing.T) {
	body := []byte(`{}`)
	now := time.Unix(1_700_000_000, 0)
	auth := NewWithClock(testSecret, 0, fixedClock(now))

	ts := now.Unix() - 86_400
	header := fmt.Sprintf("t=%d,v1=%s", ts, digest(testSecret, fmt.Sprintf("%d.%s", ts, body)))
	if _, err := auth.VerifyWebhook(body, header); err != nil {
		t.Fatalf("expected stale timestamp to pass with tolerance disabled, got %v", err)
	}
}

func TestVerifyWebhookMissingHeader(t *testing.T) {
	auth := New(testSecret, 300)
	if _, err := auth.VerifyWebhook([]byte(`{}`), ""); !errors.Is(err, domain.ErrMissingSignature) {
		t.Fatalf("expected missing signature, got %v", err)
	}
}

func TestVerifyWebhookNoSecret(t *testing.T) {
	auth := New("", 300)
	result, err := auth.VerifyWebhook([]byte(`{}`), "")
	if err != nil {
		t.Fatalf("expected skip without secret, got error: %v", err)
	}
	if !result.Skipped {
		t.Fatalf("expected skipped result, got %+v", result)
	}
}

func TestParseHeader(t *testing.T) {
	bare := ParseHeader("abcdef")
	if bare.Timestamp != nil || bare.Digest != "abcdef" {
		t.Fatalf("unexpected bare parse: %+v", bare)
	}

	parsed := ParseHeader("t=1700000000,v1=deadbeef")
	if parsed.Timestamp == nil || *parsed.Timestamp != 1700000000 || parsed.Digest != "deadbeef" {
		t.Fatalf("unexpected parse: %+v", parsed)
	}

	// Unknown keys and junk segments are skipped.
	parsed = ParseHeader("x=1, ,t=42,v0=skip,v1=cafe")
	if parsed.Timestamp == nil || *parsed.Timestamp != 42 || parsed.Digest != "cafe" {
		t.Fatalf("unexpected parse: %+v", parsed)
	}
}

func mobileRequest(now time.Time, secret string) MobileRequest {
	req := MobileRequest{
		TS:       fmt.Sprintf("%d", now.Unix()),
		Nonce:    "nonce-1",
		Amount:   "42.50",
		Currency: "usd",
	}
	req.Signature = digest(secret, req.Amount+"."+req.Currency+"."+req.TS+"."+req.Nonce)
	return req
}

func TestVerifyMobile(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	auth := NewWithClock(testSecret, 300, fixedClock(now))

	if _, err := auth.VerifyMobile(mobileRequest(now, testSecret)); err != nil {
		t.Fatalf("expected valid request, got error: %v", err)
	}

	if _, err := auth.VerifyMobile(mobileRequest(now, "wrong")); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}

	stale := mobileRequest(now.Add(-time.Hour), testSecret)
	if _, err := auth.VerifyMobile(stale); !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
}

func TestVerifyMobileMissingFields(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	auth := NewWithClock(testSecret, 300, fixedClock(now))

	for _, mutate := range []func(*MobileRequest){
		func(r *MobileRequest) { r.TS = "" },
		func(r *MobileRequest) { r.Nonce = "" },
		func(r *MobileRequest) { r.Signature = "" },
	} {
		req := mobileRequest(now, testSecret)
		mutate(&req)
		if _, err := auth.VerifyMobile(req); !errors.Is(err, domain.ErrMalformedRequest) {
			t.Fatalf("expected malformed request, got %v", err)
		}
	}
}

func TestVerifyMobileUnparseableTimestamp(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	auth := NewWithClock(testSecret, 300, fixedClock(now))

	req := mobileRequest(now, testSecret)
	req.TS = "not-a-number"
	if _, err := auth.VerifyMobile(req); !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected expired for unparseable timestamp, got %v", err)
	}
}

func TestVerifyMobileToleranceDisabled(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	auth := NewWithClock(testSecret, 0, fixedClock(now))

	// With tolerance disabled the timestamp still participates in the
	// signed string but is never compared to the clock.
	if _, err := auth.VerifyMobile(mobileRequest(now.Add(-24*time.Hour), testSecret)); err != nil {
		t.Fatalf("expected stale request to pass with tolerance disabled, got %v", err)
	}
}

func TestVerifyMobileNoSecret(t *testing.T) {
	auth := New("", 300)
	result, err := auth.VerifyMobile(MobileRequest{})
	if err != nil {
		t.Fatalf("expected skip without secret, got error: %v", err)
	}
	if !result.Skipped {
		t.Fatalf("expected skipped result, got %+v", result)
	}
}

func TestMobileRequestFromPayloadRawForms(t *testing.T) {
	// Numeric wire values must keep their exact textual form; 42.50 and
	// 42.5 sign differently.
	payload := map[string]any{
		"amount":    json.Number("42.50"),
		"currency":  "usd",
		"ts":        json.Number("1700000000"),
		"nonce":     "n1",
		"signature": "sig",
	}
	req := MobileRequestFromPayload(payload)
	if req.Amount != "42.50" || req.TS != "1700000000" {
		t.Fatalf("raw string forms not preserved: %+v", req)
	}
}
