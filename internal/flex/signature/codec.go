package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Header is a parsed signature header value. Timestamp is nil for the
// bare-digest encoding.
type Header struct {
	Timestamp *int64
	Digest    string
}

// ComputeDigest returns the lowercase hex HMAC-SHA-256 of message.
func ComputeDigest(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// ConstantTimeEqual compares two hex digests in time independent of where
// they first differ.
func ConstantTimeEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

// ParseHeader parses a signature header value. The value is either a bare
// hex digest, or a comma-separated list of key=value segments where `t` is
// a unix timestamp and `v1` is the digest. Unknown keys are ignored and
// segments without `=` are skipped. Without any v1 segment the whole value
// is taken as a bare digest.
func ParseHeader(value string) Header {
	value = strings.TrimSpace(value)
	if !strings.Contains(value, "v1=") {
		return Header{Digest: value}
	}

	var parsed Header
	for _, segment := range strings.Split(value, ",") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		keyValue := strings.SplitN(segment, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		val := strings.TrimSpace(keyValue[1])
		switch key {
		case "t":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err == nil {
				parsed.Timestamp = &ts
			}
		case "v1":
			parsed.Digest = val
		}
	}
	return parsed
}

// freshEnough applies the clock-skew tolerance. A non-positive tolerance
// disables the check entirely.
func freshEnough(ts int64, toleranceSeconds int, now time.Time) bool {
	if toleranceSeconds <= 0 {
		return true
	}
	delta := now.Unix() - ts
	if delta < 0 {
		delta = -delta
	}
	return delta <= int64(toleranceSeconds)
}
