// Package intent locates payment-intent identifiers inside gateway checkout
// session payloads. The session shape is externally defined and not fully
// specified, so resolution is a best-effort heuristic over the decoded JSON.
package intent

import (
	"sort"
	"strings"
)

// Payloads are JSON-derived and therefore acyclic, but the structure is not
// ours; cap the descent anyway.
const maxScanDepth = 32

var directKeys = []string{"payment_intent", "payment_intent_id", "latest_payment_intent"}

var containerKeys = []string{"payment", "charges", "captures", "data"}

// ResolveIntentID extracts a payment-intent id from a checkout session
// payload. Direct keys win, then well-known nested containers, then a full
// recursive scan for any string value whose key mentions payment_intent.
func ResolveIntentID(session map[string]any) (string, bool) {
	for _, key := range directKeys {
		if value, ok := session[key].(string); ok && value != "" {
			return value, true
		}
	}

	for _, key := range containerKeys {
		if nested, ok := session[key]; ok && nested != nil {
			if found, ok := scan(nested, 0); ok {
				return found, true
			}
		}
	}

	return scan(session, 0)
}

func scan(value any, depth int) (string, bool) {
	if depth > maxScanDepth {
		return "", false
	}
	switch cast := value.(type) {
	case map[string]any:
		// Map iteration order is randomized; sort so resolution is
		// deterministic when several candidates exist.
		keys := make([]string, 0, len(cast))
		for key := range cast {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			child := cast[key]
			if str, ok := child.(string); ok && str != "" &&
				strings.Contains(strings.ToLower(key), "payment_intent") {
				return str, true
			}
			if found, ok := scan(child, depth+1); ok {
				return found, true
			}
		}
	case []any:
		for _, child := range cast {
			if found, ok := scan(child, depth+1); ok {
				return found, true
			}
		}
	}
	return "", false
}
