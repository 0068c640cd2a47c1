package webhook

import (
	"context"
	"net/http"
)

// Service ingests gateway webhook deliveries.
type Service interface {
	// IngestWebhook authenticates, records, and dispatches one raw webhook
	// delivery. A nil error means the delivery is acknowledged; dispatch
	// failures after authentication are logged and still acknowledged so
	// the gateway does not retry a request we have already recorded.
	IngestWebhook(ctx context.Context, rawBody []byte, headers http.Header) error
}
