package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmdurant/oe-module-flex-payments/internal/config"
	"github.com/jmdurant/oe-module-flex-payments/internal/flex/domain"
	"github.com/jmdurant/oe-module-flex-payments/internal/flex/intent"
	"github.com/jmdurant/oe-module-flex-payments/internal/secrets"
	"go.uber.org/zap"
)

// CreateCheckoutParams are the checkout session creation inputs. Amount is
// passed through in the form the caller supplied; the gateway decides units.
type CreateCheckoutParams struct {
	Amount     json.Number
	Currency   string
	Metadata   map[string]string
	SuccessURL string
	CancelURL  string
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client is the Flex gateway REST client.
type Client struct {
	baseURL  string
	apiKey   string
	testMode bool
	http     *http.Client
	log      *zap.Logger
}

// New builds the gateway client, decrypting the configured API key once.
// A missing or undecryptable key yields an unconfigured client; operations
// on it fail with ErrNotConfigured.
func New(cfg config.Config, cipher *secrets.Cipher, log *zap.Logger) *Client {
	apiKey := ""
	if cfg.FlexAPIKeyEncrypted != "" {
		decrypted, err := cipher.Decrypt(cfg.FlexAPIKeyEncrypted)
		if err != nil {
			log.Warn("flex api key unavailable", zap.Error(err))
		} else {
			apiKey = strings.TrimSpace(decrypted)
		}
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.FlexAPIBaseURL, "/"),
		apiKey:   apiKey,
		testMode: cfg.FlexTestMode,
		http:     &http.Client{Timeout: 15 * time.Second},
		log:      log.Named("flex.client"),
	}
}

func (c *Client) IsConfigured() bool {
	return c.apiKey != "" && c.baseURL != ""
}

// CreateCheckoutSession creates a hosted checkout session.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CreateCheckoutParams) (map[string]any, error) {
	body := map[string]any{
		"amount":      params.Amount,
		"currency":    params.Currency,
		"success_url": params.SuccessURL,
		"cancel_url":  params.CancelURL,
		"metadata":    params.Metadata,
	}
	if c.testMode {
		body["test_mode"] = true
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/checkout/sessions", body)
}

// CaptureCheckoutSession captures an authorized checkout session.
func (c *Client) CaptureCheckoutSession(ctx context.Context, sessionID string) (map[string]any, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/checkout/sessions/"+url.PathEscape(sessionID)+"/capture", nil)
}

// RefundCheckoutSession refunds a checkout session, fully when amount is
// empty, partially otherwise.
func (c *Client) RefundCheckoutSession(ctx context.Context, sessionID string, amount json.Number) (map[string]any, error) {
	body := map[string]any{}
	if amount != "" {
		body["amount"] = amount
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/checkout/sessions/"+url.PathEscape(sessionID)+"/refund", body)
}

// GetCheckoutSession fetches a checkout session by id.
func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (map[string]any, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil)
}

// SendReceiptPaymentIntent asks the gateway to email a receipt for a
// payment intent.
func (c *Client) SendReceiptPaymentIntent(ctx context.Context, intentID string) (map[string]any, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/payment_intents/"+url.PathEscape(intentID)+"/receipt", nil)
}

// SendReceiptByCheckoutSession resolves the session's payment intent and
// sends a receipt for it.
func (c *Client) SendReceiptByCheckoutSession(ctx context.Context, sessionID string) (map[string]any, error) {
	session, err := c.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	intentID, ok := intent.ResolveIntentID(session)
	if !ok {
		return nil, domain.ErrIntentNotFound
	}
	return c.SendReceiptPaymentIntent(ctx, intentID)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body map[string]any) (map[string]any, error) {
	if !c.IsConfigured() {
		return nil, domain.ErrNotConfigured
	}

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()

	if resp.StatusCode >= http.StatusBadRequest {
		var gatewayErr errorResponse
		if err := decoder.Decode(&gatewayErr); err == nil && gatewayErr.Error.Message != "" {
			return nil, fmt.Errorf("flex gateway: %s (status %d)", gatewayErr.Error.Message, resp.StatusCode)
		}
		return nil, fmt.Errorf("flex gateway: status %d", resp.StatusCode)
	}

	out := map[string]any{}
	if err := decoder.Decode(&out); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	return out, nil
}
