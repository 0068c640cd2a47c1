package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmdurant/oe-module-flex-payments/internal/config"
	"github.com/jmdurant/oe-module-flex-payments/internal/flex/client"
	flexdomain "github.com/jmdurant/oe-module-flex-payments/internal/flex/domain"
	"github.com/jmdurant/oe-module-flex-payments/internal/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubWebhookService struct {
	err    error
	called bool
}

func (s *stubWebhookService) IngestWebhook(ctx context.Context, rawBody []byte, headers http.Header) error {
	s.called = true
	return s.err
}

func newTestServer(t *testing.T, cfg config.Config, webhooks *stubWebhookService) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	return NewServer(ServerParams{
		Gin:        NewEngine(log),
		Cfg:        cfg,
		Log:        log,
		Cipher:     secrets.NewCipher(cfg.ConfigSecret),
		FlexClient: client.New(cfg, secrets.NewCipher(cfg.ConfigSecret), log),
		Webhooks:   webhooks,
	})
}

func perform(s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	s.Engine().ServeHTTP(recorder, req)
	return recorder
}

func errorType(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	return resp.Error.Type
}

func TestHandleFlexWebhookOK(t *testing.T) {
	webhooks := &stubWebhookService{}
	s := newTestServer(t, config.Config{FlexEnable: true}, webhooks)

	recorder := perform(s, http.MethodPost, "/flex/webhook", []byte(`{"id":"evt_1"}`))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, webhooks.called)
}

func TestHandleFlexWebhookAuthFailuresAreOpaque(t *testing.T) {
	for _, failure := range []error{
		flexdomain.ErrMissingSignature,
		flexdomain.ErrInvalidSignature,
		flexdomain.ErrExpired,
		flexdomain.ErrMalformedRequest,
	} {
		s := newTestServer(t, config.Config{FlexEnable: true}, &stubWebhookService{err: failure})
		recorder := perform(s, http.MethodPost, "/flex/webhook", []byte(`{}`))
		assert.Equal(t, http.StatusBadRequest, recorder.Code, "failure %v", failure)
		assert.Equal(t, "authentication_failed", errorType(t, recorder), "failure %v", failure)
	}
}

func TestHandleFlexWebhookSecretUnavailable(t *testing.T) {
	s := newTestServer(t, config.Config{FlexEnable: true}, &stubWebhookService{err: flexdomain.ErrSecretUnavailable})
	recorder := perform(s, http.MethodPost, "/flex/webhook", []byte(`{}`))
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, "configuration_error", errorType(t, recorder))
}

func TestHandleFlexWebhookDisabled(t *testing.T) {
	s := newTestServer(t, config.Config{}, &stubWebhookService{err: flexdomain.ErrNotEnabled})
	recorder := perform(s, http.MethodPost, "/flex/webhook", []byte(`{}`))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestCreateCheckoutSessionDisabled(t *testing.T) {
	s := newTestServer(t, config.Config{}, &stubWebhookService{})
	recorder := perform(s, http.MethodPost, "/flex/checkout/sessions", []byte(`{"amount":"10.00"}`))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestCreateCheckoutSessionGatewayNotConfigured(t *testing.T) {
	// No mobile secret configured: authentication skips; the unconfigured
	// gateway client rejects the call.
	s := newTestServer(t, config.Config{FlexEnable: true}, &stubWebhookService{})
	recorder := perform(s, http.MethodPost, "/flex/checkout/sessions", []byte(`{"amount":"10.00","currency":"usd"}`))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "gateway_not_configured", errorType(t, recorder))
}

func TestCreateCheckoutSessionInvalidJSON(t *testing.T) {
	s := newTestServer(t, config.Config{FlexEnable: true}, &stubWebhookService{})
	recorder := perform(s, http.MethodPost, "/flex/checkout/sessions", []byte(`{`))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "invalid_request", errorType(t, recorder))
}

func TestMobileCORSDisabledByDefault(t *testing.T) {
	s := newTestServer(t, config.Config{FlexEnable: true}, &stubWebhookService{})
	recorder := perform(s, http.MethodPost, "/flex/checkout/sessions", []byte(`{"amount":"10.00"}`))
	assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
}

func TestMobileCORSEnabled(t *testing.T) {
	s := newTestServer(t, config.Config{FlexEnable: true, AllowMobileCORS: true}, &stubWebhookService{})

	recorder := perform(s, http.MethodOptions, "/flex/checkout/sessions", nil)
	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDAssigned(t *testing.T) {
	s := newTestServer(t, config.Config{FlexEnable: true}, &stubWebhookService{})
	recorder := perform(s, http.MethodPost, "/flex/webhook", []byte(`{}`))
	assert.NotEmpty(t, recorder.Header().Get("X-Request-Id"))
}
