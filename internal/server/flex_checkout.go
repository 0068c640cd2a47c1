package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmdurant/oe-module-flex-payments/internal/flex/client"
	flexdomain "github.com/jmdurant/oe-module-flex-payments/internal/flex/domain"
	"github.com/jmdurant/oe-module-flex-payments/internal/flex/signature"
	refunddomain "github.com/jmdurant/oe-module-flex-payments/internal/refund/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateCheckoutSession creates a hosted checkout session on behalf of a
// mobile client. The request must carry a valid HMAC over its amount,
// currency, timestamp, and nonce when a mobile secret is configured.
func (s *Server) CreateCheckoutSession(c *gin.Context) {
	if !s.cfg.FlexEnable {
		AbortWithError(c, flexdomain.ErrNotEnabled)
		return
	}
	if s.mobileSecretErr != nil {
		AbortWithError(c, flexdomain.ErrSecretUnavailable)
		return
	}

	payload, err := decodeJSONObject(c.Request.Body)
	if err != nil {
		AbortWithError(c, flexdomain.ErrInvalidPayload)
		return
	}

	if _, err := s.mobileAuth.VerifyMobile(signature.MobileRequestFromPayload(payload)); err != nil {
		s.recordMobileAuth(c, "rejected")
		AbortWithError(c, err)
		return
	}
	s.recordMobileAuth(c, "accepted")

	amount, ok := payload["amount"].(json.Number)
	if !ok {
		if text, isString := payload["amount"].(string); isString && text != "" {
			amount = json.Number(text)
		} else {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	currency, _ := payload["currency"].(string)
	if currency == "" {
		currency = "usd"
	}

	params := client.CreateCheckoutParams{
		Amount:     amount,
		Currency:   strings.ToLower(currency),
		Metadata:   stringMap(payload["metadata"]),
		SuccessURL: stringValue(payload["success_url"]),
		CancelURL:  stringValue(payload["cancel_url"]),
	}

	session, err := s.flexClient.CreateCheckoutSession(c.Request.Context(), params)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) GetCheckoutSession(c *gin.Context) {
	if !s.cfg.FlexEnable {
		AbortWithError(c, flexdomain.ErrNotEnabled)
		return
	}
	session, err := s.flexClient.GetCheckoutSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) CaptureCheckoutSession(c *gin.Context) {
	if !s.cfg.FlexEnable {
		AbortWithError(c, flexdomain.ErrNotEnabled)
		return
	}
	result, err := s.flexClient.CaptureCheckoutSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RefundCheckoutSession issues a gateway refund and, when auto posting is
// enabled, records the matching AR adjustment. A posting failure does not
// undo the gateway refund; it is reported alongside the gateway response.
func (s *Server) RefundCheckoutSession(c *gin.Context) {
	if !s.cfg.FlexEnable {
		AbortWithError(c, flexdomain.ErrNotEnabled)
		return
	}

	sessionID := c.Param("id")

	var requested json.Number
	if c.Request.Body != nil {
		if payload, err := decodeJSONObject(c.Request.Body); err == nil {
			switch amount := payload["amount"].(type) {
			case json.Number:
				requested = amount
			case string:
				requested = json.Number(strings.TrimSpace(amount))
			}
		}
	}

	result, err := s.flexClient.RefundCheckoutSession(c.Request.Context(), sessionID, requested)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.cfg.AutoPostRefunds {
		s.postControllerRefund(c, sessionID, requested, result)
	}

	c.JSON(http.StatusOK, result)
}

// postControllerRefund posts the AR adjustment for a refund issued through
// this API. The requested amount is authoritative; the gateway response is
// consulted only for full refunds, where no amount was requested. Response
// objects echo the session, whose top-level amount is the charge total, so
// preferring the response would post the full charge for a partial refund.
func (s *Server) postControllerRefund(c *gin.Context, sessionID string, requested json.Number, result map[string]any) {
	var raw any
	if requested != "" {
		raw = requested
	} else if nested, ok := result["refund"].(map[string]any); ok && nested["amount"] != nil {
		raw = nested["amount"]
	} else {
		raw = result["amount"]
	}

	amount, ok := parseRefundAmount(raw)
	if !ok {
		s.log.Warn("refunded amount unknown, skipping ar posting",
			zap.String("session_id", sessionID))
		result["_ar_error"] = "refund_amount_unknown"
		return
	}

	posted, err := s.refunds.PostRefundARBySession(
		c.Request.Context(), sessionID, amount, refunddomain.SourceController, nil)
	switch {
	case err != nil:
		s.log.Error("ar posting failed for controller refund",
			zap.String("session_id", sessionID),
			zap.Error(err))
		result["_ar_error"] = err.Error()
	case posted.Skipped:
		result["_ar_skipped"] = true
	}
}

func (s *Server) SendCheckoutReceipt(c *gin.Context) {
	if !s.cfg.FlexEnable {
		AbortWithError(c, flexdomain.ErrNotEnabled)
		return
	}
	result, err := s.flexClient.SendReceiptByCheckoutSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) recordMobileAuth(c *gin.Context, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordMobileAuth(c.Request.Context(), outcome)
	}
}

func decodeJSONObject(body io.Reader) (map[string]any, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	payload := map[string]any{}
	if err := decoder.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func parseRefundAmount(raw any) (decimal.Decimal, bool) {
	switch cast := raw.(type) {
	case json.Number:
		parsed, err := decimal.NewFromString(cast.String())
		if err != nil {
			return decimal.Decimal{}, false
		}
		return parsed, true
	case string:
		text := strings.TrimSpace(cast)
		if text == "" {
			return decimal.Decimal{}, false
		}
		parsed, err := decimal.NewFromString(text)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return parsed, true
	case float64:
		return decimal.NewFromFloat(cast), true
	default:
		return decimal.Decimal{}, false
	}
}

func stringValue(raw any) string {
	text, _ := raw.(string)
	return text
}

func stringMap(raw any) map[string]string {
	source, ok := raw.(map[string]any)
	if !ok || len(source) == 0 {
		return nil
	}
	out := make(map[string]string, len(source))
	for key, value := range source {
		switch cast := value.(type) {
		case string:
			out[key] = cast
		case json.Number:
			out[key] = cast.String()
		}
	}
	return out
}
