package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	flexdomain "github.com/jmdurant/oe-module-flex-payments/internal/flex/domain"
	refunddomain "github.com/jmdurant/oe-module-flex-payments/internal/refund/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	// All authentication rejections share one opaque response so a caller
	// cannot learn which check failed.
	case flexdomain.IsAuthFailure(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "authentication_failed",
			Message: "authentication failed",
		}
	case errors.Is(err, flexdomain.ErrSecretUnavailable):
		return http.StatusInternalServerError, errorPayload{
			Type:    "configuration_error",
			Message: "gateway secret unavailable",
		}
	case errors.Is(err, flexdomain.ErrNotEnabled):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, flexdomain.ErrNotConfigured):
		return http.StatusBadRequest, errorPayload{
			Type:    "gateway_not_configured",
			Message: "gateway is not configured",
		}
	case errors.Is(err, flexdomain.ErrInvalidPayload),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, refunddomain.ErrInvalidAmount),
		errors.Is(err, refunddomain.ErrInvalidSession):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid request",
		}
	case errors.Is(err, flexdomain.ErrIntentNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "payment_intent_not_found",
			Message: "payment intent id not found",
		}
	case errors.Is(err, refunddomain.ErrPaymentNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}
