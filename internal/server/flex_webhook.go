package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HandleFlexWebhook receives gateway webhook deliveries. The raw body is
// read before any parsing because the signature covers the exact bytes on
// the wire.
func (s *Server) HandleFlexWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.webhooks.IngestWebhook(c.Request.Context(), payload, c.Request.Header); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
