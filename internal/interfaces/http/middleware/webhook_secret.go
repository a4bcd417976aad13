package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nurcrm/backend/internal/interfaces/http/dto"
)

// BridgeTokenHeader carries the webhook shared secret
const BridgeTokenHeader = "X-Bridge-Token"

// WebhookSecretMiddleware gates bridge webhook routes behind the shared
// secret. The comparison is constant-time and the request is rejected before
// any handler runs, so a bad secret can never mutate state.
func WebhookSecretMiddleware(secret string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		presented := c.GetHeader(BridgeTokenHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			logger.Warn("webhook rejected: invalid shared secret",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse(dto.ErrCodeInvalidWebhookAuth, "Invalid webhook credentials"))
			return
		}
		c.Next()
	}
}
