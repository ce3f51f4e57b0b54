package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rongwang/marketplace-server/internal/auth"
	"github.com/rongwang/marketplace-server/internal/models"
)

const (
	principalKey    = "principal"
	requestIDKey    = "requestId"
	requestIDHeader = "X-Request-ID"
)

// AuthMiddleware returns a Gin middleware for authentication
func AuthMiddleware(resolver *auth.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := resolver.Resolve(c.GetHeader("Authorization"))
		if err != nil {
			// Every variant gets the same answer so callers can't tell which
			// check failed.
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Status:  "error",
				Code:    "UNAUTHORIZED",
				Message: "Authentication required",
			})
			return
		}

		// Set principal in the context
		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequestLogger tags each request with an id and logs its outcome
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)

		start := time.Now()
		c.Next()

		attrs := []any{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if p, ok := principalFrom(c); ok {
			attrs = append(attrs, "account_id", p.AccountID)
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.ErrorContext(c.Request.Context(), "request failed", attrs...)
		default:
			logger.InfoContext(c.Request.Context(), "request handled", attrs...)
		}
	}
}

func principalFrom(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}
