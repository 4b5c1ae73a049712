package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/shared/telemetry"
)

// Context keys handlers may set to enrich the request log line.
const (
	CustomerIDKey = "customerId"
	IntentKey     = "intent"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		telemetry.Info("request.complete", map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"operator":    OperatorFromContext(c),
			"customer_id": c.GetString(CustomerIDKey),
			"intent":      c.GetString(IntentKey),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		})
	}
}
