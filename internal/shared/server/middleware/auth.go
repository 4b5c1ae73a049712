package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/shared/server/respond"
)

const (
	operatorKey       = "operator"
	anonymousOperator = "anonymous"
)

// OperatorAuth guards the operator API with a shared bearer token. An empty
// apiKey disables the check in dev and local environments only; elsewhere every
// request is refused.
func OperatorAuth(env, apiKey string) gin.HandlerFunc {
	apiKey = strings.TrimSpace(apiKey)
	open := apiKey == "" && (env == "dev" || env == "local")

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		if isPublicPath(c.Request.URL.Path) {
			c.Next()
			return
		}
		if open {
			c.Set(operatorKey, anonymousOperator)
			c.Next()
			return
		}
		if apiKey == "" {
			respond.Error(c, http.StatusServiceUnavailable, "auth_not_configured", "operator API key is not configured", nil)
			return
		}

		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = strings.TrimSpace(c.GetHeader("X-API-Key"))
		}
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		operator := strings.TrimSpace(c.GetHeader("X-Operator"))
		if operator == "" {
			operator = "api-key"
		}
		c.Set(operatorKey, operator)
		c.Next()
	}
}

// OperatorFromContext returns the operator identity stored by OperatorAuth.
func OperatorFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(operatorKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func isPublicPath(path string) bool {
	switch path {
	case "/api/v1/health", "/metrics":
		return true
	default:
		return false
	}
}
