package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/shared/telemetry"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	telemetry.SetOutput(&buf)

	router := gin.New()
	router.Use(RequestID(), OperatorAuth("dev", ""), Logging())
	router.GET("/api/v1/records/:customerId", func(c *gin.Context) {
		c.Set(CustomerIDKey, c.Param("customerId"))
		c.Set(IntentKey, "query")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/records/1001", nil)
	req.Header.Set("X-Request-Id", "req-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) == 0 {
		t.Fatalf("expected log output")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}

	for _, key := range []string{"request_id", "operator", "customer_id", "intent", "duration_ms", "status", "route"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if payload["request_id"] != "req-1" {
		t.Fatalf("unexpected request_id: %v", payload["request_id"])
	}
	if payload["operator"] != anonymousOperator {
		t.Fatalf("unexpected operator: %v", payload["operator"])
	}
	if payload["customer_id"] != "1001" {
		t.Fatalf("unexpected customer_id: %v", payload["customer_id"])
	}
	if payload["route"] != "/api/v1/records/:customerId" {
		t.Fatalf("unexpected route: %v", payload["route"])
	}
}
