package agent

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyc-backend/internal/ingest"
	"kyc-backend/internal/kyc"
)

func setupRouter(t *testing.T) (*gin.Engine, *Service, *fakeSender) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, _, sender := newService(t)
	svc.Emails = &fakeEmails{summary: ingest.BatchSummary{Fetched: 1, Processed: 1, Customers: []string{"98765"}}}

	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r, svc, sender
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestHandlerAsk(t *testing.T) {
	r, _, _ := setupRouter(t)

	resp := do(r, http.MethodPost, "/api/v1/ask", `{"text":"show expired"}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var ans Answer
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ans))
	assert.Equal(t, "show_expired", string(ans.Intent))
	require.Len(t, ans.Records, 1)
	assert.Equal(t, "98765", ans.Records[0].CustomerID)
}

func TestHandlerAskValidation(t *testing.T) {
	r, _, _ := setupRouter(t)

	resp := do(r, http.MethodPost, "/api/v1/ask", `{"text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), `"code":"validation_error"`)

	resp = do(r, http.MethodPost, "/api/v1/ask", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandlerSendNotifications(t *testing.T) {
	r, _, sender := setupRouter(t)

	resp := do(r, http.MethodPost, "/api/v1/notifications/send", `{"overrideEmail":"ops@example.com"}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var out struct {
		Summary string              `json:"summary"`
		Result  NotificationSummary `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 2, out.Result.Sent)
	assert.Equal(t, "2 due, sent 2, skipped 0", out.Summary)
	for _, m := range sender.sent {
		assert.Equal(t, "ops@example.com", m.to)
	}

	resp = do(r, http.MethodPost, "/api/v1/notifications/send", `{"overrideEmail":"not-an-address"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(r, http.MethodPost, "/api/v1/notifications/send", "")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestHandlerProcessAndRevalidate(t *testing.T) {
	r, _, _ := setupRouter(t)

	resp := do(r, http.MethodPost, "/api/v1/emails/process", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"summary":"processed 1"`)

	resp = do(r, http.MethodPost, "/api/v1/records/revalidate", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"summary":"revalidated 3, 2 changed"`)
}

func TestHandlerRecords(t *testing.T) {
	r, _, _ := setupRouter(t)

	resp := do(r, http.MethodGet, "/api/v1/records", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var all []kyc.CustomerRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	assert.Len(t, all, 3)

	resp = do(r, http.MethodGet, "/api/v1/records?status=rejected", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "[]", strings.TrimSpace(resp.Body.String()))

	resp = do(r, http.MethodGet, "/api/v1/records?status=maybe", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(r, http.MethodGet, "/api/v1/records/1001", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var rec kyc.CustomerRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, "soon@example.com", rec.CustomerEmail)

	resp = do(r, http.MethodGet, "/api/v1/records/404", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Contains(t, resp.Body.String(), `"code":"not_found"`)
}

func TestHandlerReport(t *testing.T) {
	r, _, _ := setupRouter(t)
	resp := do(r, http.MethodGet, "/api/v1/report", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var out struct {
		Text   string `json:"text"`
		Report Report `json:"report"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 3, out.Report.Total)
	assert.Contains(t, out.Text, "Total Records: 3")
}
