package agent

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/kyc"
	"kyc-backend/internal/shared/server/middleware"
	"kyc-backend/internal/shared/server/respond"
)

// Handler exposes the agent operations over HTTP.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches agent routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/emails/process", h.processEmails)
	rg.POST("/ask", h.ask)
	rg.POST("/notifications/send", h.sendNotifications)
	rg.POST("/records/revalidate", h.revalidate)
	rg.GET("/records", h.listRecords)
	rg.GET("/records/:customerId", h.getRecord)
	rg.GET("/report", h.report)
}

func (h *Handler) processEmails(c *gin.Context) {
	summary, err := h.Svc.ProcessNewEmails(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusBadGateway, "inbox_unavailable", "failed to process emails", nil)
		return
	}
	respond.Summary(c, summary)
}

type askRequest struct {
	Text string `json:"text"`
}

func (h *Handler) ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "text is required", []map[string]string{
			{"field": "text", "issue": "required"},
		})
		return
	}

	answer, err := h.Svc.Ask(c.Request.Context(), req.Text)
	c.Set(middleware.IntentKey, string(answer.Intent))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to answer", nil)
		return
	}
	respond.OK(c, answer)
}

type notifyRequest struct {
	OverrideEmail string `json:"overrideEmail"`
}

func (h *Handler) sendNotifications(c *gin.Context) {
	var req notifyRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
			return
		}
	}
	override := strings.TrimSpace(req.OverrideEmail)
	if override != "" && !strings.Contains(override, "@") {
		respond.Error(c, http.StatusBadRequest, "validation_error", "overrideEmail must be an email address", []map[string]string{
			{"field": "overrideEmail", "issue": "invalid"},
		})
		return
	}

	summary, err := h.Svc.SendNotifications(c.Request.Context(), override)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to send notifications", nil)
		return
	}
	respond.Summary(c, summary)
}

func (h *Handler) revalidate(c *gin.Context) {
	summary, err := h.Svc.RevalidateAll(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to revalidate records", nil)
		return
	}
	respond.Summary(c, summary)
}

func (h *Handler) listRecords(c *gin.Context) {
	var status kyc.Status
	if raw := c.Query("status"); raw != "" {
		parsed, ok := kyc.ParseStatus(raw)
		if !ok {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unknown status", []map[string]string{
				{"field": "status", "issue": "invalid"},
			})
			return
		}
		status = parsed
	}

	records, err := h.Svc.ListRecords(c.Request.Context(), status)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list records", nil)
		return
	}
	if records == nil {
		records = []kyc.CustomerRecord{}
	}
	respond.OK(c, records)
}

func (h *Handler) getRecord(c *gin.Context) {
	customerID := strings.TrimSpace(c.Param("customerId"))
	c.Set(middleware.CustomerIDKey, customerID)

	rec, err := h.Svc.Record(c.Request.Context(), customerID)
	if err != nil {
		switch {
		case errors.Is(err, kyc.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "record not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch record", nil)
		}
		return
	}
	respond.OK(c, rec)
}

func (h *Handler) report(c *gin.Context) {
	report, err := h.Svc.Report(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to build report", nil)
		return
	}
	respond.OK(c, gin.H{
		"text":   report.String(),
		"report": report,
	})
}
