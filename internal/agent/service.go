// Package agent exposes the operator-facing KYC operations: inbox processing,
// free-text questions, expiry notifications and rule replay.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"kyc-backend/internal/compliance"
	"kyc-backend/internal/ingest"
	"kyc-backend/internal/intent"
	"kyc-backend/internal/kyc"
	"kyc-backend/internal/llm"
	"kyc-backend/internal/notify"
	"kyc-backend/internal/shared/metrics"
	"kyc-backend/internal/shared/telemetry"
)

// recentLogLimit bounds the audit entries handed to the free-form answerer.
const recentLogLimit = 10

// HelpText is returned for unknown commands when no answerer is configured.
const HelpText = `I can help with:
- "show expired IDs"
- "who is expiring soon?"
- "show records needing review"
- "send notifications"
- "revalidate all records"
- "compliance report"`

// EmailProcessor runs one inbox batch.
type EmailProcessor interface {
	ProcessNewEmails(ctx context.Context) (ingest.BatchSummary, error)
}

// Service wires the KYC operations together.
type Service struct {
	Emails     EmailProcessor
	Records    kyc.RecordStore
	Notifier   *notify.Engine
	Evaluator  *compliance.Evaluator
	Classifier intent.Classifier
	// Answerer is optional; without it unknown commands get HelpText.
	Answerer           llm.Answerer
	Metrics            *metrics.Metrics
	ReminderWindowDays int
	Now                func() time.Time
}

// Answer is the response to an Ask call.
type Answer struct {
	Intent       intent.Intent        `json:"intent"`
	Text         string               `json:"text"`
	Records      []kyc.CustomerRecord `json:"records,omitempty"`
	Notification *NotificationSummary `json:"notification,omitempty"`
	Revalidation *RevalidationSummary `json:"revalidation,omitempty"`
	Report       *Report              `json:"report,omitempty"`
}

// NotificationSummary reports one SendNotifications run.
type NotificationSummary struct {
	Jobs         int      `json:"jobs"`
	MissingEmail int      `json:"missingEmail"`
	Sent         int      `json:"sent"`
	Skipped      int      `json:"skipped"`
	Errors       []string `json:"errors,omitempty"`
}

// String renders the summary for operators.
func (s NotificationSummary) String() string {
	out := fmt.Sprintf("%d due, sent %d, skipped %d", s.Jobs, s.Sent, s.Skipped)
	if len(s.Errors) > 0 {
		out += fmt.Sprintf(", %d failed: %s", len(s.Errors), strings.Join(s.Errors, "; "))
	}
	return out
}

// RevalidationSummary reports one RevalidateAll run.
type RevalidationSummary struct {
	Total     int      `json:"total"`
	Changed   int      `json:"changed"`
	Unchanged int      `json:"unchanged"`
	Failed    int      `json:"failed"`
	Updated   []string `json:"updated,omitempty"`
	Failures  []string `json:"failures,omitempty"`
}

// String renders the summary for operators.
func (s RevalidationSummary) String() string {
	out := fmt.Sprintf("revalidated %d, %d changed", s.Total, s.Changed)
	if s.Failed > 0 {
		out += fmt.Sprintf(", %d failed: %s", s.Failed, strings.Join(s.Failures, "; "))
	}
	return out
}

// Report counts records per status.
type Report struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Total       int       `json:"total"`
	Approved    int       `json:"approved"`
	Rejected    int       `json:"rejected"`
	HumanReview int       `json:"humanReview"`
}

// String renders the report as plain text.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "KYC Compliance Report (%s)\n", r.GeneratedAt.Format("2006-01-02 15:04"))
	b.WriteString(strings.Repeat("=", 40) + "\n")
	fmt.Fprintf(&b, "Total Records: %d\n", r.Total)
	fmt.Fprintf(&b, "Approved: %d\n", r.Approved)
	fmt.Fprintf(&b, "Rejected: %d\n", r.Rejected)
	fmt.Fprintf(&b, "Human Review Needed: %d\n", r.HumanReview)
	return b.String()
}

// ProcessNewEmails runs one inbox batch.
func (s *Service) ProcessNewEmails(ctx context.Context) (ingest.BatchSummary, error) {
	if s.Emails == nil {
		return ingest.BatchSummary{}, errors.New("email processing not configured")
	}
	return s.Emails.ProcessNewEmails(ctx)
}

// SendNotifications scans every record and delivers due notices. A non-empty
// override redirects all notices to that address.
func (s *Service) SendNotifications(ctx context.Context, override string) (NotificationSummary, error) {
	start := time.Now()
	defer s.Metrics.ObserveOperation("send_notifications", start)

	if s.Notifier == nil {
		return NotificationSummary{}, errors.New("notifications not configured")
	}
	records, err := s.Records.ListAll(ctx)
	if err != nil {
		return NotificationSummary{}, err
	}

	scan := notify.Scan(records, s.now(), notify.ScanOptions{
		ReminderWindowDays: s.ReminderWindowDays,
		OverrideEmail:      override,
	})
	res := s.Notifier.Send(ctx, scan.Jobs, override)

	summary := NotificationSummary{
		Jobs:         len(scan.Jobs),
		MissingEmail: scan.MissingEmail,
		Sent:         res.Sent,
		Skipped:      res.Skipped,
		Errors:       res.ErrorMessages(),
	}
	telemetry.Info("agent.notifications.complete", map[string]any{
		"jobs":          summary.Jobs,
		"sent":          summary.Sent,
		"skipped":       summary.Skipped,
		"missing_email": summary.MissingEmail,
		"errors":        len(summary.Errors),
		"override":      override != "",
	})
	return summary, nil
}

// RevalidateAll replays the compliance rules over every stored record with
// today's date. Only the rules run again; stored fields and the stored LLM
// verdict are reused as-is.
func (s *Service) RevalidateAll(ctx context.Context) (RevalidationSummary, error) {
	start := time.Now()
	defer s.Metrics.ObserveOperation("revalidate_all", start)

	records, err := s.Records.ListAll(ctx)
	if err != nil {
		return RevalidationSummary{}, err
	}

	evaluator := s.Evaluator
	if evaluator == nil {
		evaluator = compliance.New()
	}
	today := s.now()

	var summary RevalidationSummary
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Total++

		next := evaluator.Evaluate(compliance.CandidateFromRecord(rec), today)
		changed := next.Status != rec.Status || !sameFlags(next.Flags, rec.Flags)
		s.Metrics.Revalidation(changed)
		if !changed {
			summary.Unchanged++
			continue
		}
		if err := s.Records.Upsert(ctx, next); err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, err.Error())
			telemetry.Error("agent.revalidate.upsert_failed", map[string]any{
				"customer_id": rec.CustomerID,
				"error":       err.Error(),
			})
			continue
		}
		summary.Changed++
		summary.Updated = append(summary.Updated, rec.CustomerID)
		telemetry.Info("agent.revalidate.updated", map[string]any{
			"customer_id": rec.CustomerID,
			"from":        string(rec.Status),
			"to":          string(next.Status),
		})
	}
	return summary, nil
}

// Report counts stored records per status.
func (s *Service) Report(ctx context.Context) (Report, error) {
	records, err := s.Records.ListAll(ctx)
	if err != nil {
		return Report{}, err
	}
	r := Report{GeneratedAt: s.now(), Total: len(records)}
	for _, rec := range records {
		switch rec.Status {
		case kyc.StatusApproved:
			r.Approved++
		case kyc.StatusRejected:
			r.Rejected++
		default:
			r.HumanReview++
		}
	}
	return r, nil
}

// Record returns one stored record.
func (s *Service) Record(ctx context.Context, customerID string) (kyc.CustomerRecord, error) {
	return s.Records.Get(ctx, customerID)
}

// ListRecords returns every stored record, optionally filtered by status.
func (s *Service) ListRecords(ctx context.Context, status kyc.Status) ([]kyc.CustomerRecord, error) {
	records, err := s.Records.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return records, nil
	}
	out := make([]kyc.CustomerRecord, 0, len(records))
	for _, rec := range records {
		if rec.Status == status {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func sameFlags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// dataSummary is the JSON view of the store handed to the answerer.
func (s *Service) dataSummary(ctx context.Context) (json.RawMessage, error) {
	records, err := s.Records.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	logs, err := s.Records.ListLogs(ctx, recentLogLimit)
	if err != nil {
		return nil, err
	}

	type recordView struct {
		CustomerID string     `json:"customer_id"`
		Name       string     `json:"name"`
		Status     kyc.Status `json:"status"`
		IDExpiry   string     `json:"id_expiry"`
		Flags      []string   `json:"flags"`
	}
	type logView struct {
		Timestamp  string     `json:"timestamp"`
		CustomerID string     `json:"customer_id"`
		Action     kyc.Action `json:"action"`
	}
	payload := struct {
		Records    []recordView `json:"records"`
		RecentLogs []logView    `json:"recent_logs"`
	}{
		Records:    make([]recordView, 0, len(records)),
		RecentLogs: make([]logView, 0, len(logs)),
	}
	for _, rec := range records {
		payload.Records = append(payload.Records, recordView{
			CustomerID: rec.CustomerID,
			Name:       rec.Name,
			Status:     rec.Status,
			IDExpiry:   rec.IDExpiry,
			Flags:      rec.Flags,
		})
	}
	for _, l := range logs {
		payload.RecentLogs = append(payload.RecentLogs, logView{
			Timestamp:  l.Timestamp.Format(time.RFC3339),
			CustomerID: l.CustomerID,
			Action:     l.Action,
		})
	}
	return json.Marshal(payload)
}
