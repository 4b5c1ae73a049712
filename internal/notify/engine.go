// Package notify finds customers whose ID has expired or is about to, and sends
// them notices with an append-only audit trail.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"kyc-backend/internal/kyc"
	"kyc-backend/internal/mail"
	"kyc-backend/internal/shared/metrics"
	"kyc-backend/internal/shared/telemetry"
)

const (
	DefaultReminderWindowDays = 30
	// ExpiryNoticeDueDays is the action window stated to the customer.
	ExpiryNoticeDueDays = 7
)

// Job is one notice to send.
type Job struct {
	Record          kyc.CustomerRecord
	Action          kyc.Action
	DueInDays       int
	DaysUntilExpiry int
}

// ScanOptions tunes Scan.
type ScanOptions struct {
	ReminderWindowDays int
	OverrideEmail      string
}

// ScanResult lists due jobs in record order. MissingEmail counts jobs that
// have no recipient unless an override is supplied.
type ScanResult struct {
	Jobs         []Job
	MissingEmail int
}

// Scan classifies records into notice jobs. It is pure and keeps input order.
func Scan(records []kyc.CustomerRecord, today time.Time, opts ScanOptions) ScanResult {
	window := opts.ReminderWindowDays
	if window <= 0 {
		window = DefaultReminderWindowDays
	}

	var out ScanResult
	for _, rec := range records {
		job, ok := classify(rec, today, window)
		if !ok {
			continue
		}
		if strings.TrimSpace(opts.OverrideEmail) == "" && strings.TrimSpace(rec.CustomerEmail) == "" {
			out.MissingEmail++
		}
		out.Jobs = append(out.Jobs, job)
	}
	return out
}

func classify(rec kyc.CustomerRecord, today time.Time, window int) (Job, bool) {
	expiry, hasExpiry := rec.ExpiryDate()
	days := 0
	if hasExpiry {
		days = kyc.DaysBetween(today, expiry)
	}

	switch {
	case rec.Status == kyc.StatusRejected && kyc.HasExpiryFlag(rec.Flags):
		return Job{Record: rec, Action: kyc.ActionExpiryNotice, DueInDays: ExpiryNoticeDueDays, DaysUntilExpiry: days}, true
	case rec.Status == kyc.StatusRejected || !hasExpiry:
		return Job{}, false
	case days < 0:
		// Expired since the last evaluation and not yet revalidated.
		return Job{Record: rec, Action: kyc.ActionExpiryNotice, DueInDays: ExpiryNoticeDueDays, DaysUntilExpiry: days}, true
	case days <= window:
		return Job{Record: rec, Action: kyc.ActionReminder, DaysUntilExpiry: days}, true
	default:
		return Job{}, false
	}
}

// Result summarizes one Send call.
type Result struct {
	Sent    int     `json:"sent"`
	Skipped int     `json:"skipped"`
	Errors  []error `json:"-"`
}

// ErrorMessages returns Errors as strings.
func (r Result) ErrorMessages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		out = append(out, err.Error())
	}
	return out
}

// String renders the result for operators.
func (r Result) String() string {
	s := fmt.Sprintf("sent %d, skipped %d", r.Sent, r.Skipped)
	if len(r.Errors) > 0 {
		s += fmt.Sprintf(", %d failed: %s", len(r.Errors), strings.Join(r.ErrorMessages(), "; "))
	}
	return s
}

// Engine delivers jobs and records each outcome in the audit log.
type Engine struct {
	Sender  mail.Sender
	Log     kyc.RecordStore
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Send delivers jobs in order. A failed send is logged as an ERROR entry and the
// run continues. A successful send whose log append fails still counts as sent
// and the append error is reported.
func (e *Engine) Send(ctx context.Context, jobs []Job, override string) Result {
	var res Result
	override = strings.TrimSpace(override)

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, err)
			return res
		}

		recipient := override
		if recipient == "" {
			recipient = strings.TrimSpace(job.Record.CustomerEmail)
		}
		if recipient == "" {
			res.Skipped++
			telemetry.Info("notify.job.skipped", map[string]any{
				"customer_id": job.Record.CustomerID,
				"reason":      "no recipient",
			})
			continue
		}

		subject, body, err := Render(job)
		if err == nil {
			err = e.Sender.Send(ctx, recipient, subject, body)
		}
		if err != nil {
			nerr := &kyc.NotifyError{CustomerID: job.Record.CustomerID, Recipient: recipient, Err: err}
			res.Errors = append(res.Errors, nerr)
			e.Metrics.Notification(string(kyc.ActionError))
			telemetry.Error("notify.send.failed", map[string]any{
				"customer_id": job.Record.CustomerID,
				"action":      string(job.Action),
				"error":       err.Error(),
			})
			if lerr := e.appendLog(ctx, job.Record.CustomerID, kyc.ActionError, fmt.Sprintf("%s to %s failed: %v", job.Action, recipient, err)); lerr != nil {
				res.Errors = append(res.Errors, lerr)
			}
			continue
		}

		res.Sent++
		e.Metrics.Notification(string(job.Action))
		telemetry.Info("notify.send.ok", map[string]any{
			"customer_id": job.Record.CustomerID,
			"action":      string(job.Action),
		})
		if lerr := e.appendLog(ctx, job.Record.CustomerID, job.Action, fmt.Sprintf("Sent to %s: %s", recipient, subject)); lerr != nil {
			res.Errors = append(res.Errors, lerr)
		}
	}
	return res
}

func (e *Engine) appendLog(ctx context.Context, customerID string, action kyc.Action, details string) error {
	if e.Log == nil {
		return nil
	}
	entry := kyc.NotificationLogEntry{
		ID:         uuid.NewString(),
		Timestamp:  e.now(),
		CustomerID: customerID,
		Action:     action,
		Details:    details,
	}
	if err := e.Log.AppendLog(ctx, entry); err != nil {
		return err
	}
	return nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}
