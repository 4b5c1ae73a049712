package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kyc-backend/internal/kyc"
	"kyc-backend/internal/mail"
	"kyc-backend/internal/shared/metrics"
	"kyc-backend/internal/shared/telemetry"
)

// Service processes the KYC inbox in batches.
type Service struct {
	Inbox    mail.Inbox
	Ingestor *Ingestor
	Records  kyc.RecordStore
	Seen     SeenStore
	Metrics  *metrics.Metrics
	Query    string
}

// BatchSummary reports one ProcessNewEmails run.
type BatchSummary struct {
	Fetched    int      `json:"fetched"`
	Processed  int      `json:"processed"`
	Skipped    int      `json:"skipped"`
	Duplicates int      `json:"duplicates"`
	Failed     int      `json:"failed"`
	Customers  []string `json:"customers"`
	Failures   []string `json:"failures,omitempty"`
}

// String renders the summary for operators, e.g. "processed 5, 1 failed: <reason>".
func (s BatchSummary) String() string {
	parts := []string{fmt.Sprintf("processed %d", s.Processed)}
	if s.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("skipped %d", s.Skipped))
	}
	if s.Duplicates > 0 {
		parts = append(parts, fmt.Sprintf("%d already seen", s.Duplicates))
	}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed: %s", s.Failed, strings.Join(s.Failures, "; ")))
	}
	return strings.Join(parts, ", ")
}

// ProcessNewEmails fetches candidate messages and ingests each one. A failing
// message is counted and the batch moves on; only fetch failures and
// cancellation abort the run.
func (s *Service) ProcessNewEmails(ctx context.Context) (BatchSummary, error) {
	start := time.Now()
	defer s.Metrics.ObserveOperation("process_new_emails", start)

	var summary BatchSummary
	query := s.Query
	if query == "" {
		query = mail.DefaultQuery
	}

	msgs, err := s.Inbox.FetchKYCMessages(ctx, query)
	if err != nil {
		return summary, fmt.Errorf("fetch messages: %w", err)
	}
	summary.Fetched = len(msgs)

	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if s.alreadySeen(ctx, msg.ID) {
			summary.Duplicates++
			s.Metrics.Email("duplicate")
			continue
		}

		rec, err := s.Ingestor.Ingest(ctx, msg)
		if err != nil {
			var perr *kyc.ParseError
			if errors.As(err, &perr) {
				summary.Skipped++
				s.Metrics.Email("skipped")
				telemetry.Info("ingest.message.skipped", map[string]any{
					"message_id": msg.ID,
					"subject":    msg.Subject,
				})
				s.markSeen(ctx, msg.ID, "")
				continue
			}
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			s.fail(&summary, msg, err)
			continue
		}

		if err := s.Records.Upsert(ctx, rec); err != nil {
			s.fail(&summary, msg, err)
			continue
		}

		summary.Processed++
		summary.Customers = append(summary.Customers, rec.CustomerID)
		s.Metrics.Email("processed")
		s.Metrics.Decision(string(rec.Status))
		telemetry.Info("ingest.message.processed", map[string]any{
			"message_id":  msg.ID,
			"customer_id": rec.CustomerID,
			"status":      string(rec.Status),
			"flags":       len(rec.Flags),
		})
		s.markSeen(ctx, msg.ID, rec.CustomerID)
	}

	telemetry.Info("ingest.batch.complete", map[string]any{
		"fetched":    summary.Fetched,
		"processed":  summary.Processed,
		"skipped":    summary.Skipped,
		"duplicates": summary.Duplicates,
		"failed":     summary.Failed,
	})
	return summary, nil
}

func (s *Service) fail(summary *BatchSummary, msg mail.Message, err error) {
	summary.Failed++
	summary.Failures = append(summary.Failures, err.Error())
	s.Metrics.Email("failed")
	telemetry.Error("ingest.message.failed", map[string]any{
		"message_id": msg.ID,
		"subject":    msg.Subject,
		"error":      err.Error(),
	})
}

func (s *Service) alreadySeen(ctx context.Context, messageID string) bool {
	if s.Seen == nil || messageID == "" {
		return false
	}
	seen, err := s.Seen.Seen(ctx, messageID)
	if err != nil {
		telemetry.Warn("ingest.seen.lookup_failed", map[string]any{"message_id": messageID, "error": err.Error()})
		return false
	}
	return seen
}

func (s *Service) markSeen(ctx context.Context, messageID, customerID string) {
	if s.Seen == nil || messageID == "" {
		return
	}
	if err := s.Seen.MarkSeen(ctx, messageID, customerID); err != nil {
		telemetry.Warn("ingest.seen.mark_failed", map[string]any{"message_id": messageID, "error": err.Error()})
	}
}
