package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kyc-backend/internal/intent"
	"kyc-backend/internal/kyc"
	"kyc-backend/internal/llm"
	"kyc-backend/internal/notify"
	"kyc-backend/internal/shared/telemetry"
)

// Ask classifies text and runs the matching operation. Unknown commands go to
// the answerer with a summary of the store, or get HelpText.
func (s *Service) Ask(ctx context.Context, text string) (Answer, error) {
	classifier := s.Classifier
	if classifier == nil {
		classifier = intent.KeywordClassifier{}
	}
	in := classifier.Classify(text)
	s.Metrics.Intent(string(in))

	switch in {
	case intent.SendNotifications:
		summary, err := s.SendNotifications(ctx, "")
		if err != nil {
			return Answer{Intent: in}, err
		}
		return Answer{Intent: in, Text: "Notifications: " + summary.String(), Notification: &summary}, nil

	case intent.Revalidate:
		summary, err := s.RevalidateAll(ctx)
		if err != nil {
			return Answer{Intent: in}, err
		}
		return Answer{Intent: in, Text: "Re-validation: " + summary.String(), Revalidation: &summary}, nil

	case intent.ShowReport:
		report, err := s.Report(ctx)
		if err != nil {
			return Answer{Intent: in}, err
		}
		return Answer{Intent: in, Text: report.String(), Report: &report}, nil

	case intent.ShowExpired, intent.ShowExpiringSoon, intent.ShowFlagged:
		records, err := s.Records.ListAll(ctx)
		if err != nil {
			return Answer{Intent: in}, err
		}
		matched, title := s.filter(in, records)
		return Answer{Intent: in, Text: listText(title, matched), Records: matched}, nil

	default:
		return s.freeForm(ctx, text)
	}
}

func (s *Service) filter(in intent.Intent, records []kyc.CustomerRecord) ([]kyc.CustomerRecord, string) {
	today := s.now()
	window := s.ReminderWindowDays
	if window <= 0 {
		window = notify.DefaultReminderWindowDays
	}

	var (
		out   []kyc.CustomerRecord
		title string
	)
	for _, rec := range records {
		expiry, ok := rec.ExpiryDate()
		days := kyc.DaysBetween(today, expiry)
		switch in {
		case intent.ShowExpired:
			title = "Expired IDs"
			if (ok && days < 0) || kyc.HasExpiryFlag(rec.Flags) {
				out = append(out, rec)
			}
		case intent.ShowExpiringSoon:
			title = fmt.Sprintf("IDs expiring within %d days", window)
			if ok && days >= 0 && days <= window {
				out = append(out, rec)
			}
		case intent.ShowFlagged:
			title = "Records needing review"
			if rec.Status == kyc.StatusHumanReview {
				out = append(out, rec)
			}
		}
	}
	return out, title
}

func listText(title string, records []kyc.CustomerRecord) string {
	if len(records) == 0 {
		return title + ": none"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d):\n", title, len(records))
	for _, rec := range records {
		name := rec.Name
		if name == "" {
			name = "unknown"
		}
		fmt.Fprintf(&b, "- %s %s [%s]", rec.CustomerID, name, rec.Status)
		if rec.IDExpiry != "" {
			fmt.Fprintf(&b, " expires %s", rec.IDExpiry)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Service) freeForm(ctx context.Context, question string) (Answer, error) {
	out := Answer{Intent: intent.Unknown, Text: HelpText}
	if s.Answerer == nil || strings.TrimSpace(question) == "" {
		return out, nil
	}

	data, err := s.dataSummary(ctx)
	if err != nil {
		return out, err
	}
	text, err := s.Answerer.Answer(ctx, question, data)
	if err != nil {
		if errors.Is(err, llm.ErrNotImplemented) {
			return out, nil
		}
		telemetry.Warn("agent.ask.answer_failed", map[string]any{"error": err.Error()})
		out.Text = "I couldn't answer that right now.\n\n" + HelpText
		return out, nil
	}
	out.Text = strings.TrimSpace(text)
	return out, nil
}
