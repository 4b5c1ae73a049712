package compliance

import (
	"fmt"
	"time"

	"kyc-backend/internal/kyc"
)

// Evaluator turns parsed candidates into final customer records.
type Evaluator struct {
	Rules []Rule
}

// New returns an Evaluator with the standard rule order.
func New() *Evaluator {
	return &Evaluator{Rules: DefaultRules()}
}

// DefaultRules returns the standard ordered rule chain.
func DefaultRules() []Rule {
	return []Rule{
		ExpiryOverride,
		ExpiryWarning(DefaultWarningWindowDays),
		Consistency,
		AddressRecency(DefaultAddressMaxAgeDays),
		Completeness,
		FlagConsistency,
	}
}

// Evaluate applies the rule chain to c. today is the evaluation instant and also
// becomes the record's ProcessedAt.
func (e *Evaluator) Evaluate(c kyc.Candidate, today time.Time) kyc.CustomerRecord {
	rules := e.Rules
	if rules == nil {
		rules = DefaultRules()
	}

	start := Verdict{Status: c.Status, Flags: append([]string(nil), c.Flags...)}
	if !start.Status.Valid() {
		start.Status = kyc.StatusHumanReview
	}
	facts := Facts{Today: today, Documents: c.Documents}
	facts.Expiry, facts.HasExpiry = kyc.ParseDate(c.IDExpiry)

	final := Finalize(start, facts, rules...)

	snapshot := c.Validation
	snapshot.Status = start.Status
	snapshot.Flags = start.Flags
	snapshot.Report = c.Report

	report := c.Report
	if days, expired := expiredDays(facts); expired {
		report = prefixReport(fmt.Sprintf("REJECTED: ID expired %d days ago.", days), report)
	}

	return kyc.CustomerRecord{
		CustomerID:       c.CustomerID,
		CustomerEmail:    c.CustomerEmail,
		EmailDate:        c.EmailDate,
		Status:           final.Status,
		Name:             c.Name,
		DOB:              c.DOB,
		IDType:           c.IDType,
		IDNumber:         c.IDNumber,
		IDExpiry:         c.IDExpiry,
		Address:          c.Address,
		Report:           report,
		Documents:        append([]kyc.Document(nil), c.Documents...),
		ValidationResult: snapshot,
		Flags:            final.Flags,
		ProcessedAt:      today,
	}
}

// CandidateFromRecord rebuilds the pre-rule candidate stored with rec so rules can
// be replayed without calling the LLM again.
func CandidateFromRecord(rec kyc.CustomerRecord) kyc.Candidate {
	status := rec.ValidationResult.Status
	if !status.Valid() {
		status = kyc.StatusHumanReview
	}
	return kyc.Candidate{
		CustomerID:    rec.CustomerID,
		CustomerEmail: rec.CustomerEmail,
		EmailDate:     rec.EmailDate,
		Status:        status,
		Name:          rec.Name,
		DOB:           rec.DOB,
		IDType:        rec.IDType,
		IDNumber:      rec.IDNumber,
		IDExpiry:      rec.IDExpiry,
		Address:       rec.Address,
		Report:        rec.ValidationResult.Report,
		Documents:     append([]kyc.Document(nil), rec.Documents...),
		Flags:         append([]string(nil), rec.ValidationResult.Flags...),
		Validation:    rec.ValidationResult,
	}
}

func expiredDays(f Facts) (int, bool) {
	if !f.HasExpiry {
		return 0, false
	}
	days := kyc.DaysBetween(f.Expiry, f.Today)
	return days, days > 0
}

func prefixReport(prefix, report string) string {
	if report == "" {
		return prefix
	}
	return prefix + " " + report
}
