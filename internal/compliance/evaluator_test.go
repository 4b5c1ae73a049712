package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyc-backend/internal/kyc"
)

var today = time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)

func completeDocs() []kyc.Document {
	return []kyc.Document{
		{Ref: "passport.pdf", Role: kyc.RoleIDProof, Name: "Asha Rao", DOB: "1990-02-14"},
		{Ref: "bill.pdf", Role: kyc.RoleAddressProof, Name: "asha  rao", IssuedOn: "2024-05-20"},
	}
}

func approvedCandidate(expiry string) kyc.Candidate {
	return kyc.Candidate{
		CustomerID: "1001",
		Status:     kyc.StatusApproved,
		Name:       "Asha Rao",
		DOB:        "1990-02-14",
		IDExpiry:   expiry,
		Report:     "All documents verified.",
		Documents:  completeDocs(),
		Validation: kyc.ValidationResult{Raw: []byte(`{}`)},
	}
}

func TestEvaluateExpiredIDIsRejected(t *testing.T) {
	rec := New().Evaluate(approvedCandidate("2024-06-05"), today)

	assert.Equal(t, kyc.StatusRejected, rec.Status)
	assert.Contains(t, rec.Flags, "ID expired 10 days ago")
	assert.Equal(t, "REJECTED: ID expired 10 days ago. All documents verified.", rec.Report)
	assert.Equal(t, kyc.StatusApproved, rec.ValidationResult.Status, "snapshot keeps the input verdict")
	assert.Equal(t, today, rec.ProcessedAt)
}

func TestEvaluateExpiryTodayIsNotExpired(t *testing.T) {
	rec := New().Evaluate(approvedCandidate("2024-06-15"), today)

	assert.Equal(t, kyc.StatusApproved, rec.Status)
	assert.Equal(t, []string{"ID expires in 0 days"}, rec.Flags)
}

func TestEvaluateExpiringSoonWarnsWithoutDowngrade(t *testing.T) {
	rec := New().Evaluate(approvedCandidate("2024-07-05"), today)

	assert.Equal(t, kyc.StatusApproved, rec.Status)
	assert.Equal(t, []string{"ID expires in 20 days"}, rec.Flags)
}

func TestEvaluateValidApprovedStaysApproved(t *testing.T) {
	rec := New().Evaluate(approvedCandidate("2030-01-01"), today)

	assert.Equal(t, kyc.StatusApproved, rec.Status)
	assert.Empty(t, rec.Flags)
}

func TestEvaluateNameMismatchNeedsReview(t *testing.T) {
	c := approvedCandidate("2030-01-01")
	c.Documents[1].Name = "Asha Kumar"

	rec := New().Evaluate(c, today)

	assert.Equal(t, kyc.StatusHumanReview, rec.Status)
	assert.Contains(t, rec.Flags, kyc.FlagMismatch)
}

func TestEvaluateStaleAddressNeedsReview(t *testing.T) {
	c := approvedCandidate("2030-01-01")
	c.Documents[1].IssuedOn = "2024-01-02"

	rec := New().Evaluate(c, today)

	assert.Equal(t, kyc.StatusHumanReview, rec.Status)
	assert.Contains(t, rec.Flags, kyc.FlagStaleAddress)
}

func TestEvaluateMissingAddressProof(t *testing.T) {
	c := approvedCandidate("2030-01-01")
	c.Documents = c.Documents[:1]

	rec := New().Evaluate(c, today)

	assert.Equal(t, kyc.StatusHumanReview, rec.Status)
	assert.Equal(t, []string{"Missing required document: address_proof"}, rec.Flags)
}

func TestEvaluateLLMExpiryFlagForcesRejection(t *testing.T) {
	c := approvedCandidate("")
	c.Flags = []string{"Document expired per issuer"}

	rec := New().Evaluate(c, today)

	assert.Equal(t, kyc.StatusRejected, rec.Status)
}

func TestEvaluateNegatedExpiryTextDoesNotReject(t *testing.T) {
	c := approvedCandidate("2030-01-01")
	c.Flags = []string{"Checked whether ID expired: no"}

	rec := New().Evaluate(c, today)

	assert.Equal(t, kyc.StatusApproved, rec.Status)
	assert.Contains(t, rec.Flags, "Checked whether ID expired: no")
}

func TestEvaluateUnknownStatusBecomesReview(t *testing.T) {
	c := approvedCandidate("2030-01-01")
	c.Status = kyc.Status("MAYBE")

	rec := New().Evaluate(c, today)

	assert.Equal(t, kyc.StatusHumanReview, rec.Status)
}

func TestEvaluateNeverRelaxes(t *testing.T) {
	statuses := []kyc.Status{kyc.StatusApproved, kyc.StatusHumanReview, kyc.StatusRejected}
	expiries := []string{"", "2020-01-01", "2024-06-20", "2031-01-01", "garbage"}
	for _, s := range statuses {
		for _, exp := range expiries {
			for _, docs := range [][]kyc.Document{nil, completeDocs()} {
				c := approvedCandidate(exp)
				c.Status = s
				c.Documents = docs
				rec := New().Evaluate(c, today)
				require.GreaterOrEqual(t, rec.Status.Rank(), s.Rank(), "status=%s expiry=%s", s, exp)
				if kyc.HasExpiryFlag(rec.Flags) {
					require.Equal(t, kyc.StatusRejected, rec.Status)
				}
			}
		}
	}
}

func TestCandidateFromRecordReplayIsIdempotent(t *testing.T) {
	eval := New()
	first := eval.Evaluate(approvedCandidate("2024-06-05"), today)

	replayed := eval.Evaluate(CandidateFromRecord(first), today)

	assert.Equal(t, first.Status, replayed.Status)
	assert.Equal(t, first.Flags, replayed.Flags)
	assert.Equal(t, first.Report, replayed.Report)
}

func TestCandidateFromRecordPicksUpNewExpiry(t *testing.T) {
	eval := New()
	rec := eval.Evaluate(approvedCandidate("2024-06-20"), today)
	require.Equal(t, kyc.StatusApproved, rec.Status)

	later := today.AddDate(0, 0, 10)
	replayed := eval.Evaluate(CandidateFromRecord(rec), later)

	assert.Equal(t, kyc.StatusRejected, replayed.Status)
	assert.Equal(t, []string{"ID expired 5 days ago"}, replayed.Flags)
}
