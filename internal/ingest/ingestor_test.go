package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyc-backend/internal/kyc"
	"kyc-backend/internal/llm"
	"kyc-backend/internal/mail"
	localstore "kyc-backend/internal/shared/storage/object/local"
)

var today = time.Date(2025, time.October, 27, 10, 0, 0, 0, time.UTC)

type fakeExtractor struct {
	mu    sync.Mutex
	fail  map[string]error
	roles map[string]kyc.DocumentRole
	refs  []string
}

func (f *fakeExtractor) Extract(ctx context.Context, ref, fileName, mimeType string, data []byte) (kyc.ExtractedDocumentText, error) {
	f.mu.Lock()
	f.refs = append(f.refs, ref)
	f.mu.Unlock()
	if err := f.fail[fileName]; err != nil {
		return kyc.ExtractedDocumentText{Ref: ref, FileName: fileName}, &kyc.ExtractionError{Ref: ref, Err: err}
	}
	role := f.roles[fileName]
	if role == "" {
		role = kyc.RoleOther
	}
	return kyc.ExtractedDocumentText{Ref: ref, FileName: fileName, Text: "text of " + fileName, Role: role}, nil
}

type fakeLLM struct {
	outputs []string
	err     error
	inputs  []llm.ValidationInput
	fixes   []string
}

func (f *fakeLLM) ValidateKYC(ctx context.Context, input llm.ValidationInput) (json.RawMessage, error) {
	f.inputs = append(f.inputs, input)
	if raw, ok := llm.FixJSONFromContext(ctx); ok {
		f.fixes = append(f.fixes, raw)
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(f.outputs) == 0 {
		return nil, errors.New("no scripted output")
	}
	out := f.outputs[0]
	f.outputs = f.outputs[1:]
	return json.RawMessage(out), nil
}

func verdict(status, expiry string, flags ...string) string {
	if flags == nil {
		flags = []string{}
	}
	body := map[string]any{
		"name":      "Asha Rao",
		"dob":       "1990-02-14",
		"id_type":   "Passport",
		"id_number": "P1234567",
		"id_expiry": expiry,
		"address":   "12 MG Road, Pune",
		"status":    status,
		"flags":     flags,
		"report":    "Documents reviewed.",
	}
	raw, _ := json.Marshal(body)
	return string(raw)
}

func kycMessage(subject string, files ...string) mail.Message {
	msg := mail.Message{
		ID:      "msg-" + subject,
		Subject: subject,
		From:    "Asha Rao <Asha@Example.com>",
		Date:    today.Add(-time.Hour),
	}
	for _, f := range files {
		msg.Attachments = append(msg.Attachments, mail.Attachment{FileName: f, MimeType: "application/pdf", Data: []byte("%PDF " + f)})
	}
	return msg
}

func newIngestor(ex *fakeExtractor, model llm.Client) *Ingestor {
	return &Ingestor{
		Extractor: ex,
		LLM:       model,
		Now:       func() time.Time { return today },
	}
}

func defaultExtractor() *fakeExtractor {
	return &fakeExtractor{roles: map[string]kyc.DocumentRole{
		"passport.pdf": kyc.RoleIDProof,
		"bill.pdf":     kyc.RoleAddressProof,
	}}
}

func TestIngestExpiredIDIsRejected(t *testing.T) {
	model := &fakeLLM{outputs: []string{verdict("APPROVED", "2025-10-22")}}
	in := newIngestor(defaultExtractor(), model)

	rec, err := in.Ingest(context.Background(), kycMessage("KYC - 98765", "passport.pdf", "bill.pdf"))
	require.NoError(t, err)

	assert.Equal(t, "98765", rec.CustomerID)
	assert.Equal(t, "asha@example.com", rec.CustomerEmail)
	assert.Equal(t, kyc.StatusRejected, rec.Status)
	assert.Contains(t, rec.Flags, "ID expired 5 days ago")
	assert.Equal(t, kyc.StatusApproved, rec.ValidationResult.Status)
	assert.True(t, strings.HasPrefix(rec.Report, "REJECTED: ID expired 5 days ago."))
	assert.Equal(t, today, rec.ProcessedAt)

	require.Len(t, model.inputs, 1)
	assert.Equal(t, "98765", model.inputs[0].CustomerID)
	assert.Equal(t, "2025-10-27", model.inputs[0].Today)
	require.Len(t, model.inputs[0].Documents, 2)
	assert.Equal(t, "id_proof", model.inputs[0].Documents[0].Role)
}

func TestIngestWithoutAttachmentsNeedsReview(t *testing.T) {
	model := &fakeLLM{}
	in := newIngestor(defaultExtractor(), model)

	msg := kycMessage("KYC - 98765")
	msg.Attachments = []mail.Attachment{{FileName: "notes.txt", Data: []byte("hi")}}
	rec, err := in.Ingest(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, kyc.StatusHumanReview, rec.Status)
	assert.Contains(t, rec.Flags, kyc.FlagNoDocuments)
	assert.Empty(t, model.inputs, "LLM must not be called without documents")
}

func TestIngestUnparseableSubject(t *testing.T) {
	in := newIngestor(defaultExtractor(), &fakeLLM{})

	_, err := in.Ingest(context.Background(), kycMessage("Invoice #12", "passport.pdf"))
	var perr *kyc.ParseError
	assert.True(t, errors.As(err, &perr))
}

func TestIngestLLMFailureNeedsReview(t *testing.T) {
	in := newIngestor(defaultExtractor(), &fakeLLM{err: errors.New("llm http status 503")})

	rec, err := in.Ingest(context.Background(), kycMessage("KYC - 98765", "passport.pdf", "bill.pdf"))
	require.NoError(t, err)

	assert.Equal(t, kyc.StatusHumanReview, rec.Status)
	assert.Contains(t, rec.Flags, kyc.FlagLLMFailed)
	require.Len(t, rec.Documents, 2)
}

func TestIngestUnreadableDocumentIsFlagged(t *testing.T) {
	ex := defaultExtractor()
	ex.fail = map[string]error{"bill.pdf": errors.New("ocr returned no text")}
	model := &fakeLLM{outputs: []string{verdict("APPROVED", "2031-01-01")}}
	in := newIngestor(ex, model)

	rec, err := in.Ingest(context.Background(), kycMessage("KYC - 98765", "passport.pdf", "bill.pdf"))
	require.NoError(t, err)

	assert.Contains(t, rec.Flags, "Document unreadable: bill.pdf")
	assert.Contains(t, rec.Flags, "Missing required document: address_proof")
	assert.Equal(t, kyc.StatusHumanReview, rec.Status)
	require.Len(t, model.inputs[0].Documents, 1)
	require.Len(t, rec.Documents, 2)
	assert.Equal(t, "passport.pdf", rec.Documents[0].FileName)
	assert.Equal(t, "bill.pdf", rec.Documents[1].FileName)
}

func TestIngestRepairsMalformedOutputOnce(t *testing.T) {
	model := &fakeLLM{outputs: []string{`{"name": "Asha"}`, verdict("APPROVED", "2031-01-01")}}
	in := newIngestor(defaultExtractor(), model)

	rec, err := in.Ingest(context.Background(), kycMessage("KYC - 98765", "passport.pdf", "bill.pdf"))
	require.NoError(t, err)

	assert.Equal(t, kyc.StatusApproved, rec.Status)
	assert.Equal(t, []string{`{"name": "Asha"}`}, model.fixes)
	assert.NotContains(t, rec.Flags, kyc.FlagMalformedOutput)
}

func TestIngestKeepsMalformedFlagWhenRepairFails(t *testing.T) {
	model := &fakeLLM{outputs: []string{`[]`, `still wrong`}}
	in := newIngestor(defaultExtractor(), model)

	rec, err := in.Ingest(context.Background(), kycMessage("KYC - 98765", "passport.pdf", "bill.pdf"))
	require.NoError(t, err)

	assert.Equal(t, kyc.StatusHumanReview, rec.Status)
	assert.Contains(t, rec.Flags, kyc.FlagMalformedOutput)
}

func TestIngestArchivesAttachments(t *testing.T) {
	ex := defaultExtractor()
	in := newIngestor(ex, &fakeLLM{outputs: []string{verdict("APPROVED", "2031-01-01")}})
	in.Archive = localstore.New(t.TempDir())

	rec, err := in.Ingest(context.Background(), kycMessage("KYC - 98765", "passport.pdf", "bill.pdf"))
	require.NoError(t, err)

	require.Len(t, rec.Documents, 2)
	for _, d := range rec.Documents {
		assert.True(t, strings.HasPrefix(d.Ref, "98765/"), d.Ref)
		assert.True(t, strings.HasSuffix(d.Ref, "_"+d.FileName), d.Ref)

		rc, err := in.Archive.Open(context.Background(), d.Ref+".extracted.txt")
		require.NoError(t, err)
		rc.Close()
	}
}
