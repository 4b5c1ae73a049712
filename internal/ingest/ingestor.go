// Package ingest turns inbound KYC emails into evaluated customer records.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"kyc-backend/internal/compliance"
	"kyc-backend/internal/extract"
	"kyc-backend/internal/fieldparser"
	"kyc-backend/internal/kyc"
	"kyc-backend/internal/llm"
	"kyc-backend/internal/mail"
	"kyc-backend/internal/shared/metrics"
	"kyc-backend/internal/shared/storage/object"
	"kyc-backend/internal/shared/telemetry"
)

const defaultExtractConcurrency = 4

// DocumentExtractor turns one attachment into text.
type DocumentExtractor interface {
	Extract(ctx context.Context, ref, fileName, mimeType string, data []byte) (kyc.ExtractedDocumentText, error)
}

// Ingestor runs one message through extraction, parsing and compliance.
type Ingestor struct {
	Extractor DocumentExtractor
	LLM       llm.Client
	Evaluator *compliance.Evaluator
	// Archive is optional. When set, attachments and their extracted text are
	// stored under the customer's namespace and Document.Ref is the storage key.
	Archive     object.ObjectStore
	Metrics     *metrics.Metrics
	Concurrency int
	Now         func() time.Time
}

type extraction struct {
	doc kyc.ExtractedDocumentText
	err error
}

// Ingest builds the evaluated record for msg. It fails with *kyc.ParseError when
// the subject has no customer id; data problems degrade status instead of failing.
func (in *Ingestor) Ingest(ctx context.Context, msg mail.Message) (kyc.CustomerRecord, error) {
	customerID, err := ExtractCustomerID(msg.Subject)
	if err != nil {
		return kyc.CustomerRecord{}, err
	}

	today := in.now()
	base := kyc.Candidate{
		CustomerID:    customerID,
		CustomerEmail: mail.SenderAddress(msg.From),
		EmailDate:     msg.Date,
	}
	if base.EmailDate.IsZero() {
		base.EmailDate = today
	}

	usable := usableAttachments(msg.Attachments)
	if len(usable) == 0 {
		c := base
		c.Status = kyc.StatusHumanReview
		c.Flags = []string{kyc.FlagNoDocuments}
		return in.evaluator().Evaluate(c, today), nil
	}

	results, err := in.extractAll(ctx, customerID, usable)
	if err != nil {
		return kyc.CustomerRecord{}, err
	}

	var (
		texts      []kyc.ExtractedDocumentText
		unreadable []kyc.Document
		flags      []string
	)
	for _, r := range results {
		if r.err != nil {
			in.Metrics.ExtractionFailed()
			telemetry.Warn("ingest.document.unreadable", map[string]any{
				"customer_id": customerID,
				"file":        r.doc.FileName,
				"error":       r.err.Error(),
			})
			flags = kyc.AppendFlags(flags, kyc.UnreadableDocumentFlag(r.doc.FileName))
			unreadable = append(unreadable, kyc.Document{Ref: r.doc.Ref, FileName: r.doc.FileName, Role: kyc.RoleOther})
			continue
		}
		texts = append(texts, r.doc)
	}

	c := in.candidate(ctx, customerID, today, texts)
	c.CustomerID = base.CustomerID
	c.CustomerEmail = base.CustomerEmail
	c.EmailDate = base.EmailDate
	c.Documents = append(c.Documents, unreadable...)
	c.Flags = kyc.AppendFlags(c.Flags, flags...)

	return in.evaluator().Evaluate(c, today), nil
}

// candidate asks the LLM for a verdict and parses it. Malformed output gets one
// repair attempt; an LLM failure yields a review candidate.
func (in *Ingestor) candidate(ctx context.Context, customerID string, today time.Time, texts []kyc.ExtractedDocumentText) kyc.Candidate {
	if len(texts) == 0 {
		return kyc.Candidate{Status: kyc.StatusHumanReview}
	}
	if in.LLM == nil {
		return llmFailed(texts)
	}

	input := llm.ValidationInput{CustomerID: customerID, Today: today.Format(kyc.DateLayout)}
	for _, t := range texts {
		input.Documents = append(input.Documents, llm.DocumentText{FileName: t.FileName, Role: string(t.Role), Text: t.Text})
	}

	raw, err := in.LLM.ValidateKYC(ctx, input)
	if err != nil {
		telemetry.Error("ingest.llm.failed", map[string]any{"customer_id": customerID, "error": err.Error()})
		return llmFailed(texts)
	}

	c, perr := fieldparser.Parse(texts, raw)
	if perr == nil {
		return c
	}
	telemetry.Warn("ingest.llm.malformed", map[string]any{"customer_id": customerID, "error": perr.Error()})

	fixed, err := in.LLM.ValidateKYC(llm.WithFixJSON(ctx, string(raw)), input)
	if err != nil {
		return c
	}
	if repaired, rerr := fieldparser.Parse(texts, fixed); rerr == nil {
		return repaired
	}
	return c
}

func llmFailed(texts []kyc.ExtractedDocumentText) kyc.Candidate {
	return kyc.Candidate{
		Status:    kyc.StatusHumanReview,
		Flags:     []string{kyc.FlagLLMFailed},
		Documents: fieldparser.DocumentsFromTexts(texts),
	}
}

// extractAll extracts every attachment concurrently. Results keep attachment order.
func (in *Ingestor) extractAll(ctx context.Context, customerID string, atts []mail.Attachment) ([]extraction, error) {
	limit := in.Concurrency
	if limit <= 0 {
		limit = defaultExtractConcurrency
	}

	results := make([]extraction, len(atts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range atts {
		att := atts[i]
		g.Go(func() error {
			ref := in.archive(gctx, customerID, att)
			doc, err := in.Extractor.Extract(gctx, ref, att.FileName, att.MimeType, att.Data)
			doc.Ref, doc.FileName = ref, att.FileName
			if err == nil && in.Archive != nil && ref != att.FileName {
				if _, serr := extract.SaveExtracted(gctx, in.Archive, ref, doc.Text); serr != nil {
					telemetry.Warn("ingest.archive.text_failed", map[string]any{"ref": ref, "error": serr.Error()})
				}
			}
			if err != nil && errors.Is(err, context.Canceled) {
				return err
			}
			results[i] = extraction{doc: doc, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (in *Ingestor) archive(ctx context.Context, customerID string, att mail.Attachment) string {
	if in.Archive == nil {
		return att.FileName
	}
	key, _, _, err := in.Archive.Save(ctx, customerID, att.FileName, bytes.NewReader(att.Data))
	if err != nil {
		telemetry.Warn("ingest.archive.failed", map[string]any{
			"customer_id": customerID,
			"file":        att.FileName,
			"error":       err.Error(),
		})
		return att.FileName
	}
	return key
}

func (in *Ingestor) evaluator() *compliance.Evaluator {
	if in.Evaluator == nil {
		return compliance.New()
	}
	return in.Evaluator
}

func (in *Ingestor) now() time.Time {
	if in.Now != nil {
		return in.Now()
	}
	return time.Now().UTC()
}

func usableAttachments(atts []mail.Attachment) []mail.Attachment {
	out := make([]mail.Attachment, 0, len(atts))
	for _, a := range atts {
		if extract.Supported(a.FileName) && len(a.Data) > 0 {
			out = append(out, a)
		}
	}
	return out
}
