// Package fieldparser turns extracted document text plus the LLM's structured
// verdict into a kyc.Candidate.
package fieldparser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"kyc-backend/internal/kyc"
)

var requiredKeys = []string{"name", "dob", "id_type", "id_number", "id_expiry", "address", "status", "flags", "report"}

// Older prompt revisions used these names.
var keyAliases = map[string]string{
	"validation_status": "status",
	"compliance_report": "report",
}

type llmDocument struct {
	File     string `json:"file"`
	Role     string `json:"role"`
	Name     string `json:"name"`
	DOB      string `json:"dob"`
	IssuedOn string `json:"issued_on"`
}

// Parse builds a candidate from texts and llmOutput. If llmOutput is malformed it
// returns a HUMAN_REVIEW_NEEDED candidate together with a *kyc.ExtractionError.
func Parse(texts []kyc.ExtractedDocumentText, llmOutput json.RawMessage) (kyc.Candidate, error) {
	docs := DocumentsFromTexts(texts)

	fields, err := decodeObject(llmOutput)
	if err != nil {
		return malformed(docs, llmOutput), &kyc.ExtractionError{Err: err}
	}

	c := kyc.Candidate{
		Documents:  docs,
		Validation: kyc.ValidationResult{Raw: append(json.RawMessage(nil), llmOutput...)},
	}

	var (
		status string
		dob    string
		expiry string
		flags  []string
	)
	targets := []struct {
		key string
		dst *string
	}{
		{"name", &c.Name},
		{"dob", &dob},
		{"id_type", &c.IDType},
		{"id_number", &c.IDNumber},
		{"id_expiry", &expiry},
		{"address", &c.Address},
		{"status", &status},
		{"report", &c.Report},
	}
	for _, target := range targets {
		val, err := stringField(fields[target.key])
		if err != nil {
			return malformed(docs, llmOutput), &kyc.ExtractionError{Err: fmt.Errorf("field %s: %w", target.key, err)}
		}
		*target.dst = val
	}
	flags, err = stringList(fields["flags"])
	if err != nil {
		return malformed(docs, llmOutput), &kyc.ExtractionError{Err: fmt.Errorf("field flags: %w", err)}
	}
	c.Flags = kyc.AppendFlags(nil, flags...)

	parsed, known := kyc.ParseStatus(status)
	c.Status = parsed
	if !known {
		c.Flags = kyc.AppendFlags(c.Flags, "LLM status unrecognized: "+status)
	}

	c.DOB = normalizeField(dob, "dob", &c.Flags)
	c.IDExpiry = normalizeField(expiry, "id_expiry", &c.Flags)
	for _, s := range []*string{&c.Name, &c.IDType, &c.IDNumber, &c.Address} {
		if isAbsent(*s) {
			*s = ""
		}
	}

	if raw, ok := fields["missing_documents"]; ok {
		if list, err := stringList(raw); err == nil {
			c.Validation.MissingDocuments = list
		}
	}
	if raw, ok := fields["data_consistency"]; ok {
		if val, err := stringField(raw); err == nil {
			c.Validation.DataConsistency = val
		}
	}
	if raw, ok := fields["documents"]; ok {
		var declared []llmDocument
		if err := json.Unmarshal(raw, &declared); err == nil {
			c.Documents = mergeDocuments(c.Documents, declared)
		}
	}

	return c, nil
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty llm output")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("llm output is not a JSON object: %w", err)
	}
	if fields == nil {
		return nil, errors.New("llm output is null")
	}
	for alias, key := range keyAliases {
		if _, ok := fields[key]; ok {
			continue
		}
		if v, ok := fields[alias]; ok {
			fields[key] = v
		}
	}
	for _, key := range requiredKeys {
		if _, ok := fields[key]; !ok {
			return nil, fmt.Errorf("llm output missing key %q", key)
		}
	}
	return fields, nil
}

func malformed(docs []kyc.Document, raw json.RawMessage) kyc.Candidate {
	return kyc.Candidate{
		Status:    kyc.StatusHumanReview,
		Flags:     []string{kyc.FlagMalformedOutput},
		Documents: docs,
		Validation: kyc.ValidationResult{
			Raw: append(json.RawMessage(nil), raw...),
		},
	}
}

// stringField accepts a JSON string, number, bool or null.
func stringField(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), nil
	}
	return "", fmt.Errorf("expected string, got %s", truncate(string(raw), 40))
}

// stringList accepts a JSON array of strings, a single string, or null.
func stringList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if strings.TrimSpace(single) == "" {
			return nil, nil
		}
		return []string{single}, nil
	}
	return nil, fmt.Errorf("expected list of strings, got %s", truncate(string(raw), 40))
}

func normalizeField(raw, field string, flags *[]string) string {
	value, present, ok := NormalizeDate(raw)
	if !present {
		return ""
	}
	if !ok {
		*flags = kyc.AppendFlags(*flags, kyc.UnparsableDateFlag(field))
	}
	return value
}

// DocumentsFromTexts lists one document per extracted text with its detected role.
func DocumentsFromTexts(texts []kyc.ExtractedDocumentText) []kyc.Document {
	docs := make([]kyc.Document, 0, len(texts))
	for _, t := range texts {
		role := t.Role
		if role == "" {
			role = kyc.RoleOther
		}
		docs = append(docs, kyc.Document{Ref: t.Ref, FileName: t.FileName, Role: role})
	}
	return docs
}

// mergeDocuments folds LLM per-document facts into the extracted documents. A
// detected role wins over a declared one unless detection said "other".
func mergeDocuments(docs []kyc.Document, declared []llmDocument) []kyc.Document {
	out := append([]kyc.Document(nil), docs...)
	for _, d := range declared {
		idx := matchDocument(out, d.File)
		if idx < 0 {
			if strings.TrimSpace(d.File) == "" {
				continue
			}
			out = append(out, kyc.Document{Ref: d.File, FileName: d.File, Role: kyc.RoleOther})
			idx = len(out) - 1
		}
		doc := &out[idx]
		if doc.Role == kyc.RoleOther || doc.Role == "" {
			doc.Role = kyc.ParseRole(d.Role)
		}
		if !isAbsent(d.Name) {
			doc.Name = strings.TrimSpace(d.Name)
		}
		if v, present, _ := NormalizeDate(d.DOB); present {
			doc.DOB = v
		}
		if v, present, _ := NormalizeDate(d.IssuedOn); present {
			doc.IssuedOn = v
		}
	}
	return out
}

func matchDocument(docs []kyc.Document, file string) int {
	file = strings.ToLower(strings.TrimSpace(file))
	if file == "" {
		return -1
	}
	for i, doc := range docs {
		if strings.ToLower(doc.FileName) == file || strings.ToLower(doc.Ref) == file {
			return i
		}
	}
	return -1
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
