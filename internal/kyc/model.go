package kyc

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Status is the compliance verdict for a customer.
type Status string

const (
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
	StatusHumanReview Status = "HUMAN_REVIEW_NEEDED"
)

// Rank orders statuses by strictness. Unknown statuses rank with human review.
func (s Status) Rank() int {
	switch s {
	case StatusApproved:
		return 0
	case StatusRejected:
		return 2
	default:
		return 1
	}
}

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusHumanReview:
		return true
	default:
		return false
	}
}

// Stricter returns the stricter of a and b.
func Stricter(a, b Status) Status {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseStatus normalizes free-form status text. The bool is false when the value
// does not name a known status.
func ParseStatus(raw string) (Status, bool) {
	clean := strings.ToUpper(strings.TrimSpace(raw))
	clean = strings.NewReplacer(" ", "_", "-", "_").Replace(clean)
	switch clean {
	case "APPROVED", "APPROVE":
		return StatusApproved, true
	case "REJECTED", "REJECT":
		return StatusRejected, true
	case "HUMAN_REVIEW_NEEDED", "HUMAN_REVIEW", "REVIEW", "NEEDS_REVIEW":
		return StatusHumanReview, true
	default:
		return StatusHumanReview, false
	}
}

// DocumentRole classifies a submitted document.
type DocumentRole string

const (
	RoleIDProof      DocumentRole = "id_proof"
	RoleAddressProof DocumentRole = "address_proof"
	RoleOther        DocumentRole = "other"
)

// RequiredRoles lists the roles every submission must include.
var RequiredRoles = []DocumentRole{RoleIDProof, RoleAddressProof}

// ParseRole maps free-form role text to a DocumentRole.
func ParseRole(raw string) DocumentRole {
	clean := strings.ToLower(strings.TrimSpace(raw))
	clean = strings.NewReplacer(" ", "_", "-", "_").Replace(clean)
	switch clean {
	case "id_proof", "id", "identity", "identity_proof", "photo_id":
		return RoleIDProof
	case "address_proof", "address", "proof_of_address", "utility_bill":
		return RoleAddressProof
	default:
		return RoleOther
	}
}

// Document is a per-document summary kept on the record.
type Document struct {
	Ref      string       `json:"ref"`
	FileName string       `json:"fileName"`
	Role     DocumentRole `json:"role"`
	Name     string       `json:"name,omitempty"`
	DOB      string       `json:"dob,omitempty"`
	IssuedOn string       `json:"issuedOn,omitempty"`
}

// ValidationResult snapshots the structured LLM verdict as parsed.
type ValidationResult struct {
	Status           Status          `json:"status"`
	Flags            []string        `json:"flags,omitempty"`
	Report           string          `json:"report,omitempty"`
	MissingDocuments []string        `json:"missingDocuments,omitempty"`
	DataConsistency  string          `json:"dataConsistency,omitempty"`
	Raw              json.RawMessage `json:"raw,omitempty"`
}

type validationAlias ValidationResult

// MarshalJSON writes Raw as a JSON string so malformed or pretty-printed
// model output is kept byte for byte.
func (v ValidationResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		validationAlias
		Raw string `json:"raw,omitempty"`
	}{validationAlias: validationAlias(v), Raw: string(v.Raw)})
}

// UnmarshalJSON accepts Raw as a string or, for older rows, as embedded JSON.
func (v *ValidationResult) UnmarshalJSON(data []byte) error {
	var wire struct {
		validationAlias
		Raw json.RawMessage `json:"raw,omitempty"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*v = ValidationResult(wire.validationAlias)
	v.Raw = nil
	raw := bytes.TrimSpace(wire.Raw)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return err
		}
		if text != "" {
			v.Raw = json.RawMessage(text)
		}
	default:
		v.Raw = append(json.RawMessage(nil), raw...)
	}
	return nil
}

// CustomerRecord is the persisted compliance outcome for one customer.
type CustomerRecord struct {
	CustomerID       string           `json:"customerId"`
	CustomerEmail    string           `json:"customerEmail"`
	EmailDate        time.Time        `json:"emailDate"`
	Status           Status           `json:"status"`
	Name             string           `json:"name"`
	DOB              string           `json:"dob"`
	IDType           string           `json:"idType"`
	IDNumber         string           `json:"idNumber"`
	IDExpiry         string           `json:"idExpiry"`
	Address          string           `json:"address"`
	Report           string           `json:"report"`
	Documents        []Document       `json:"documents"`
	ValidationResult ValidationResult `json:"validationResult"`
	Flags            []string         `json:"flags"`
	ProcessedAt      time.Time        `json:"processedAt"`
}

// DateLayout is the canonical calendar date format.
const DateLayout = "2006-01-02"

// ExpiryDate returns the parsed ID expiry when it is a canonical date.
func (r CustomerRecord) ExpiryDate() (time.Time, bool) {
	return ParseDate(r.IDExpiry)
}

// ParseDate parses a canonical YYYY-MM-DD value.
func ParseDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DaysBetween returns whole calendar days from a to b, ignoring time of day.
func DaysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}

// Candidate is the parsed, not yet compliance-checked, view of a submission.
type Candidate struct {
	CustomerID    string
	CustomerEmail string
	EmailDate     time.Time
	Status        Status
	Name          string
	DOB           string
	IDType        string
	IDNumber      string
	IDExpiry      string
	Address       string
	Report        string
	Documents     []Document
	Flags         []string
	Validation    ValidationResult
}

// ExtractedDocumentText is the transient output of document extraction.
type ExtractedDocumentText struct {
	Ref      string
	FileName string
	Text     string
	Role     DocumentRole
}

// Action identifies a notification log entry type.
type Action string

const (
	ActionExpiryNotice Action = "EXPIRY_NOTICE"
	ActionReminder     Action = "REMINDER"
	ActionError        Action = "ERROR"
)

// NotificationLogEntry is an append-only audit entry.
type NotificationLogEntry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	CustomerID string    `json:"customerId"`
	Action     Action    `json:"action"`
	Details    string    `json:"details"`
}
