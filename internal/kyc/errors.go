package kyc

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a customer record does not exist.
var ErrNotFound = errors.New("record not found")

// ParseError indicates a message subject without a recognizable customer id.
type ParseError struct {
	Subject string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("no customer id in subject %q", e.Subject)
}

// ExtractionError indicates a document or LLM output could not be turned into fields.
// Ref is empty when the LLM output itself was the problem.
type ExtractionError struct {
	Ref string
	Err error
}

func (e *ExtractionError) Error() string {
	if e.Ref == "" {
		return "extraction: " + errString(e.Err)
	}
	return fmt.Sprintf("extraction ref=%s: %s", e.Ref, errString(e.Err))
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// StoreError wraps persistence failures.
type StoreError struct {
	Op         string
	CustomerID string
	Err        error
}

func (e *StoreError) Error() string {
	if e.CustomerID == "" {
		return fmt.Sprintf("store %s: %s", e.Op, errString(e.Err))
	}
	return fmt.Sprintf("store %s customer=%s: %s", e.Op, e.CustomerID, errString(e.Err))
}

func (e *StoreError) Unwrap() error { return e.Err }

// NotifyError wraps email-send failures for one customer.
type NotifyError struct {
	CustomerID string
	Recipient  string
	Err        error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify customer=%s to=%s: %s", e.CustomerID, e.Recipient, errString(e.Err))
}

func (e *NotifyError) Unwrap() error { return e.Err }

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
