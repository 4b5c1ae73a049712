package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// DocumentText is one extracted document handed to the model.
type DocumentText struct {
	FileName string `json:"file"`
	Role     string `json:"detected_role"`
	Text     string `json:"text"`
}

// ValidationInput captures what the model needs to judge one KYC submission.
type ValidationInput struct {
	CustomerID string
	Today      string
	Documents  []DocumentText
}

// Client validates KYC submissions and returns the model's raw JSON verdict.
type Client interface {
	ValidateKYC(ctx context.Context, input ValidationInput) (json.RawMessage, error)
}

// Answerer answers free-form operator questions over a JSON data summary.
type Answerer interface {
	Answer(ctx context.Context, question string, data json.RawMessage) (string, error)
}

type fixJSONKey struct{}

// WithFixJSON returns a context signaling a fix-JSON retry with the given raw output.
func WithFixJSON(ctx context.Context, raw string) context.Context {
	return context.WithValue(ctx, fixJSONKey{}, raw)
}

// FixJSONFromContext returns the raw JSON to repair, if any.
func FixJSONFromContext(ctx context.Context) (string, bool) {
	raw, ok := ctx.Value(fixJSONKey{}).(string)
	return raw, ok
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is used when no provider is configured.
type PlaceholderClient struct{}

// ValidateKYC returns ErrNotImplemented.
func (PlaceholderClient) ValidateKYC(ctx context.Context, input ValidationInput) (json.RawMessage, error) {
	return nil, ErrNotImplemented
}

// Answer returns ErrNotImplemented.
func (PlaceholderClient) Answer(ctx context.Context, question string, data json.RawMessage) (string, error) {
	return "", ErrNotImplemented
}

var (
	_ Client   = PlaceholderClient{}
	_ Answerer = PlaceholderClient{}
)
