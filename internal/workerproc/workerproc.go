// Package workerproc decodes queued commands and runs them against the agent.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"kyc-backend/internal/agent"
	"kyc-backend/internal/ingest"
	"kyc-backend/internal/queue"
)

// Operations are the agent calls a command can trigger.
type Operations interface {
	ProcessNewEmails(ctx context.Context) (ingest.BatchSummary, error)
	SendNotifications(ctx context.Context, override string) (agent.NotificationSummary, error)
	RevalidateAll(ctx context.Context) (agent.RevalidationSummary, error)
}

var _ Operations = (*agent.Service)(nil)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrUnknownOp indicates a command naming no known operation.
type ErrUnknownOp struct {
	Meta      MessageMeta
	Op        queue.Op
	RequestID string
}

func (e ErrUnknownOp) Error() string { return fmt.Sprintf("unknown op %q", e.Op) }

// ErrProcess indicates the operation failed after successful parsing.
type ErrProcess struct {
	Op        queue.Op
	RequestID string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process " + string(e.Op)
	}
	return "process " + string(e.Op) + ": " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether err means the message can never succeed and
// should be dropped rather than redelivered.
func Unrecoverable(err error) bool {
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		unknown ErrUnknownOp
	)
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &unknown)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Command, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Command{}, meta, ErrEmptyBody{Meta: meta}
	}

	cmd, err := queue.DecodeCommand([]byte(body))
	if err != nil {
		return queue.Command{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if !cmd.Op.Valid() {
		return cmd, meta, ErrUnknownOp{Meta: meta, Op: cmd.Op, RequestID: cmd.RequestID}
	}
	return cmd, meta, nil
}

// Dispatch runs cmd and returns the operator summary of the run.
func Dispatch(ctx context.Context, ops Operations, cmd queue.Command) (string, error) {
	if ops == nil {
		return "", errors.New("agent not configured")
	}

	var (
		summary fmt.Stringer
		err     error
	)
	switch cmd.Op {
	case queue.OpProcessEmails:
		summary, err = ops.ProcessNewEmails(ctx)
	case queue.OpSendNotifications:
		summary, err = ops.SendNotifications(ctx, strings.TrimSpace(cmd.OverrideEmail))
	case queue.OpRevalidateAll:
		summary, err = ops.RevalidateAll(ctx)
	default:
		return "", ErrUnknownOp{Op: cmd.Op, RequestID: cmd.RequestID}
	}
	if err != nil {
		return "", ErrProcess{Op: cmd.Op, RequestID: cmd.RequestID, Err: err}
	}
	return summary.String(), nil
}

// HandleMessage parses body and dispatches it.
func HandleMessage(ctx context.Context, ops Operations, body string) (string, error) {
	cmd, _, err := ParseMessage(body)
	if err != nil {
		return "", err
	}
	return Dispatch(ctx, ops, cmd)
}
