package queue

import (
	"encoding/json"
	"time"
)

// Op names a queued agent operation.
type Op string

const (
	OpProcessEmails     Op = "process_emails"
	OpSendNotifications Op = "send_notifications"
	OpRevalidateAll     Op = "revalidate_all"
)

// CommandVersion is the current payload version.
const CommandVersion = 1

// Valid reports whether op is a known operation.
func (op Op) Valid() bool {
	switch op {
	case OpProcessEmails, OpSendNotifications, OpRevalidateAll:
		return true
	default:
		return false
	}
}

// Command is the payload sent to the worker.
type Command struct {
	Op            Op     `json:"op"`
	OverrideEmail string `json:"overrideEmail,omitempty"`
	RequestID     string `json:"requestId"`
	EnqueuedAt    string `json:"enqueuedAt"`
	Version       int    `json:"version"`
}

// NewCommand stamps a command with the current payload version.
func NewCommand(op Op, overrideEmail, requestID string, now time.Time) Command {
	return Command{
		Op:            op,
		OverrideEmail: overrideEmail,
		RequestID:     requestID,
		EnqueuedAt:    now.UTC().Format(time.RFC3339),
		Version:       CommandVersion,
	}
}

// EncodeCommand returns the JSON representation of a command.
func EncodeCommand(cmd Command) ([]byte, error) {
	return json.Marshal(cmd)
}

// DecodeCommand parses a JSON payload into a Command.
func DecodeCommand(payload []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Command{}, err
	}
	return cmd, nil
}
