package queue

import (
	"context"
	"sync"
)

// Client sends commands to a queue backend.
type Client interface {
	Send(ctx context.Context, cmd Command) error
}

// Memory collects commands in process. Used when no queue is configured.
type Memory struct {
	mu       sync.Mutex
	commands []Command
}

// Send records cmd.
func (m *Memory) Send(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, cmd)
	return nil
}

// Commands returns a copy of everything sent so far.
func (m *Memory) Commands() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Command(nil), m.commands...)
}

var _ Client = (*Memory)(nil)
