package ingest

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SeenStore remembers which inbox messages were already handled so repeated
// fetches of the same mailbox window do not re-run extraction.
type SeenStore interface {
	Seen(ctx context.Context, messageID string) (bool, error)
	MarkSeen(ctx context.Context, messageID, customerID string) error
}

// MemorySeen is a process-local SeenStore.
type MemorySeen struct {
	mu  sync.RWMutex
	ids map[string]string
}

// NewMemorySeen returns an empty MemorySeen.
func NewMemorySeen() *MemorySeen {
	return &MemorySeen{ids: make(map[string]string)}
}

func (m *MemorySeen) Seen(ctx context.Context, messageID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.ids[messageID]
	return ok, nil
}

func (m *MemorySeen) MarkSeen(ctx context.Context, messageID, customerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[messageID] = customerID
	return nil
}

const (
	seenKeyPrefix  = "kyc:seen:"
	DefaultSeenTTL = 30 * 24 * time.Hour
)

// redisCmds is the subset of redis.Cmdable RedisSeen uses.
type redisCmds interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisSeen shares dedupe state across API and worker processes. Keys expire
// after TTL; Gmail's fetch window is far shorter.
type RedisSeen struct {
	client redisCmds
	ttl    time.Duration
}

// NewRedisSeen wraps a go-redis client. ttl <= 0 uses DefaultSeenTTL.
func NewRedisSeen(client redis.Cmdable, ttl time.Duration) *RedisSeen {
	if ttl <= 0 {
		ttl = DefaultSeenTTL
	}
	return &RedisSeen{client: client, ttl: ttl}
}

func (r *RedisSeen) Seen(ctx context.Context, messageID string) (bool, error) {
	n, err := r.client.Exists(ctx, seenKeyPrefix+messageID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisSeen) MarkSeen(ctx context.Context, messageID, customerID string) error {
	value := customerID
	if value == "" {
		value = "-"
	}
	return r.client.Set(ctx, seenKeyPrefix+messageID, value, r.ttl).Err()
}

// SQLSeen persists dedupe state in kyc_processed_messages.
type SQLSeen struct {
	DB  *sql.DB
	Now func() time.Time
}

func (s *SQLSeen) Seen(ctx context.Context, messageID string) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx, `SELECT 1 FROM kyc_processed_messages WHERE message_id = $1`, messageID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLSeen) MarkSeen(ctx context.Context, messageID, customerID string) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO kyc_processed_messages (message_id, customer_id, processed_at)
VALUES ($1, $2, $3)
ON CONFLICT (message_id) DO NOTHING`,
		messageID,
		customerID,
		now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

var (
	_ SeenStore = (*MemorySeen)(nil)
	_ SeenStore = (*RedisSeen)(nil)
	_ SeenStore = (*SQLSeen)(nil)
)
