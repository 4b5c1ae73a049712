package ingest

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySeen(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySeen()

	seen, err := s.Seen(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.MarkSeen(ctx, "m1", "98765"))
	seen, err = s.Seen(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, seen)
}

type fakeRedis struct {
	keys    map[string]time.Duration
	failSet bool
}

func (f *fakeRedis) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.failSet {
		return redis.NewStatusResult("", errors.New("redis down"))
	}
	f.keys[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestRedisSeenUsesPrefixedKeysWithTTL(t *testing.T) {
	ctx := context.Background()
	fake := &fakeRedis{keys: map[string]time.Duration{}}
	s := &RedisSeen{client: fake, ttl: time.Hour}

	seen, err := s.Seen(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.MarkSeen(ctx, "m1", ""))
	assert.Equal(t, time.Hour, fake.keys["kyc:seen:m1"])

	seen, err = s.Seen(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, seen)

	fake.failSet = true
	assert.Error(t, s.MarkSeen(ctx, "m2", "1001"))
}

func TestSQLSeen(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2025, time.October, 27, 9, 0, 0, 0, time.UTC)
	s := &SQLSeen{DB: db, Now: func() time.Time { return now }}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM kyc_processed_messages WHERE message_id = $1`)).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"one"}))
	seen, err := s.Seen(context.Background(), "m1")
	require.NoError(t, err)
	assert.False(t, seen)

	mock.ExpectExec(`INSERT INTO kyc_processed_messages`).
		WithArgs("m1", "98765", "2025-10-27T09:00:00Z").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.MarkSeen(context.Background(), "m1", "98765"))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM kyc_processed_messages WHERE message_id = $1`)).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	seen, err = s.Seen(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, mock.ExpectationsWereMet())
}
