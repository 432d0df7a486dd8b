package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStatusStore keeps the statuses of one batch in a Redis hash, so several
// processes can report into and read the same batch.
type RedisStatusStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// RedisStatusOption configures RedisStatusStore.
type RedisStatusOption func(*RedisStatusStore)

// WithStatusTTL sets how long the batch hash lives after its last update.
// Zero keeps it forever.
func WithStatusTTL(ttl time.Duration) RedisStatusOption {
	return func(s *RedisStatusStore) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}

// WithStatusKeyPrefix replaces the default "mediaqueue:uploads" hash key prefix.
func WithStatusKeyPrefix(prefix string) RedisStatusOption {
	return func(s *RedisStatusStore) {
		if prefix != "" {
			s.key = prefix
		}
	}
}

// NewRedisStatusStore stores statuses of batch under "<prefix>:<batch>".
func NewRedisStatusStore(client redis.UniversalClient, batch string, opts ...RedisStatusOption) *RedisStatusStore {
	s := &RedisStatusStore{
		client: client,
		key:    "mediaqueue:uploads",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.key = s.key + ":" + batch
	return s
}

// Key returns the Redis hash key of the batch.
func (s *RedisStatusStore) Key() string {
	return s.key
}

func (s *RedisStatusStore) Set(ctx context.Context, status Status) error {
	data, err := json.Marshal(status)
	if err != nil {
		return errors.Join(ErrFailedToSaveStatus, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, status.ID.String(), data)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return errors.Join(ErrFailedToSaveStatus, err)
	}
	return nil
}

func (s *RedisStatusStore) Get(ctx context.Context, id uuid.UUID) (Status, error) {
	data, err := s.client.HGet(ctx, s.key, id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Status{}, ErrStatusNotFound
	}
	if err != nil {
		return Status{}, errors.Join(ErrFailedToReadStatus, err)
	}

	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return Status{}, errors.Join(ErrFailedToReadStatus, err)
	}
	return status, nil
}

func (s *RedisStatusStore) List(ctx context.Context) ([]Status, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, errors.Join(ErrFailedToReadStatus, err)
	}

	out := make([]Status, 0, len(fields))
	for field, raw := range fields {
		var status Status
		if err := json.Unmarshal([]byte(raw), &status); err != nil {
			return nil, errors.Join(ErrFailedToReadStatus, fmt.Errorf("field %s: %w", field, err))
		}
		out = append(out, status)
	}
	sortStatuses(out)
	return out, nil
}

// Clear deletes the batch hash.
func (s *RedisStatusStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return errors.Join(ErrFailedToSaveStatus, err)
	}
	return nil
}
