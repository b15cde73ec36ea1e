package ban

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

const scheduleKeyPrefix = "ban:schedule:"

// RedisScheduleStore stores one key per temporary ban. No Redis TTL is set:
// expiry is detected lazily by read paths so the unban saga (re-enable the
// identity account, clear profile attributes) always runs; a silent key
// expiry would skip it.
type RedisScheduleStore struct {
	client *redis.Client
}

func NewRedisScheduleStore(client *redis.Client) *RedisScheduleStore {
	return &RedisScheduleStore{client: client}
}

func scheduleKey(userID id.UserID) string { return scheduleKeyPrefix + userID.String() }

func (s *RedisScheduleStore) Put(ctx context.Context, rec ScheduleRecord) error {
	value := rec.ExpiresAt.UTC().Format(time.RFC3339Nano)
	if err := s.client.Set(ctx, scheduleKey(rec.UserID), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisScheduleStore) Get(ctx context.Context, userID id.UserID) (*ScheduleRecord, error) {
	value, err := s.client.Get(ctx, scheduleKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, fmt.Errorf("corrupt schedule record for %s: %w", userID, err)
	}
	return &ScheduleRecord{UserID: userID, ExpiresAt: expiresAt}, nil
}

func (s *RedisScheduleStore) Delete(ctx context.Context, userID id.UserID) error {
	n, err := s.client.Del(ctx, scheduleKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
