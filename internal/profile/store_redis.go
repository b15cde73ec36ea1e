package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

const (
	profileKeyPrefix = "profile:id:"
	nameKeyPrefix    = "profile:name:"
	bannedSetKey     = "profiles:banned"
)

// RedisStore is the production profile store. Each profile is one JSON value;
// ban transitions use WATCH/MULTI so a concurrent ban on the same user loses
// cleanly with ErrConflict instead of clobbering state.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func profileKey(userID id.UserID) string { return profileKeyPrefix + userID.String() }

func (s *RedisStore) Get(ctx context.Context, userID id.UserID) (*Profile, error) {
	raw, err := s.client.Get(ctx, profileKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", userID, err)
	}
	return &p, nil
}

func (s *RedisStore) GetByAccountName(ctx context.Context, name string) (*Profile, error) {
	userID, err := s.client.Get(ctx, nameKeyPrefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	return s.Get(ctx, id.UserID(userID))
}

func (s *RedisStore) Create(ctx context.Context, p *Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	ok, err := s.client.SetNX(ctx, profileKey(p.UserID), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	if !ok {
		return sentinel.ErrConflict
	}
	return s.client.Set(ctx, nameKeyPrefix+p.AccountName, p.UserID.String(), 0).Err()
}

// mutate applies fn to the stored profile under WATCH. fn returns the updated
// profile or an error; the transaction retries once on a concurrent write and
// then surfaces ErrConflict.
func (s *RedisStore) mutate(ctx context.Context, userID id.UserID, fn func(p *Profile) error) error {
	key := profileKey(userID)
	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return err
		}
		var p Profile
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		if err := fn(&p); err != nil {
			return err
		}
		updated, err := json.Marshal(&p)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			if p.IsBanned {
				pipe.SAdd(ctx, bannedSetKey, p.UserID.String())
			} else {
				pipe.SRem(ctx, bannedSetKey, p.UserID.String())
			}
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txn, key)
	if errors.Is(err, redis.TxFailedErr) {
		// Another writer touched the profile mid-transaction. One retry:
		// if it fails again the caller lost the race.
		if err = s.client.Watch(ctx, txn, key); errors.Is(err, redis.TxFailedErr) {
			return sentinel.ErrConflict
		}
	}
	return err
}

func (s *RedisStore) SetBan(ctx context.Context, userID id.UserID, attrs BanAttributes) error {
	return s.mutate(ctx, userID, func(p *Profile) error {
		if p.IsBanned {
			return sentinel.ErrConflict
		}
		bannedAt := attrs.BannedAt
		p.IsBanned = true
		p.BanReason = attrs.Reason
		p.BannedAt = &bannedAt
		p.BannedBy = attrs.BannedBy
		p.BanDuration = attrs.Duration
		p.BanDurationUnit = attrs.Unit
		p.BanExpiresAt = attrs.ExpiresAt
		return nil
	})
}

func (s *RedisStore) ClearBan(ctx context.Context, userID id.UserID) error {
	return s.mutate(ctx, userID, func(p *Profile) error {
		if !p.IsBanned {
			return sentinel.ErrConflict
		}
		p.IsBanned = false
		p.BanReason = ""
		p.BannedAt = nil
		p.BannedBy = ""
		p.BanDuration = 0
		p.BanDurationUnit = ""
		p.BanExpiresAt = nil
		return nil
	})
}

func (s *RedisStore) IncrementViolationCount(ctx context.Context, userID id.UserID) (int, error) {
	var count int
	err := s.mutate(ctx, userID, func(p *Profile) error {
		p.ViolationCount++
		count = p.ViolationCount
		return nil
	})
	return count, err
}

func (s *RedisStore) ListBanned(ctx context.Context) ([]*Profile, error) {
	ids, err := s.client.SMembers(ctx, bannedSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	out := make([]*Profile, 0, len(ids))
	for _, userID := range ids {
		p, err := s.Get(ctx, id.UserID(userID))
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
