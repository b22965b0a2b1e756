package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository stores each session as JSON under <prefix><token> with a
// TTL matching its expiry. A set under <prefix>user:<id> indexes the tokens
// of each user.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository uses "traillog:session:" when prefix is empty.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "traillog:session:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) tokenKey(refresh string) string { return r.prefix + refresh }
func (r *RedisRepository) userKey(userID string) string   { return r.prefix + "user:" + userID }

func (r *RedisRepository) Create(ctx context.Context, s *Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl < time.Second {
		// redis rejects non-positive expirations
		ttl = time.Second
	}
	// the index must outlive every session it lists
	indexTTL := ttl
	if cur, err := r.client.TTL(ctx, r.userKey(s.UserID)).Result(); err == nil && cur > indexTTL {
		indexTTL = cur
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.tokenKey(s.RefreshToken), payload, ttl)
		p.SAdd(ctx, r.userKey(s.UserID), s.RefreshToken)
		p.Expire(ctx, r.userKey(s.UserID), indexTTL)
		return nil
	})
	return err
}

func (r *RedisRepository) GetByRefresh(ctx context.Context, refresh string) (*Session, error) {
	payload, err := r.client.Get(ctx, r.tokenKey(refresh)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

// DeleteByRefresh relies on DEL being atomic: of concurrent callers only
// one sees the key removed.
func (r *RedisRepository) DeleteByRefresh(ctx context.Context, refresh string) (bool, error) {
	s, err := r.GetByRefresh(ctx, refresh)
	if err != nil || s == nil {
		return false, err
	}
	var del *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, r.tokenKey(refresh))
		p.SRem(ctx, r.userKey(s.UserID), refresh)
		return nil
	})
	if err != nil {
		return false, err
	}
	return del.Val() > 0, nil
}

// DeleteByUser counts only tokens whose session had not yet expired.
func (r *RedisRepository) DeleteByUser(ctx context.Context, userID string) (int, error) {
	tokens, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(tokens)+1)
	for _, t := range tokens {
		keys = append(keys, r.tokenKey(t))
	}
	var live int64
	if len(keys) > 0 {
		if live, err = r.client.Del(ctx, keys...).Result(); err != nil {
			return 0, err
		}
	}
	if err := r.client.Del(ctx, r.userKey(userID)).Err(); err != nil {
		return int(live), err
	}
	return int(live), nil
}
