package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSessions hands out Redis-backed session stores sharing one client.
type RedisSessions struct {
	Client redis.UniversalClient
	TTL    time.Duration
}

// Session returns the store of session id.
func (s RedisSessions) Session(id string) *RedisSession {
	return &RedisSession{client: s.Client, session: id, ttl: s.TTL}
}

// RedisSession stores cart payloads under one session. Every write refreshes the TTL.
type RedisSession struct {
	client  redis.UniversalClient
	session string
	ttl     time.Duration
}

// NewRedisSession constructs a session store for id.
func NewRedisSession(client redis.UniversalClient, id string, ttl time.Duration) *RedisSession {
	return &RedisSession{client: client, session: id, ttl: ttl}
}

func (s *RedisSession) ready() error {
	if s == nil || s.client == nil {
		return errors.New("cache: redis client not configured")
	}
	return nil
}

// Has reports whether key holds a payload.
func (s *RedisSession) Has(ctx context.Context, key string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	n, err := s.client.Exists(ctx, SessionKey(s.session, key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Get returns the payload under key and whether it existed.
func (s *RedisSession) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.ready(); err != nil {
		return nil, false, err
	}
	data, err := s.client.Get(ctx, SessionKey(s.session, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Put replaces the payload under key.
func (s *RedisSession) Put(ctx context.Context, key string, data []byte) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.client.Set(ctx, SessionKey(s.session, key), data, s.ttl).Err()
}

// Remove deletes key.
func (s *RedisSession) Remove(ctx context.Context, key string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.client.Del(ctx, SessionKey(s.session, key)).Err()
}

// Forget deletes every key of the session starting with prefix.
func (s *RedisSession) Forget(ctx context.Context, prefix string) error {
	if err := s.ready(); err != nil {
		return err
	}
	iter := s.client.Scan(ctx, 0, escapeGlob(SessionKey(s.session, prefix))+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
