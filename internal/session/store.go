package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

var ErrNotFound = errors.New("session not found")

// Store keeps the logged in user behind an opaque session id. A session
// expires a fixed ttl after login; reads do not extend it.
type Store interface {
	Get(ctx context.Context, id string) (User, error)
	Save(ctx context.Context, id string, u User) error
	Delete(ctx context.Context, id string) error
}

// RedisStore shares sessions between portal replicas.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, id string) (User, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get session: %w", err)
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return User{}, fmt.Errorf("decode session: %w", err)
	}
	return u, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, u User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+id, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// MemoryStore keeps sessions in process. They are lost on restart.
type MemoryStore struct {
	cache *expirable.LRU[string, User]
}

func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	if size <= 0 {
		size = 10000
	}
	return &MemoryStore{cache: expirable.NewLRU[string, User](size, nil, ttl)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (User, error) {
	u, ok := s.cache.Get(id)
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) Save(_ context.Context, id string, u User) error {
	s.cache.Add(id, u)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.cache.Remove(id)
	return nil
}
