package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"cart-service/internal/entity"
)

// Store is the session-scoped keeper of the current cart content. Keys are
// "cart."+instance. Get returns nil content when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) (*entity.Content, error)
	Put(ctx context.Context, key string, content *entity.Content) error
	Has(ctx context.Context, key string) (bool, error)
	Remove(ctx context.Context, key string) error
}

// RedisStore keeps cart content in redis as a JSON document per instance key.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a redis-backed session store. A zero ttl keeps
// entries until they are removed explicitly.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*entity.Content, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	content := entity.NewContent()
	if err := json.Unmarshal(data, content); err != nil {
		return nil, err
	}

	return content, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, content *entity.Content) error {
	data, err := json.Marshal(content)
	if err != nil {
		return err
	}

	return s.rdb.Set(ctx, key, data, s.ttl).Err()
}

func (s *RedisStore) Has(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// MemoryStore is an in-process session store for tests and single-node
// setups. It round-trips content through JSON so it behaves exactly like the
// redis store with respect to serialization, and is safe for concurrent use
// like the redis client it stands in for.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*entity.Content, error) {
	s.mu.Lock()
	data, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	content := entity.NewContent()
	if err := json.Unmarshal(data, content); err != nil {
		return nil, err
	}

	return content, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, content *entity.Content) error {
	data, err := json.Marshal(content)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[key] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Has(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok, nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}
