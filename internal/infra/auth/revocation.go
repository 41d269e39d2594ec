package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/reflections-auth/internal/infra"
)

// RevocationStore фиксирует использованные refresh-токены (по jti).
type RevocationStore interface {
	// Consume атомарно помечает jti использованным на ttl.
	// false означает, что jti уже был использован ранее.
	Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error)
}

// RedisRevocationStore разделяет состояние ротации между инстансами.
type RedisRevocationStore struct {
	rdb *redis.Client
}

func NewRedisRevocationStore(rdb *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{rdb: rdb}
}

func (s *RedisRevocationStore) Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	// SetNX: только первый обмен токена выигрывает, повторный получит false
	return s.rdb.SetNX(ctx, infra.ConsumedRefreshKey(jti), "consumed", ttl).Result()
}

// MemoryRevocationStore — вариант для одного инстанса без Redis.
type MemoryRevocationStore struct {
	mu       sync.Mutex
	consumed map[string]time.Time
	now      func() time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		consumed: make(map[string]time.Time),
		now:      time.Now,
	}
}

func (s *MemoryRevocationStore) Consume(_ context.Context, jti string, ttl time.Duration) (bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Ленивая очистка истекших записей
	for k, exp := range s.consumed {
		if !exp.After(now) {
			delete(s.consumed, k)
		}
	}

	if _, ok := s.consumed[jti]; ok {
		return false, nil
	}
	s.consumed[jti] = now.Add(ttl)
	return true, nil
}
