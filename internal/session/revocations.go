package session

import (
	"context"
	"sync"
	"time"
)

// Revocations remembers signed-out token ids until they expire.
type Revocations interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryRevocations keeps revoked ids in process. Used when Redis is not
// configured; revocations are lost on restart.
type MemoryRevocations struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{expires: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryRevocations) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, exp := range m.expires {
		if !exp.After(now) {
			delete(m.expires, id)
		}
	}
	m.expires[jti] = now.Add(ttl)
	return nil
}

func (m *MemoryRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.expires[jti]
	return ok && exp.After(m.now()), nil
}

type revocationStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	RevokedTokenKey(jti string) string
}

// RedisRevocations shares revoked ids across gateway instances.
// Satisfied by *redis.Client.
type RedisRevocations struct {
	store revocationStore
}

func NewRedisRevocations(store revocationStore) *RedisRevocations {
	return &RedisRevocations{store: store}
}

func (r *RedisRevocations) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	return r.store.Set(ctx, r.store.RevokedTokenKey(jti), "1", ttl)
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return r.store.Exists(ctx, r.store.RevokedTokenKey(jti))
}
