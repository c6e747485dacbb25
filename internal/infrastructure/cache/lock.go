package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript borra la llave sólo si el token sigue siendo el nuestro: un
// lock expirado y tomado por otro worker no se libera por error.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock exclusión mutua distribuida con SET NX + TTL.
type RedisLock struct {
	client *redis.Client
	tokens sync.Map // key → token de este proceso
}

// NewRedisLock construye el lock sobre un cliente compartido.
func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client}
}

// Acquire crea la llave si no existe. false si otro la tiene.
func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", key, err)
	}
	if ok {
		l.tokens.Store(key, token)
	}
	return ok, nil
}

// Release libera la llave. Es idempotente y seguro si ya expiró.
func (l *RedisLock) Release(ctx context.Context, key string) error {
	v, ok := l.tokens.LoadAndDelete(key)
	if !ok {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{key}, v.(string)).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("liberar lock %s: %w", key, err)
	}
	return nil
}

// MemoryLock implementación en memoria para un solo proceso (desarrollo y tests).
type MemoryLock struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryLock crea el lock en memoria.
func NewMemoryLock() *MemoryLock {
	return &MemoryLock{entries: make(map[string]time.Time), now: time.Now}
}

// Acquire respeta el TTL igual que Redis.
func (l *MemoryLock) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if exp, held := l.entries[key]; held && now.Before(exp) {
		return false, nil
	}
	l.entries[key] = now.Add(ttl)
	return true, nil
}

// Release borra la llave si existe.
func (l *MemoryLock) Release(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
	return nil
}

// Held indica si la llave está tomada y vigente.
func (l *MemoryLock) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.entries[key]
	return ok && l.now().Before(exp)
}
