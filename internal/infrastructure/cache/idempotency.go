package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultIdempotencyPrefix = "idem:settle:"

// RedisIdempotencyCache guarda la respuesta exacta de una liquidación.
type RedisIdempotencyCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisIdempotencyCache construye la caché sobre un cliente compartido.
func NewRedisIdempotencyCache(client *redis.Client, keyPrefix string) *RedisIdempotencyCache {
	if keyPrefix == "" {
		keyPrefix = defaultIdempotencyPrefix
	}
	return &RedisIdempotencyCache{client: client, keyPrefix: keyPrefix}
}

// Get devuelve la respuesta previa si existe.
func (c *RedisIdempotencyCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("idempotencia get: %w", err)
	}
	return b, true, nil
}

// Put guarda la respuesta con TTL.
func (c *RedisIdempotencyCache) Put(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.keyPrefix+key, response, ttl).Err(); err != nil {
		return fmt.Errorf("idempotencia put: %w", err)
	}
	return nil
}

// Delete descarta la respuesta de un cobro que no llegó a confirmarse.
func (c *RedisIdempotencyCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("idempotencia del: %w", err)
	}
	return nil
}

type cachedResponse struct {
	body      []byte
	expiresAt time.Time
}

// MemoryIdempotencyCache implementación en memoria con limpieza periódica.
type MemoryIdempotencyCache struct {
	mu        sync.RWMutex
	entries   map[string]cachedResponse
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemoryIdempotencyCache crea la caché y arranca la goroutine de limpieza.
func NewMemoryIdempotencyCache() *MemoryIdempotencyCache {
	c := &MemoryIdempotencyCache{
		entries:  make(map[string]cachedResponse),
		stopChan: make(chan struct{}),
	}
	c.wg.Add(1)
	go c.cleanupLoop()
	return c
}

// Get devuelve una copia de la respuesta vigente.
func (c *MemoryIdempotencyCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false, nil
	}
	out := make([]byte, len(e.body))
	copy(out, e.body)
	return out, true, nil
}

// Put guarda una copia de la respuesta.
func (c *MemoryIdempotencyCache) Put(_ context.Context, key string, response []byte, ttl time.Duration) error {
	body := make([]byte, len(response))
	copy(body, response)
	c.mu.Lock()
	c.entries[key] = cachedResponse{body: body, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Delete descarta una respuesta.
func (c *MemoryIdempotencyCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Close detiene la limpieza. Se puede llamar varias veces.
func (c *MemoryIdempotencyCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

func (c *MemoryIdempotencyCache) cleanupLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *MemoryIdempotencyCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// Size número de entradas (monitoreo y tests).
func (c *MemoryIdempotencyCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
