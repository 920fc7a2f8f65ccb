package testutil

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
)

// MemoryCache - in-memory CachePort. TTL сохраняется, но не применяется.
type MemoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttl  map[string]time.Duration

	// Err возвращается всеми операциями, если задан
	Err error
}

var _ interfaces.CachePort = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data: make(map[string][]byte),
		ttl:  make(map[string]time.Duration),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}
	v, ok := c.data[key]
	if !ok {
		return nil, interfaces.ErrCacheMiss
	}
	return v, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Err != nil {
		return c.Err
	}
	c.data[key] = value
	c.ttl[key] = expiration
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Err != nil {
		return c.Err
	}
	delete(c.data, key)
	delete(c.ttl, key)
	return nil
}

// DeleteByPattern понимает glob шаблоны Redis вида "ean:*"
func (c *MemoryCache) DeleteByPattern(_ context.Context, pattern string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Err != nil {
		return 0, c.Err
	}

	var n int64
	for key := range c.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.data, key)
			delete(c.ttl, key)
			n++
		}
	}
	return n, nil
}

func (c *MemoryCache) Close() error { return nil }

// Has сообщает, есть ли ключ в кэше
func (c *MemoryCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// TTL возвращает срок, с которым был записан ключ
func (c *MemoryCache) TTL(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl[key]
}
