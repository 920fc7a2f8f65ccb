package cache

import (
	"context"
	"errors"
	"time"

	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus"
)

// InstrumentedCache считает операции с кэшем по типу и результату
type InstrumentedCache struct {
	next       interfaces.CachePort
	operations *prometheus.CounterVec // labels: operation, status
}

var _ interfaces.CachePort = (*InstrumentedCache)(nil)

// NewInstrumentedCache оборачивает next. operations может быть nil.
func NewInstrumentedCache(next interfaces.CachePort, operations *prometheus.CounterVec) *InstrumentedCache {
	return &InstrumentedCache{next: next, operations: operations}
}

func (c *InstrumentedCache) observe(operation string, err error) {
	if c.operations == nil {
		return
	}

	status := "success"
	switch {
	case errors.Is(err, interfaces.ErrCacheMiss):
		status = "miss"
	case err != nil:
		status = "error"
	}
	c.operations.WithLabelValues(operation, status).Inc()
}

func (c *InstrumentedCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.next.Get(ctx, key)
	c.observe("get", err)
	return val, err
}

func (c *InstrumentedCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	err := c.next.Set(ctx, key, value, expiration)
	c.observe("set", err)
	return err
}

func (c *InstrumentedCache) Delete(ctx context.Context, key string) error {
	err := c.next.Delete(ctx, key)
	c.observe("delete", err)
	return err
}

func (c *InstrumentedCache) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	n, err := c.next.DeleteByPattern(ctx, pattern)
	c.observe("delete_pattern", err)
	return n, err
}

func (c *InstrumentedCache) Close() error {
	return c.next.Close()
}
