// Package cache provee un store acotado con TTL y reloj inyectable.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// TTL es un cache key/value con expiración por edad y tamaño máximo.
// Cuando está lleno, Set hace Prune y, si sigue lleno, descarta la entrada más vieja.
type TTL[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	items   map[K]entry[V]
}

type Option[K comparable, V any] func(*TTL[K, V])

// WithClock inyecta el reloj (tests).
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *TTL[K, V]) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMaxSize acota la cantidad de entradas (<= 0 => sin límite).
func WithMaxSize[K comparable, V any](n int) Option[K, V] {
	return func(c *TTL[K, V]) { c.maxSize = n }
}

func NewTTL[K comparable, V any](ttl time.Duration, opts ...Option[K, V]) *TTL[K, V] {
	c := &TTL[K, V]{
		ttl:     ttl,
		maxSize: 10_000,
		now:     time.Now,
		items:   make(map[K]entry[V]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get devuelve el valor si existe y no expiró. Las entradas expiradas se borran al leerlas.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if c.expired(e, c.now()) {
		delete(c.items, key)
		return zero, false
	}
	return e.value, true
}

func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.items[key]; !exists && c.maxSize > 0 && len(c.items) >= c.maxSize {
		c.pruneLocked(now)
		if len(c.items) >= c.maxSize {
			c.evictOldestLocked()
		}
	}
	c.items[key] = entry[V]{value: value, storedAt: now}
}

func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Prune borra las entradas expiradas y devuelve cuántas quitó.
func (c *TTL[K, V]) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pruneLocked(c.now())
}

func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *TTL[K, V]) pruneLocked(now time.Time) int {
	removed := 0
	for k, e := range c.items {
		if c.expired(e, now) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

func (c *TTL[K, V]) evictOldestLocked() {
	var (
		oldestKey K
		oldestAt  time.Time
		found     bool
	)
	for k, e := range c.items {
		if !found || e.storedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = k, e.storedAt, true
		}
	}
	if found {
		delete(c.items, oldestKey)
	}
}

func (c *TTL[K, V]) expired(e entry[V], now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.storedAt) >= c.ttl
}
