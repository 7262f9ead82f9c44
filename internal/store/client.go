// Copyright 2025 James Ross
// Package store implements the tenant-partitioned key/value layer (spec
// §4.6): Redis is the primary backing store, but every operation falls
// back to an in-memory map when Redis is unreachable, so a single-node
// deployment or a Redis outage degrades state persistence rather than
// availability.
package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/beobservant/becertain/internal/breaker"
	"github.com/beobservant/becertain/internal/config"
)

type fallbackEntry struct {
	value     string
	expiresAt time.Time
}

func (e fallbackEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Client is a tenant-agnostic key/value store over Redis with an
// in-memory fallback. Keys are expected to already be namespaced by
// tenant (see BaselineKey, WeightsKey, GrangerKey, EventsKey).
type Client struct {
	cfg     config.Store
	rdb     *redis.Client
	cb      *breaker.CircuitBreaker

	mu       sync.Mutex
	fallback map[string]fallbackEntry
}

// NewClient builds a store client around cfg. The Redis connection is
// lazy: no network call happens until the first Get/Set/Delete/Keys, and a
// circuit breaker governs how often a failing connection is retried so a
// downed Redis doesn't turn every call into a blocking dial attempt.
func NewClient(cfg config.Store) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		MaxRetries:   cfg.Redis.MaxRetries,
	})
	return &Client{
		cfg:      cfg,
		rdb:      rdb,
		cb:       breaker.New(30*time.Second, cfg.RetryCooldown, 0.5, 3),
		fallback: make(map[string]fallbackEntry),
	}
}

// NewClientWithRedis wires an already-constructed Redis client, used by
// tests against miniredis.
func NewClientWithRedis(cfg config.Store, rdb *redis.Client) *Client {
	c := NewClient(cfg)
	c.rdb = rdb
	return c
}

// IsUsingFallback reports whether the breaker currently routes operations
// to the in-memory map instead of Redis.
func (c *Client) IsUsingFallback() bool {
	return c.cb.State() == breaker.Open
}

// BreakerState reports the circuit breaker's current state as an integer
// (0 Closed, 1 HalfOpen, 2 Open), matching obs.StoreHealth's contract so
// it can be sampled into the becertain_store_breaker_state gauge.
func (c *Client) BreakerState() int {
	return int(c.cb.State())
}

func (c *Client) opCtx(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := c.cfg.OperationTimeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return context.WithTimeout(parent, timeout)
}

// Get returns the value for key and whether it was found.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	if c.cb.Allow() {
		cctx, cancel := c.opCtx(ctx)
		val, err := c.rdb.Get(cctx, key).Result()
		cancel()
		if err == nil {
			c.cb.Record(true)
			return val, true, nil
		}
		if err != redis.Nil {
			c.cb.Record(false)
		} else {
			c.cb.Record(true)
			return "", false, nil
		}
	}
	v, ok := c.fallbackGet(key)
	return v, ok, nil
}

// Set stores value under key with an optional TTL (zero means no expiry).
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if c.cb.Allow() {
		cctx, cancel := c.opCtx(ctx)
		err := c.rdb.Set(cctx, key, value, ttl).Err()
		cancel()
		if err == nil {
			c.cb.Record(true)
			return nil
		}
		c.cb.Record(false)
	}
	c.fallbackSet(key, value, ttl)
	return nil
}

// Delete removes key from both tiers.
func (c *Client) Delete(ctx context.Context, key string) error {
	if c.cb.Allow() {
		cctx, cancel := c.opCtx(ctx)
		err := c.rdb.Del(cctx, key).Err()
		cancel()
		if err == nil {
			c.cb.Record(true)
		} else {
			c.cb.Record(false)
		}
	}
	c.fallbackDelete(key)
	return nil
}

// Keys returns every stored key matching a glob pattern (Redis KEYS
// syntax: "*" and "?" wildcards), from whichever tier is currently active.
func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	if c.cb.Allow() {
		cctx, cancel := c.opCtx(ctx)
		keys, err := c.rdb.Keys(cctx, pattern).Result()
		cancel()
		if err == nil {
			c.cb.Record(true)
			return keys, nil
		}
		c.cb.Record(false)
	}
	return c.fallbackKeys(pattern), nil
}

func (c *Client) fallbackGet(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.fallback[key]
	if !ok {
		return "", false
	}
	if e.expired(time.Now()) {
		delete(c.fallback, key)
		return "", false
	}
	return e.value, true
}

func (c *Client) fallbackSet(key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.FallbackMaxItems > 0 && len(c.fallback) >= c.cfg.FallbackMaxItems {
		if _, exists := c.fallback[key]; !exists {
			c.evictOneLocked()
		}
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	c.fallback[key] = fallbackEntry{value: value, expiresAt: expiresAt}
}

func (c *Client) fallbackDelete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.fallback, key)
}

func (c *Client) fallbackKeys(pattern string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	var out []string
	for k, e := range c.fallback {
		if e.expired(now) {
			delete(c.fallback, k)
			continue
		}
		if ok, _ := filepath.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	return out
}

// evictOneLocked drops an arbitrary entry when the fallback map hits its
// size cap; Go map iteration order is randomized, which is sufficient here
// since the cap exists to bound memory, not to implement a real LRU.
func (c *Client) evictOneLocked() {
	for k := range c.fallback {
		delete(c.fallback, k)
		return
	}
}

// Close releases the underlying Redis connection pool.
func (c *Client) Close() error {
	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}
