package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mvamarnath1/interview/internal/models"
)

// EntryStore is the persistence capability behind the in-memory cache.
type EntryStore interface {
	Get(ctx context.Context, fingerprint, userID string) (*models.CacheEntry, error)
	Put(ctx context.Context, entry *models.CacheEntry) error
}

type key struct {
	fingerprint string
	userID      string
}

// AnswerCache stores scored answers per (fingerprint, user) with lazy TTL
// expiry. All operations on one key are serialized by mu, so callers need no
// locking of their own.
type AnswerCache struct {
	mu      sync.Mutex
	entries map[key]*models.CacheEntry
	ttl     time.Duration
	store   EntryStore
	logger  *zap.Logger
	now     func() time.Time
}

type Option func(*AnswerCache)

// WithClock replaces time.Now, used in tests.
func WithClock(now func() time.Time) Option {
	return func(c *AnswerCache) { c.now = now }
}

// WithStore write-throughs entries to a persistent store and reads through on
// memory misses. Store failures are logged and never surface to callers.
func WithStore(store EntryStore) Option {
	return func(c *AnswerCache) { c.store = store }
}

// NewAnswerCache creates a cache whose entries live for ttl after being stored.
func NewAnswerCache(ttl time.Duration, logger *zap.Logger, opts ...Option) *AnswerCache {
	c := &AnswerCache{
		entries: make(map[key]*models.CacheEntry),
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the entry for (fingerprint, userID) if present and fresh. A
// hit bumps the hit count and last-used time.
func (c *AnswerCache) Lookup(ctx context.Context, fingerprint, userID string) (models.CacheEntry, bool) {
	k := key{fingerprint: fingerprint, userID: userID}

	c.mu.Lock()
	if entry, ok := c.hitLocked(k); ok {
		c.mu.Unlock()
		return entry, true
	}
	c.mu.Unlock()

	if c.store == nil {
		return models.CacheEntry{}, false
	}

	stored, err := c.store.Get(ctx, fingerprint, userID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			c.logger.Warn("answer cache store read failed", zap.Error(err))
		}
		return models.CacheEntry{}, false
	}
	if c.expired(stored) {
		return models.CacheEntry{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// a concurrent Store may have landed while the store was read
	if _, ok := c.entries[k]; !ok {
		loaded := *stored
		c.entries[k] = &loaded
	}
	return c.hitLocked(k)
}

// Store overwrites any entry for (fingerprint, userID). Last write wins.
func (c *AnswerCache) Store(ctx context.Context, fingerprint, userID string, entry models.CacheEntry) {
	now := c.now()
	entry.Fingerprint = fingerprint
	entry.UserID = userID
	entry.StoredAt = now
	entry.LastUsedAt = now

	c.mu.Lock()
	stored := entry
	c.entries[key{fingerprint: fingerprint, userID: userID}] = &stored
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.Put(ctx, &entry); err != nil {
		c.logger.Warn("answer cache store write failed",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

// Sweep drops expired entries from memory and returns how many were removed.
// Lookups expire lazily, so Sweep only bounds memory.
func (c *AnswerCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, entry := range c.entries {
		if c.expired(entry) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Size returns the current number of entries held in memory
func (c *AnswerCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *AnswerCache) hitLocked(k key) (models.CacheEntry, bool) {
	entry, ok := c.entries[k]
	if !ok {
		return models.CacheEntry{}, false
	}
	if c.expired(entry) {
		delete(c.entries, k)
		return models.CacheEntry{}, false
	}
	entry.HitCount++
	entry.LastUsedAt = c.now()
	return *entry, true
}

func (c *AnswerCache) expired(entry *models.CacheEntry) bool {
	return c.now().Sub(entry.StoredAt) >= c.ttl
}
