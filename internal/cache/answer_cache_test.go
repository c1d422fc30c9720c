package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mvamarnath1/interview/internal/models"
	"github.com/mvamarnath1/interview/internal/repositories"
	"github.com/mvamarnath1/interview/internal/testhelpers"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type failingStore struct{}

func (failingStore) Get(context.Context, string, string) (*models.CacheEntry, error) {
	return nil, errors.New("store down")
}

func (failingStore) Put(context.Context, *models.CacheEntry) error { return errors.New("store down") }

func sampleEntry() models.CacheEntry {
	return models.CacheEntry{Answer: "I build reliable backend systems.", Score: 8, Category: models.CategoryBehavioral}
}

func TestNormalizeEquivalentPhrasings(t *testing.T) {
	variants := []string{
		"Tell me about yourself.",
		"tell me about yourself",
		"  TELL   me about\tyourself?! ",
		"Tell me about yourself...",
		"tell me\nabout yourself ;",
	}
	want := "tell me about yourself"
	for _, v := range variants {
		assert.Equal(t, want, Normalize(v), "variant %q", v)
	}

	assert.NotEqual(t, Normalize("Tell me about yourself"), Normalize("Tell me about your team"))
	assert.Equal(t, "what's c++", Normalize("What's C++?"))
	assert.Equal(t, "", Normalize(" ?! "))
}

func TestAnswerCache_StoreThenLookupVerbatim(t *testing.T) {
	clock := newFakeClock()
	c := NewAnswerCache(time.Hour, zap.NewNop(), WithClock(clock.Now))
	ctx := context.Background()

	c.Store(ctx, "tell me about yourself", "alice", sampleEntry())
	got, ok := c.Lookup(ctx, "tell me about yourself", "alice")
	require.True(t, ok)
	assert.Equal(t, "I build reliable backend systems.", got.Answer)
	assert.Equal(t, 8, got.Score)
	assert.Equal(t, models.CategoryBehavioral, got.Category)
	assert.Equal(t, 1, got.HitCount)

	clock.Advance(time.Minute)
	got, ok = c.Lookup(ctx, "tell me about yourself", "alice")
	require.True(t, ok)
	assert.Equal(t, 2, got.HitCount)
	assert.Equal(t, clock.Now(), got.LastUsedAt)
}

func TestAnswerCache_IsolatedPerUser(t *testing.T) {
	c := NewAnswerCache(time.Hour, zap.NewNop())
	c.Store(context.Background(), "why go", "alice", sampleEntry())

	_, ok := c.Lookup(context.Background(), "why go", "bob")
	assert.False(t, ok, "entries must not be shared across users")
}

func TestAnswerCache_LazyExpiry(t *testing.T) {
	clock := newFakeClock()
	c := NewAnswerCache(time.Hour, zap.NewNop(), WithClock(clock.Now))
	ctx := context.Background()

	c.Store(ctx, "why go", "alice", sampleEntry())
	clock.Advance(59 * time.Minute)
	_, ok := c.Lookup(ctx, "why go", "alice")
	assert.True(t, ok)

	clock.Advance(time.Minute)
	_, ok = c.Lookup(ctx, "why go", "alice")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size(), "expired entry should be dropped on lookup")
}

func TestAnswerCache_StoreOverwritesAndRefreshesTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewAnswerCache(time.Hour, zap.NewNop(), WithClock(clock.Now))
	ctx := context.Background()

	c.Store(ctx, "why go", "alice", sampleEntry())
	clock.Advance(50 * time.Minute)
	c.Store(ctx, "why go", "alice", models.CacheEntry{Answer: "newer", Score: 5, Category: models.CategoryTechnical})
	clock.Advance(30 * time.Minute)

	got, ok := c.Lookup(ctx, "why go", "alice")
	require.True(t, ok)
	assert.Equal(t, "newer", got.Answer)
}

func TestAnswerCache_Sweep(t *testing.T) {
	clock := newFakeClock()
	c := NewAnswerCache(time.Hour, zap.NewNop(), WithClock(clock.Now))
	ctx := context.Background()

	c.Store(ctx, "old", "alice", sampleEntry())
	clock.Advance(45 * time.Minute)
	c.Store(ctx, "fresh", "alice", sampleEntry())
	clock.Advance(30 * time.Minute)

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Size())
}

func TestAnswerCache_ReadThroughDatabaseStore(t *testing.T) {
	repo := &repositories.CacheRepository{DB: testhelpers.SetupTestDB(t)}
	ctx := context.Background()

	first := NewAnswerCache(time.Hour, zap.NewNop(), WithStore(repo))
	first.Store(ctx, "why go", "alice", sampleEntry())

	// a fresh cache simulates a process restart
	restarted := NewAnswerCache(time.Hour, zap.NewNop(), WithStore(repo))
	got, ok := restarted.Lookup(ctx, "why go", "alice")
	require.True(t, ok)
	assert.Equal(t, "I build reliable backend systems.", got.Answer)
	assert.Equal(t, 1, restarted.Size())
}

func TestAnswerCache_ReadThroughRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := NewRedisStore(rdb, time.Hour)
	ctx := context.Background()

	NewAnswerCache(time.Hour, zap.NewNop(), WithStore(store)).Store(ctx, "why go", "alice", sampleEntry())
	assert.True(t, mr.Exists("answer:alice:why go"))
	assert.Equal(t, time.Hour, mr.TTL("answer:alice:why go"))

	got, ok := NewAnswerCache(time.Hour, zap.NewNop(), WithStore(store)).Lookup(ctx, "why go", "alice")
	require.True(t, ok)
	assert.Equal(t, 8, got.Score)

	mr.FastForward(2 * time.Hour)
	_, err = store.Get(ctx, "why go", "alice")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAnswerCache_StoreFailuresAreNotFatal(t *testing.T) {
	c := NewAnswerCache(time.Hour, zap.NewNop(), WithStore(failingStore{}))
	ctx := context.Background()

	_, ok := c.Lookup(ctx, "why go", "alice")
	assert.False(t, ok)

	c.Store(ctx, "why go", "alice", sampleEntry())
	_, ok = c.Lookup(ctx, "why go", "alice")
	assert.True(t, ok, "memory copy should survive a failed write-through")
}

func TestAnswerCache_ConcurrentAccess(t *testing.T) {
	c := NewAnswerCache(time.Hour, zap.NewNop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				fp := fmt.Sprintf("q%d", j%4)
				c.Store(ctx, fp, "alice", models.CacheEntry{Answer: fmt.Sprintf("a%d", i), Score: 5})
				if got, ok := c.Lookup(ctx, fp, "alice"); ok {
					assert.Equal(t, 5, got.Score)
				}
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 4, c.Size())
}
