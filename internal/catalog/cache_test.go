package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rpattn/clubhouse/internal/domain"
	"github.com/rpattn/clubhouse/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	mu      sync.Mutex
	values  map[string]string
	failGet bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStringCmd(ctx, "get", key)
	if f.failGet {
		cmd.SetErr(errors.New("redis unavailable"))
		return cmd
	}
	value, ok := f.values[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(value)
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	cmd := redis.NewStatusCmd(ctx, "set", key)
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			removed++
		}
	}
	cmd := redis.NewIntCmd(ctx, "del")
	cmd.SetVal(removed)
	return cmd
}

type countingReader struct {
	inner ScopeReader
	calls atomic.Int64
}

func (c *countingReader) ForScope(ctx context.Context, scope domain.Scope, owner *uuid.UUID) ([]domain.MembershipTypeDefinition, error) {
	c.calls.Add(1)
	return c.inner.ForScope(ctx, scope, owner)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCacheServesRepeatReadsFromRedis(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	reader := &countingReader{inner: RepositoryReader{Repo: store}}
	cache := NewCache(reader, newFakeRedis(), WithCacheLogger(quietLogger()))
	c := New(store, WithCache(cache), WithLogger(quietLogger()))

	club := uuid.New()
	mustCreate(t, c, "Senior", domain.ScopeClub, &club)
	member := domain.MemberProfile{ClubID: club}

	for i := 0; i < 3; i++ {
		candidates, err := c.Candidates(ctx, member)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
	}
	// one miss each for the global and club scopes
	assert.Equal(t, int64(2), reader.calls.Load())
}

func TestCacheInvalidatedOnWrite(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	cache := NewCache(RepositoryReader{Repo: store}, newFakeRedis(), WithCacheLogger(quietLogger()))
	c := New(store, WithCache(cache), WithLogger(quietLogger()))

	club := uuid.New()
	def := mustCreate(t, c, "Senior", domain.ScopeClub, &club)
	member := domain.MemberProfile{ClubID: club}

	candidates, err := c.Candidates(ctx, member)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	_, err = c.Deactivate(ctx, def.ID)
	require.NoError(t, err)

	candidates, err = c.Candidates(ctx, member)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestCacheFallsBackWhenRedisFails(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	client := newFakeRedis()
	client.failGet = true
	cache := NewCache(RepositoryReader{Repo: store}, client, WithCacheLogger(quietLogger()))

	_, err := store.Create(ctx, domain.NewMembershipTypeDefinition("National Registration", domain.ScopeGlobal, nil, domain.AgeBounds{}, annualGBP))
	require.NoError(t, err)

	defs, err := cache.ForScope(ctx, domain.ScopeGlobal, nil)
	require.NoError(t, err)
	assert.Len(t, defs, 1)
}
