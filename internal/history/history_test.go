package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type store interface {
	Save(ctx context.Context, query string) error
	List(ctx context.Context, limit int) ([]string, error)
	Remove(ctx context.Context, query string) error
	Clear(ctx context.Context) error
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

// backends runs fn against every local backend with the same bound.
func backends(t *testing.T, maxEntries int, fn func(t *testing.T, s store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore(maxEntries))
	})
	t.Run("redis", func(t *testing.T) {
		rdb := newRedis(t)
		fn(t, NewRedisStore(rdb, "device-1", maxEntries))
	})
}

func TestStore_BoundAndOrder(t *testing.T) {
	backends(t, 10, func(t *testing.T, s store) {
		ctx := context.Background()
		for i := 0; i <= 10; i++ {
			require.NoError(t, s.Save(ctx, fmt.Sprintf("q%d", i)))
		}

		got, err := s.List(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"q10", "q9", "q8", "q7", "q6", "q5", "q4", "q3", "q2", "q1"}, got)
	})
}

func TestStore_DuplicateMovesToFront(t *testing.T) {
	backends(t, 10, func(t *testing.T, s store) {
		ctx := context.Background()
		for _, q := range []string{"alien", "heat", "alien", "Alien"} {
			require.NoError(t, s.Save(ctx, q))
		}

		got, err := s.List(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"Alien", "alien", "heat"}, got, "uniqueness is by exact string")
	})
}

func TestStore_IgnoresBlank(t *testing.T) {
	backends(t, 10, func(t *testing.T, s store) {
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, "   "))
		require.NoError(t, s.Save(ctx, " up "))

		got, err := s.List(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"up"}, got)
	})
}

func TestStore_ListLimit(t *testing.T) {
	backends(t, 10, func(t *testing.T, s store) {
		ctx := context.Background()
		for _, q := range []string{"a", "b", "c"} {
			require.NoError(t, s.Save(ctx, q))
		}

		got, err := s.List(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b"}, got)
	})
}

func TestStore_RemoveAndClear(t *testing.T) {
	backends(t, 10, func(t *testing.T, s store) {
		ctx := context.Background()
		for _, q := range []string{"up", "coco", "soul"} {
			require.NoError(t, s.Save(ctx, q))
		}

		require.NoError(t, s.Remove(ctx, "coco"))
		require.NoError(t, s.Remove(ctx, "missing"))
		got, err := s.List(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"soul", "up"}, got)

		require.NoError(t, s.Clear(ctx))
		got, err = s.List(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, got)

		require.NoError(t, s.Save(ctx, "brave"))
		got, err = s.List(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"brave"}, got)
	})
}

func TestRedisStore_SharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	rdb := newRedis(t)

	first := NewRedisStores(rdb, 10).For("user-7")
	second := NewRedisStores(rdb, 10).For("user-7")
	other := NewRedisStores(rdb, 10).For("user-8")

	require.NoError(t, first.Save(ctx, "dune"))
	require.NoError(t, second.Save(ctx, "tenet"))
	require.NoError(t, other.Save(ctx, "heat"))

	got, err := first.List(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"tenet", "dune"}, got)
}

func TestRedisStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	s := NewRedisStore(rdb, "device-1", 10)

	assert.Error(t, s.Save(ctx, "dune"))
	_, err := s.List(ctx, 10)
	assert.Error(t, err)
}

func TestMemoryStores_PerOwner(t *testing.T) {
	ctx := context.Background()
	stores := NewMemoryStores(10)

	require.NoError(t, stores.For("a").Save(ctx, "dune"))
	assert.Same(t, stores.For("a"), stores.For("a"))

	got, err := stores.For("b").List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
