package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movie-discovery-search-service/internal/tmdb"
)

type mockSearcher struct {
	SearchMoviesFunc func(ctx context.Context, query string, page int) (*tmdb.SearchResponse, error)
	calls            int
}

func (m *mockSearcher) SearchMovies(ctx context.Context, query string, page int) (*tmdb.SearchResponse, error) {
	m.calls++
	if m.SearchMoviesFunc != nil {
		return m.SearchMoviesFunc(ctx, query, page)
	}
	poster := "/p.jpg"
	return &tmdb.SearchResponse{
		Page:         page,
		TotalPages:   1,
		TotalResults: 1,
		Results:      []tmdb.TMDBMovie{{ID: 1, Title: query, PosterPath: &poster, VoteAverage: 7.5}},
	}, nil
}

type mockCacheRecorder struct {
	hits, misses int
}

func (m *mockCacheRecorder) CacheResult(hit bool) {
	if hit {
		m.hits++
		return
	}
	m.misses++
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCatalogService_CachesPages(t *testing.T) {
	mr, rdb := newTestRedis(t)
	searcher := &mockSearcher{}
	rec := &mockCacheRecorder{}
	svc := NewCatalogService(searcher, rdb, "en-US", time.Minute, rec)
	ctx := context.Background()

	first, err := svc.SearchMovies(ctx, "Dune", 1)
	require.NoError(t, err)
	second, err := svc.SearchMovies(ctx, " dune ", 1)
	require.NoError(t, err)

	assert.Equal(t, 1, searcher.calls, "second lookup is served from cache")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)

	require.True(t, mr.Exists("search:movies:en-US:1:dune"))
	assert.Equal(t, time.Minute, mr.TTL("search:movies:en-US:1:dune"))
}

func TestCatalogService_MapsResults(t *testing.T) {
	svc := NewCatalogService(&mockSearcher{}, nil, "en-US", 0, nil)

	page, err := svc.SearchMovies(context.Background(), "heat", 0)
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, "heat", page.Results[0].Title)
	assert.Equal(t, 7.5, page.Results[0].Rating)
	assert.Nil(t, page.Results[0].ReleaseDate)
}

func TestCatalogService_ErrorsAreNotCached(t *testing.T) {
	mr, rdb := newTestRedis(t)
	upstream := errors.New("TMDB API returned status 503: unavailable")
	searcher := &mockSearcher{
		SearchMoviesFunc: func(context.Context, string, int) (*tmdb.SearchResponse, error) {
			return nil, upstream
		},
	}
	svc := NewCatalogService(searcher, rdb, "en-US", time.Minute, nil)

	_, err := svc.SearchMovies(context.Background(), "dune", 1)
	require.ErrorIs(t, err, upstream)
	assert.Empty(t, mr.Keys())
}

func TestCatalogService_EmptyQuery(t *testing.T) {
	searcher := &mockSearcher{}
	svc := NewCatalogService(searcher, nil, "en-US", 0, nil)

	_, err := svc.SearchMovies(context.Background(), "  ", 1)
	assert.ErrorIs(t, err, tmdb.ErrEmptyQuery)
	assert.Zero(t, searcher.calls)
}

func TestCatalogService_RedisDownFallsThrough(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	searcher := &mockSearcher{}
	svc := NewCatalogService(searcher, rdb, "en-US", time.Minute, nil)

	page, err := svc.SearchMovies(context.Background(), "dune", 1)
	require.NoError(t, err)
	assert.Len(t, page.Results, 1)
	assert.Equal(t, 1, searcher.calls)
}
