package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"movie-discovery-search-service/internal/models"
	"movie-discovery-search-service/internal/tmdb"
)

const defaultCatalogCacheTTL = 5 * time.Minute

// MovieSearcher is the upstream catalog API.
type MovieSearcher interface {
	SearchMovies(ctx context.Context, query string, page int) (*tmdb.SearchResponse, error)
}

// CacheRecorder counts cache hits and misses. A nil CacheRecorder is allowed.
type CacheRecorder interface {
	CacheResult(hit bool)
}

// CatalogService performs catalog lookups with a Redis read-through cache.
type CatalogService struct {
	tmdb     MovieSearcher
	redis    *redis.Client
	language string
	ttl      time.Duration
	recorder CacheRecorder
}

// NewCatalogService creates a new CatalogService. rdb may be nil, in which
// case every lookup goes upstream.
func NewCatalogService(searcher MovieSearcher, rdb *redis.Client, language string, ttl time.Duration, recorder CacheRecorder) *CatalogService {
	if ttl <= 0 {
		ttl = defaultCatalogCacheTTL
	}
	return &CatalogService{
		tmdb:     searcher,
		redis:    rdb,
		language: language,
		ttl:      ttl,
		recorder: recorder,
	}
}

// SearchMovies returns one page of results for query.
func (s *CatalogService) SearchMovies(ctx context.Context, query string, page int) (*models.ResultPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, tmdb.ErrEmptyQuery
	}
	if page < 1 {
		page = 1
	}

	cacheKey := fmt.Sprintf("search:movies:%s:%d:%s", s.language, page, strings.ToLower(query))

	if cached, err := s.getFromCache(ctx, cacheKey); err == nil {
		var result models.ResultPage
		if json.Unmarshal([]byte(cached), &result) == nil {
			slog.Debug("cache hit", "key", cacheKey)
			s.cacheResult(true)
			return &result, nil
		}
	}
	s.cacheResult(false)

	resp, err := s.tmdb.SearchMovies(ctx, query, page)
	if err != nil {
		return nil, fmt.Errorf("failed to search movies: %w", err)
	}
	result := resp.ToResultPage()

	if data, err := json.Marshal(result); err == nil {
		s.setCache(ctx, cacheKey, string(data))
	}

	return result, nil
}

func (s *CatalogService) cacheResult(hit bool) {
	if s.redis == nil || s.recorder == nil {
		return
	}
	s.recorder.CacheResult(hit)
}

// ---- Redis Helpers ----

var errNoCache = errors.New("redis not available")

func (s *CatalogService) getFromCache(ctx context.Context, key string) (string, error) {
	if s.redis == nil {
		return "", errNoCache
	}
	return s.redis.Get(ctx, key).Result()
}

// setCache does not derive from ctx's cancellation so that a result that
// has already been fetched is still cached when the caller moves on.
func (s *CatalogService) setCache(ctx context.Context, key, value string) {
	if s.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.redis.Set(ctx, key, value, s.ttl).Err(); err != nil {
		slog.Error("failed to set cache", "key", key, "error", err)
	}
}
