package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"movie-discovery-search-service/internal/models"
)

const keyPrefix = "search:history:"

// RedisStore keeps one owner's history in a sorted set. Scores come from a
// per-owner INCR sequence, an opaque recency stamp that is strictly increasing
// even when several instances write in the same instant.
type RedisStore struct {
	rdb    *redis.Client
	key    string
	seqKey string
	max    int
}

// NewRedisStore creates a store for owner retaining at most maxEntries queries.
func NewRedisStore(rdb *redis.Client, owner string, maxEntries int) *RedisStore {
	if maxEntries < 1 {
		maxEntries = models.DefaultHistoryLimit
	}
	return &RedisStore{
		rdb:    rdb,
		key:    keyPrefix + owner,
		seqKey: keyPrefix + owner + ":seq",
		max:    maxEntries,
	}
}

// Save records query as the most recent entry and trims the set to the bound.
func (s *RedisStore) Save(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	seq, err := s.rdb.Incr(ctx, s.seqKey).Result()
	if err != nil {
		return fmt.Errorf("next history stamp: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, s.key, redis.Z{Score: float64(seq), Member: query})
		// Drop everything ranked below the newest max entries.
		pipe.ZRemRangeByRank(ctx, s.key, 0, int64(-(s.max + 1)))
		return nil
	})
	if err != nil {
		return fmt.Errorf("save history entry: %w", err)
	}
	return nil
}

// List returns up to limit queries, most recent first.
func (s *RedisStore) List(ctx context.Context, limit int) ([]string, error) {
	if limit < 1 || limit > s.max {
		limit = s.max
	}
	entries, err := s.rdb.ZRevRange(ctx, s.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

// Remove deletes query if present.
func (s *RedisStore) Remove(ctx context.Context, query string) error {
	if err := s.rdb.ZRem(ctx, s.key, strings.TrimSpace(query)).Err(); err != nil {
		return fmt.Errorf("remove history entry: %w", err)
	}
	return nil
}

// Clear deletes the owner's history and its sequence.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key, s.seqKey).Err(); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// RedisStores hands out RedisStore values sharing one client.
type RedisStores struct {
	rdb *redis.Client
	max int
}

// NewRedisStores creates a per-owner factory.
func NewRedisStores(rdb *redis.Client, maxEntries int) *RedisStores {
	return &RedisStores{rdb: rdb, max: maxEntries}
}

// For returns the store for owner.
func (r *RedisStores) For(owner string) *RedisStore {
	return NewRedisStore(r.rdb, owner, r.max)
}
