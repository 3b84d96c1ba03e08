package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"movie-discovery-search-service/internal/models"
)

// SearchHistoryRepository stores per-user search history in PostgreSQL.
type SearchHistoryRepository struct {
	db  *sql.DB
	max int
	now func() time.Time
}

// NewSearchHistoryRepository creates a repository retaining maxEntries queries per user.
func NewSearchHistoryRepository(db *sql.DB, maxEntries int) *SearchHistoryRepository {
	if maxEntries < 1 {
		maxEntries = models.DefaultHistoryLimit
	}
	return &SearchHistoryRepository{db: db, max: maxEntries, now: time.Now}
}

// Upsert records query for userID as its most recent search and trims the
// user's history to the retention bound.
func (r *SearchHistoryRepository) Upsert(ctx context.Context, userID, query string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO search_history (user_id, query, searched_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, query) DO UPDATE SET searched_at = EXCLUDED.searched_at
	`, userID, query, r.now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert search history: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM search_history
		WHERE user_id = $1 AND query NOT IN (
			SELECT query FROM search_history
			WHERE user_id = $1
			ORDER BY searched_at DESC, query
			LIMIT $2
		)
	`, userID, r.max); err != nil {
		return fmt.Errorf("failed to trim search history: %w", err)
	}

	return tx.Commit()
}

// ListRecent returns up to limit entries for userID, most recent first.
func (r *SearchHistoryRepository) ListRecent(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error) {
	if limit < 1 || limit > r.max {
		limit = r.max
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT query, searched_at
		FROM search_history
		WHERE user_id = $1
		ORDER BY searched_at DESC, query
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query search history: %w", err)
	}
	defer rows.Close()

	entries := make([]models.HistoryEntry, 0, limit)
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.Query, &e.SearchedAt); err != nil {
			slog.Error("failed to scan search history row", "error", err)
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search history: %w", err)
	}
	return entries, nil
}

// Delete removes one query for userID.
func (r *SearchHistoryRepository) Delete(ctx context.Context, userID, query string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM search_history WHERE user_id = $1 AND query = $2`, userID, query)
	if err != nil {
		return fmt.Errorf("failed to delete search history entry: %w", err)
	}
	return nil
}

// DeleteAll removes every query for userID.
func (r *SearchHistoryRepository) DeleteAll(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM search_history WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to clear search history: %w", err)
	}
	return nil
}

// ForUser returns a history store scoped to userID.
func (r *SearchHistoryRepository) ForUser(userID string) *UserSearchHistory {
	return &UserSearchHistory{repo: r, userID: userID}
}

// UserSearchHistory is one user's view of the repository.
type UserSearchHistory struct {
	repo   *SearchHistoryRepository
	userID string
}

func (u *UserSearchHistory) Save(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	return u.repo.Upsert(ctx, u.userID, query)
}

func (u *UserSearchHistory) List(ctx context.Context, limit int) ([]string, error) {
	entries, err := u.repo.ListRecent(ctx, u.userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Query)
	}
	return out, nil
}

func (u *UserSearchHistory) Remove(ctx context.Context, query string) error {
	return u.repo.Delete(ctx, u.userID, strings.TrimSpace(query))
}

func (u *UserSearchHistory) Clear(ctx context.Context) error {
	return u.repo.DeleteAll(ctx, u.userID)
}
