package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"movie-discovery-search-service/internal/models"
)

// ErrEmptyQuery is returned when SearchMovies is called with a blank query.
var ErrEmptyQuery = errors.New("tmdb: empty search query")

// Client is the TMDB API client.
type Client struct {
	apiKey   string
	baseURL  string
	language string
	http     *http.Client
	limiter  *rate.Limiter
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	Language  string
	Timeout   time.Duration
	RateLimit float64
}

// NewClient creates a new TMDB API client.
func NewClient(apiKey, baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 20
	}
	burst := int(opts.RateLimit)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: opts.Language,
		http: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), burst),
	}
}

// SearchResponse is the TMDB search/movie response.
type SearchResponse struct {
	Page         int         `json:"page"`
	Results      []TMDBMovie `json:"results"`
	TotalPages   int         `json:"total_pages"`
	TotalResults int         `json:"total_results"`
}

// TMDBMovie is a movie from TMDB search results.
type TMDBMovie struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	ReleaseDate *string `json:"release_date"`
	PosterPath  *string `json:"poster_path"`
	VoteAverage float64 `json:"vote_average"`
	Popularity  float64 `json:"popularity"`
	GenreIDs    []int   `json:"genre_ids"`
}

// ToResultPage maps the TMDB payload onto the catalog result page.
func (r *SearchResponse) ToResultPage() *models.ResultPage {
	page := &models.ResultPage{
		Page:         r.Page,
		TotalPages:   r.TotalPages,
		TotalResults: r.TotalResults,
		Results:      make([]models.MovieSummary, 0, len(r.Results)),
	}
	for _, m := range r.Results {
		page.Results = append(page.Results, models.MovieSummary{
			ID:          m.ID,
			Title:       m.Title,
			PosterPath:  nonEmpty(m.PosterPath),
			ReleaseDate: nonEmpty(m.ReleaseDate),
			Rating:      models.ClampRating(m.VoteAverage),
		})
	}
	return page
}

// SearchMovies queries the TMDB search/movie endpoint for one page of results.
func (c *Client) SearchMovies(ctx context.Context, query string, page int) (*SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("include_adult", "false")
	if c.language != "" {
		params.Set("language", c.language)
	}

	slog.Debug("fetching TMDB search", "query", query, "page", page)
	resp, err := c.doGet(ctx, c.baseURL+"/search/movie?"+params.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return &result, nil
}

func (c *Client) doGet(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// The request URL carries api_key; keep only the underlying cause.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, newStatusError(resp.StatusCode, body)
	}
	return resp, nil
}

// StatusError is returned for non-200 TMDB responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("TMDB API returned status %d: %s", e.Code, e.Message)
}

// newStatusError prefers TMDB's status_message over the raw body.
func newStatusError(code int, body []byte) *StatusError {
	var payload struct {
		StatusMessage string `json:"status_message"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.StatusMessage != "" {
		msg = payload.StatusMessage
	}
	if msg == "" {
		msg = http.StatusText(code)
	}
	return &StatusError{Code: code, Message: msg}
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
