package models

// MovieSummary is a single catalog search hit.
type MovieSummary struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	PosterPath  *string `json:"poster_path"`
	ReleaseDate *string `json:"release_date"`
	Rating      float64 `json:"rating"`
}

// PosterURL returns the w500 image URL, or "" when the movie has no poster.
func (m MovieSummary) PosterURL() string {
	if m.PosterPath == nil || *m.PosterPath == "" {
		return ""
	}
	return TMDBImageBaseW500 + *m.PosterPath
}

// ResultPage is one page of catalog search results.
type ResultPage struct {
	Page         int            `json:"page"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
	Results      []MovieSummary `json:"results"`
}

const (
	TMDBImageBaseW500 = "https://image.tmdb.org/t/p/w500"

	MinRating = 0.0
	MaxRating = 10.0
)

// ClampRating keeps a catalog vote average inside [MinRating, MaxRating].
func ClampRating(r float64) float64 {
	if r < MinRating {
		return MinRating
	}
	if r > MaxRating {
		return MaxRating
	}
	return r
}
