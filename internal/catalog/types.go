package catalog

import (
	"time"

	"github.com/iliyamo/aura/internal/model"
)

// MaxPages is the deepest page TMDB serves for list and search endpoints.
const MaxPages = 500

// Browse categories.
const (
	CategoryPopular    = "popular"
	CategoryTrending   = "trending"
	CategoryTopRated   = "top_rated"
	CategoryNowPlaying = "now_playing"
	CategoryUpcoming   = "upcoming"
)

var categoryPaths = map[string]string{
	CategoryPopular:    "/movie/popular",
	CategoryTrending:   "/trending/movie/week",
	CategoryTopRated:   "/movie/top_rated",
	CategoryNowPlaying: "/movie/now_playing",
	CategoryUpcoming:   "/movie/upcoming",
}

// NormalizeCategory maps unknown or empty categories to popular.
func NormalizeCategory(category string) string {
	if _, ok := categoryPaths[category]; ok {
		return category
	}
	return CategoryPopular
}

// Item is one normalized entry of a list, search or discover response.
type Item struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	PosterURL    string  `json:"poster_url"`
	ReleaseDate  string  `json:"release_date"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int64   `json:"vote_count"`
	Popularity   float64 `json:"popularity"`
	GenreIDs     []int64 `json:"genre_ids"`
}

// Page is a normalized paginated response.  TotalPages is already clamped
// to MaxPages.
type Page struct {
	Page         int    `json:"page"`
	Results      []Item `json:"results"`
	TotalPages   int    `json:"total_pages"`
	TotalResults int64  `json:"total_results"`
}

// Video is an entry of the appended "videos" sub-resource.
type Video struct {
	Key  string `json:"key"`
	Site string `json:"site"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// CastMember is an entry of credits.cast.
type CastMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character"`
	ProfilePath string `json:"profile_path"`
}

// Detail is the normalized movie detail payload including the appended
// sub-resources.
type Detail struct {
	ID              int64
	Title           string
	Overview        string
	PosterPath      string
	BackdropPath    string
	ReleaseDate     *time.Time
	VoteAverage     float64
	VoteCount       int64
	Popularity      float64
	Genres          []model.Genre
	Runtime         *int
	Tagline         string
	Status          string
	Videos          []Video
	Cast            []CastMember
	Similar         []Item
	Recommendations []Item
}

// Movie converts the detail into the record persisted by the movie cache.
func (d *Detail) Movie() *model.Movie {
	genres := d.Genres
	if genres == nil {
		genres = []model.Genre{}
	}
	return &model.Movie{
		TMDBID:       d.ID,
		Title:        d.Title,
		Overview:     d.Overview,
		PosterPath:   d.PosterPath,
		BackdropPath: d.BackdropPath,
		ReleaseDate:  d.ReleaseDate,
		VoteAverage:  d.VoteAverage,
		VoteCount:    d.VoteCount,
		Popularity:   d.Popularity,
		Genres:       genres,
		Runtime:      d.Runtime,
		Tagline:      d.Tagline,
		Status:       d.Status,
	}
}
