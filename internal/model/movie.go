package model

import "time"

// TMDB image CDN roots used to build absolute artwork URLs.
const (
	posterBaseURL   = "https://image.tmdb.org/t/p/w500"
	backdropBaseURL = "https://image.tmdb.org/t/p/original"
)

// Genre is a TMDB genre entry, stored inside movies.genres as JSON.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Movie is a locally cached catalog record from the `movies` table.  The
// row is created the first time a title is opened (or added to a
// watchlist) and reused afterwards; only IsHidden and the first trailer
// key are ever updated.
//
// Fields:
//  ID                – local primary key.
//  TMDBID            – external catalog identifier (unique).
//  ReleaseDate       – nil when TMDB sent no parseable date.
//  Runtime           – nil when unknown.
//  YouTubeTrailerKey – empty until the first embeddable trailer is found.
//  IsHidden          – supervisor moderation flag.
type Movie struct {
	ID                uint64
	TMDBID            int64
	Title             string
	Overview          string
	PosterPath        string
	BackdropPath      string
	ReleaseDate       *time.Time
	VoteAverage       float64
	VoteCount         int64
	Popularity        float64
	Genres            []Genre
	Runtime           *int
	Tagline           string
	Status            string
	YouTubeTrailerKey string
	IsHidden          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PosterURL returns the w500 poster URL or "" when no poster is known.
func (m Movie) PosterURL() string { return PosterURL(m.PosterPath) }

// BackdropURL returns the full-size backdrop URL or "".
func (m Movie) BackdropURL() string { return BackdropURL(m.BackdropPath) }

// PosterURL builds a poster URL from a TMDB image path.
func PosterURL(path string) string {
	if path == "" {
		return ""
	}
	return posterBaseURL + path
}

// BackdropURL builds a backdrop URL from a TMDB image path.
func BackdropURL(path string) string {
	if path == "" {
		return ""
	}
	return backdropBaseURL + path
}
