package model

import "time"

// MovieView is one append-only row in `movie_views`.
type MovieView struct {
	ID        uint64
	MovieID   uint64
	UserID    *uint64 // nil for anonymous viewers
	IPAddress string
	ViewedAt  time.Time
}

// DailyCount is one point of the trailing seven day series.
type DailyCount struct {
	Date  string `json:"date"`  // YYYY-MM-DD, UTC
	Label string `json:"label"` // "Jan 02"
	Count int64  `json:"count"`
}

// MovieViewCount pairs a movie with its all-time or today view count.
type MovieViewCount struct {
	MovieID uint64 `db:"movie_id" json:"movie_id"`
	TMDBID  int64  `db:"tmdb_id" json:"tmdb_id"`
	Title   string `db:"title" json:"title"`
	Poster  string `db:"poster_path" json:"-"`
	Views   int64  `db:"views" json:"views"`
}

// LiveActivity is one entry of the "viewed today" feed.
type LiveActivity struct {
	MovieID    uint64    `db:"movie_id" json:"movie_id"`
	TMDBID     int64     `db:"tmdb_id" json:"tmdb_id"`
	Title      string    `db:"title" json:"title"`
	Poster     string    `db:"poster_path" json:"-"`
	ViewsCount int64     `db:"views_count" json:"views_count"`
	LastViewed time.Time `db:"last_viewed" json:"last_viewed"`
}
