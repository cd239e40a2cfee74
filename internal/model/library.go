package model

import "time"

// Rating score bounds enforced by validation and a CHECK constraint.
const (
	MinScore = 1
	MaxScore = 10
)

// WatchlistEntry is a row in `watchlist`; (UserID, MovieID) is unique.
type WatchlistEntry struct {
	ID      uint64
	UserID  uint64
	MovieID uint64
	AddedAt time.Time
	Movie   Movie // joined movie row when listing
}

// Rating is a row in `ratings`; (UserID, MovieID) is unique.
type Rating struct {
	ID        uint64
	UserID    uint64
	MovieID   uint64
	Score     int
	Review    string
	CreatedAt time.Time
	UpdatedAt time.Time
	Movie     Movie // joined movie row when listing
}

// RatingSummary aggregates all scores for one movie.
type RatingSummary struct {
	MovieID uint64  `json:"movie_id"`
	Count   int64   `json:"count"`
	Average float64 `json:"average"`
}
