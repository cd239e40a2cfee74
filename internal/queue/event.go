// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns them into the activity log.
package queue

import "time"

const (
	MovieViewedQueue      = "movie.viewed"
	AccountActivatedQueue = "account.activated"
)

// Queues lists every queue the consumer subscribes to.
var Queues = []string{MovieViewedQueue, AccountActivatedQueue}

// MovieViewedEvent is published after a movie detail view has been stored.
type MovieViewedEvent struct {
	MovieID  uint64  `json:"movie_id"`
	TMDBID   int64   `json:"tmdb_id"`
	Title    string  `json:"title"`
	UserID   *uint64 `json:"user_id,omitempty"`
	ViewedAt string  `json:"viewed_at"`
}

// AccountActivatedEvent is published once an account passes email
// verification.
type AccountActivatedEvent struct {
	UserID      uint64 `json:"user_id"`
	Username    string `json:"username"`
	ActivatedAt string `json:"activated_at"`
}

// Timestamp formats t the way every event carries it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
