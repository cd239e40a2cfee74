package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/aura/internal/model"
)

// joinedMovieColumns is movieColumns qualified for queries joining movies
// as "m".
const joinedMovieColumns = `m.id, m.tmdb_id, m.title, m.overview, m.poster_path, m.backdrop_path, m.release_date,
	m.vote_average, m.vote_count, m.popularity, m.genres, m.runtime, m.tagline, m.status,
	m.youtube_trailer_key, m.is_hidden, m.created_at, m.updated_at`

// WatchlistRepo stores the per-user saved movies.
type WatchlistRepo struct{ DB *sql.DB }

func NewWatchlistRepo(db *sql.DB) *WatchlistRepo { return &WatchlistRepo{DB: db} }

// Add saves a movie.  It reports false when the entry already existed.
func (r *WatchlistRepo) Add(ctx context.Context, userID, movieID uint64) (bool, error) {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO watchlist (user_id, movie_id) VALUES (?,?)", userID, movieID)
	if isDuplicateKey(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes an entry and reports whether one existed.
func (r *WatchlistRepo) Remove(ctx context.Context, userID, movieID uint64) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM watchlist WHERE user_id=? AND movie_id=?", userID, movieID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Exists reports whether the movie is on the user's watchlist.
func (r *WatchlistRepo) Exists(ctx context.Context, userID, movieID uint64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM watchlist WHERE user_id=? AND movie_id=? LIMIT 1", userID, movieID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// ListByUser returns the user's entries newest first with their movies.
func (r *WatchlistRepo) ListByUser(ctx context.Context, userID uint64) ([]model.WatchlistEntry, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT w.id, w.added_at, `+joinedMovieColumns+`
		   FROM watchlist w
		   JOIN movies m ON m.id = w.movie_id
		  WHERE w.user_id = ?
		  ORDER BY w.added_at DESC, w.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.WatchlistEntry{}
	for rows.Next() {
		var (
			id      uint64
			addedAt time.Time
		)
		m, err := scanMovie(prefixScanner{rows: rows, prefix: []any{&id, &addedAt}})
		if err != nil {
			return nil, err
		}
		out = append(out, model.WatchlistEntry{
			ID: id, UserID: userID, MovieID: m.ID, AddedAt: addedAt, Movie: *m,
		})
	}
	return out, rows.Err()
}

// CountByUser returns the size of the user's watchlist.
func (r *WatchlistRepo) CountByUser(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM watchlist WHERE user_id=?", userID).Scan(&n)
	return n, err
}

// prefixScanner scans leading non-movie columns before handing the rest of
// the row to scanMovie.
type prefixScanner struct {
	rows   *sql.Rows
	prefix []any
}

func (p prefixScanner) Scan(dest ...any) error {
	return p.rows.Scan(append(append([]any{}, p.prefix...), dest...)...)
}
