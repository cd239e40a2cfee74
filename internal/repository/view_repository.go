package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/aura/internal/model"
)

// ViewRepo appends movie views and runs the analytics aggregations.  The
// aggregation queries scan into tagged structs through sqlx.
type ViewRepo struct {
	db *sqlx.DB
}

// NewViewRepo wraps an existing connection pool.
func NewViewRepo(db *sql.DB) *ViewRepo {
	return &ViewRepo{db: sqlx.NewDb(db, "mysql")}
}

// Insert appends one view row.
func (r *ViewRepo) Insert(ctx context.Context, v model.MovieView) (uint64, error) {
	var userID any
	if v.UserID != nil {
		userID = *v.UserID
	}
	var ip any
	if v.IPAddress != "" {
		ip = v.IPAddress
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO movie_views (movie_id, user_id, ip_address, viewed_at) VALUES (?,?,?,?)",
		v.MovieID, userID, ip, v.ViewedAt.UTC())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

type dayCount struct {
	Day   time.Time `db:"day"`
	Views int64     `db:"views"`
}

// CountsByDay returns view counts keyed by UTC date (YYYY-MM-DD) for views
// in [from, to).  Days without views are absent.
func (r *ViewRepo) CountsByDay(ctx context.Context, from, to time.Time) (map[string]int64, error) {
	var rows []dayCount
	err := r.db.SelectContext(ctx, &rows,
		`SELECT DATE(viewed_at) AS day, COUNT(*) AS views
		   FROM movie_views
		  WHERE viewed_at >= ? AND viewed_at < ?
		  GROUP BY DATE(viewed_at)
		  ORDER BY day`,
		from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Day.Format("2006-01-02")] = row.Views
	}
	return out, nil
}

// TopMovies returns the n most viewed movies of all time.
func (r *ViewRepo) TopMovies(ctx context.Context, n int) ([]model.MovieViewCount, error) {
	out := []model.MovieViewCount{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT m.id AS movie_id, m.tmdb_id, m.title, m.poster_path, COUNT(v.id) AS views
		   FROM movies m
		   JOIN movie_views v ON v.movie_id = m.id
		  GROUP BY m.id, m.tmdb_id, m.title, m.poster_path
		  ORDER BY views DESC, m.id
		  LIMIT ?`, n)
	return out, err
}

// TopVisibleSince returns the n most viewed non-hidden movies since t.
func (r *ViewRepo) TopVisibleSince(ctx context.Context, since time.Time, n int) ([]model.MovieViewCount, error) {
	out := []model.MovieViewCount{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT m.id AS movie_id, m.tmdb_id, m.title, m.poster_path, COUNT(v.id) AS views
		   FROM movies m
		   JOIN movie_views v ON v.movie_id = m.id
		  WHERE v.viewed_at >= ? AND m.is_hidden = 0
		  GROUP BY m.id, m.tmdb_id, m.title, m.poster_path
		  ORDER BY views DESC, m.id
		  LIMIT ?`, since.UTC(), n)
	return out, err
}

// LiveSince lists each movie viewed since t once, with its count and most
// recent view, most recent first.
func (r *ViewRepo) LiveSince(ctx context.Context, since time.Time, limit int) ([]model.LiveActivity, error) {
	out := []model.LiveActivity{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT m.id AS movie_id, m.tmdb_id, m.title, m.poster_path,
		        COUNT(v.id) AS views_count, MAX(v.viewed_at) AS last_viewed
		   FROM movie_views v
		   JOIN movies m ON m.id = v.movie_id
		  WHERE v.viewed_at >= ?
		  GROUP BY m.id, m.tmdb_id, m.title, m.poster_path
		  ORDER BY last_viewed DESC
		  LIMIT ?`, since.UTC(), limit)
	return out, err
}

// CountAll returns the total number of recorded views.
func (r *ViewRepo) CountAll(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM movie_views")
	return n, err
}

// CountSince returns the number of views at or after t.
func (r *ViewRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM movie_views WHERE viewed_at >= ?", since.UTC())
	return n, err
}
