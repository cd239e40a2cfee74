package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/aura/internal/model"
)

// RatingRepo stores one score and review per user and movie.
type RatingRepo struct{ DB *sql.DB }

func NewRatingRepo(db *sql.DB) *RatingRepo { return &RatingRepo{DB: db} }

// Upsert creates the user's rating or replaces score and review.
func (r *RatingRepo) Upsert(ctx context.Context, userID, movieID uint64, score int, review string) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO ratings (user_id, movie_id, score, review) VALUES (?,?,?,?)
		 ON DUPLICATE KEY UPDATE score = VALUES(score), review = VALUES(review)`,
		userID, movieID, score, review)
	return err
}

// Delete removes the user's rating and reports whether one existed.
func (r *RatingRepo) Delete(ctx context.Context, userID, movieID uint64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM ratings WHERE user_id=? AND movie_id=?", userID, movieID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Get returns the user's rating for a movie or ErrNotFound.
func (r *RatingRepo) Get(ctx context.Context, userID, movieID uint64) (*model.Rating, error) {
	rt := model.Rating{UserID: userID, MovieID: movieID}
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, score, review, created_at, updated_at FROM ratings WHERE user_id=? AND movie_id=? LIMIT 1",
		userID, movieID).Scan(&rt.ID, &rt.Score, &rt.Review, &rt.CreatedAt, &rt.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// ListByUser returns the user's ratings, most recently updated first.
func (r *RatingRepo) ListByUser(ctx context.Context, userID uint64, limit, offset int) ([]model.Rating, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT r.id, r.score, r.review, r.created_at, r.updated_at, `+joinedMovieColumns+`
		   FROM ratings r
		   JOIN movies m ON m.id = r.movie_id
		  WHERE r.user_id = ?
		  ORDER BY r.updated_at DESC, r.id DESC
		  LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Rating{}
	for rows.Next() {
		var (
			rt                 model.Rating
			createdAt, updated time.Time
		)
		m, err := scanMovie(prefixScanner{rows: rows, prefix: []any{&rt.ID, &rt.Score, &rt.Review, &createdAt, &updated}})
		if err != nil {
			return nil, err
		}
		rt.UserID = userID
		rt.MovieID = m.ID
		rt.CreatedAt = createdAt
		rt.UpdatedAt = updated
		rt.Movie = *m
		out = append(out, rt)
	}
	return out, rows.Err()
}

// CountByUser returns how many movies the user rated.
func (r *RatingRepo) CountByUser(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM ratings WHERE user_id=?", userID).Scan(&n)
	return n, err
}

// Summary aggregates all ratings of a movie.
func (r *RatingRepo) Summary(ctx context.Context, movieID uint64) (*model.RatingSummary, error) {
	s := model.RatingSummary{MovieID: movieID}
	var avg sql.NullFloat64
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*), AVG(score) FROM ratings WHERE movie_id=?", movieID).Scan(&s.Count, &avg)
	if err != nil {
		return nil, err
	}
	s.Average = avg.Float64
	return &s, nil
}
