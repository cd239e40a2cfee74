package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/aura/internal/model"
)

const movieColumns = `id, tmdb_id, title, overview, poster_path, backdrop_path, release_date,
	vote_average, vote_count, popularity, genres, runtime, tagline, status,
	youtube_trailer_key, is_hidden, created_at, updated_at`

// MovieFactory builds the record to persist on a cache miss.  It is only
// invoked when no row exists yet.
type MovieFactory func(ctx context.Context) (*model.Movie, error)

// MovieRepo is the database-backed cache of TMDB movies keyed by tmdb_id.
type MovieRepo struct {
	db *sql.DB
}

func NewMovieRepo(db *sql.DB) *MovieRepo { return &MovieRepo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovie(s rowScanner) (*model.Movie, error) {
	var (
		m           model.Movie
		releaseDate sql.NullTime
		runtime     sql.NullInt64
		trailerKey  sql.NullString
		genres      []byte
	)
	if err := s.Scan(&m.ID, &m.TMDBID, &m.Title, &m.Overview, &m.PosterPath, &m.BackdropPath,
		&releaseDate, &m.VoteAverage, &m.VoteCount, &m.Popularity, &genres, &runtime,
		&m.Tagline, &m.Status, &trailerKey, &m.IsHidden, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	if releaseDate.Valid {
		t := releaseDate.Time
		m.ReleaseDate = &t
	}
	if runtime.Valid {
		n := int(runtime.Int64)
		m.Runtime = &n
	}
	m.YouTubeTrailerKey = trailerKey.String
	m.Genres = []model.Genre{}
	if len(genres) > 0 {
		// a corrupt genre blob must not hide the rest of the row
		_ = json.Unmarshal(genres, &m.Genres)
	}
	return &m, nil
}

// GetByTMDBID returns the cached row for an external id or ErrNotFound.
func (r *MovieRepo) GetByTMDBID(ctx context.Context, tmdbID int64) (*model.Movie, error) {
	m, err := scanMovie(r.db.QueryRowContext(ctx,
		"SELECT "+movieColumns+" FROM movies WHERE tmdb_id = ? LIMIT 1", tmdbID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// GetByID returns the row with the given local id or ErrNotFound.
func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (*model.Movie, error) {
	m, err := scanMovie(r.db.QueryRowContext(ctx,
		"SELECT "+movieColumns+" FROM movies WHERE id = ? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// FindOrCreate returns the cached movie for tmdbID, inserting the record
// produced by factory on a miss.  When a concurrent request inserts the
// same tmdb_id first, the unique key rejects this insert and the winner's
// row is returned with created=false.
func (r *MovieRepo) FindOrCreate(ctx context.Context, tmdbID int64, factory MovieFactory) (*model.Movie, bool, error) {
	m, err := r.GetByTMDBID(ctx, tmdbID)
	if err == nil {
		return m, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	rec, err := factory(ctx)
	if err != nil {
		return nil, false, err
	}
	rec.TMDBID = tmdbID

	id, err := r.insert(ctx, rec)
	if isDuplicateKey(err) {
		m, err := r.GetByTMDBID(ctx, tmdbID)
		if err != nil {
			return nil, false, fmt.Errorf("reload movie %d after duplicate insert: %w", tmdbID, err)
		}
		return m, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	m, err = r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

func (r *MovieRepo) insert(ctx context.Context, m *model.Movie) (uint64, error) {
	genres := m.Genres
	if genres == nil {
		genres = []model.Genre{}
	}
	genreJSON, err := json.Marshal(genres)
	if err != nil {
		return 0, err
	}
	var runtime any
	if m.Runtime != nil {
		runtime = *m.Runtime
	}
	var releaseDate any
	if m.ReleaseDate != nil {
		releaseDate = m.ReleaseDate.Format("2006-01-02")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO movies (tmdb_id, title, overview, poster_path, backdrop_path, release_date,
			vote_average, vote_count, popularity, genres, runtime, tagline, status)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.TMDBID, m.Title, m.Overview, m.PosterPath, m.BackdropPath, releaseDate,
		m.VoteAverage, m.VoteCount, m.Popularity, genreJSON, runtime, m.Tagline, m.Status)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return uint64(id), nil
}

// SetTrailerOnce stores key only when the movie has no trailer yet.  It
// reports whether this call wrote the key.
func (r *MovieRepo) SetTrailerOnce(ctx context.Context, id uint64, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE movies SET youtube_trailer_key = ?
		  WHERE id = ? AND (youtube_trailer_key IS NULL OR youtube_trailer_key = '')`,
		key, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ToggleHidden flips the moderation flag and returns the updated row.
func (r *MovieRepo) ToggleHidden(ctx context.Context, id uint64) (*model.Movie, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	m, err := scanMovie(tx.QueryRowContext(ctx,
		"SELECT "+movieColumns+" FROM movies WHERE id = ? FOR UPDATE", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.IsHidden = !m.IsHidden
	if _, err := tx.ExecContext(ctx, "UPDATE movies SET is_hidden = ? WHERE id = ?", m.IsHidden, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return m, nil
}

// HiddenTMDBIDs returns the external ids of every hidden movie.
func (r *MovieRepo) HiddenTMDBIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT tmdb_id FROM movies WHERE is_hidden = 1")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListHidden pages through hidden movies, most recently changed first.
func (r *MovieRepo) ListHidden(ctx context.Context, limit, offset int) ([]model.Movie, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+movieColumns+" FROM movies WHERE is_hidden = 1 ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Movie{}
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// CountHidden returns the number of hidden movies.
func (r *MovieRepo) CountHidden(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM movies WHERE is_hidden = 1").Scan(&n)
	return n, err
}
