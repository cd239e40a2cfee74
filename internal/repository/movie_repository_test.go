package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/aura/internal/model"
)

const selectByTMDB = `SELECT .* FROM movies WHERE tmdb_id = \? LIMIT 1`

func TestMovieRepo_FindOrCreate(t *testing.T) {
	t.Run("returns cached row without calling factory", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMovieRepo(db)

		mock.ExpectQuery(selectByTMDB).WithArgs(int64(603)).
			WillReturnRows(movieRows(movieRow(1, 603, "The Matrix", nil, false)))

		m, created, err := repo.FindOrCreate(context.Background(), 603, func(context.Context) (*model.Movie, error) {
			t.Fatal("factory must not run on a hit")
			return nil, nil
		})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "The Matrix", m.Title)
		require.NotNil(t, m.Runtime)
		assert.Equal(t, 136, *m.Runtime)
		assert.Equal(t, []model.Genre{{ID: 28, Name: "Action"}}, m.Genres)
		assert.Equal(t, "", m.YouTubeTrailerKey)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inserts on miss", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMovieRepo(db)

		mock.ExpectQuery(selectByTMDB).WithArgs(int64(603)).WillReturnRows(movieRows())
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO movies")).
			WithArgs(int64(603), "The Matrix", "", "", "", nil, 0.0, int64(0), 0.0, []byte("[]"), nil, "", "").
			WillReturnResult(sqlmock.NewResult(9, 1))
		mock.ExpectCommit()
		mock.ExpectQuery(`SELECT .* FROM movies WHERE id = \? LIMIT 1`).WithArgs(uint64(9)).
			WillReturnRows(movieRows(movieRow(9, 603, "The Matrix", nil, false)))

		m, created, err := repo.FindOrCreate(context.Background(), 603, func(context.Context) (*model.Movie, error) {
			return &model.Movie{Title: "The Matrix"}, nil
		})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, uint64(9), m.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrent insert reuses the winner's row", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMovieRepo(db)

		mock.ExpectQuery(selectByTMDB).WithArgs(int64(603)).WillReturnRows(movieRows())
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO movies")).
			WillReturnError(duplicateErr("movies.uq_movies_tmdb_id"))
		mock.ExpectRollback()
		mock.ExpectQuery(selectByTMDB).WithArgs(int64(603)).
			WillReturnRows(movieRows(movieRow(4, 603, "The Matrix", "abc", false)))

		m, created, err := repo.FindOrCreate(context.Background(), 603, func(context.Context) (*model.Movie, error) {
			return &model.Movie{Title: "The Matrix"}, nil
		})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, uint64(4), m.ID)
		assert.Equal(t, "abc", m.YouTubeTrailerKey)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("factory error is returned", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMovieRepo(db)
		boom := errors.New("upstream down")

		mock.ExpectQuery(selectByTMDB).WillReturnRows(movieRows())

		_, _, err := repo.FindOrCreate(context.Background(), 1, func(context.Context) (*model.Movie, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMovieRepo_SetTrailerOnce(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMovieRepo(db)
	update := regexp.QuoteMeta("UPDATE movies SET youtube_trailer_key = ?")

	mock.ExpectExec(update).WithArgs("first", uint64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(update).WithArgs("second", uint64(1)).WillReturnResult(sqlmock.NewResult(0, 0))

	wrote, err := repo.SetTrailerOnce(context.Background(), 1, "first")
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = repo.SetTrailerOnce(context.Background(), 1, "second")
	require.NoError(t, err)
	assert.False(t, wrote)

	wrote, err = repo.SetTrailerOnce(context.Background(), 1, "")
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMovieRepo_ToggleHidden(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMovieRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM movies WHERE id = \? FOR UPDATE`).WithArgs(uint64(3)).
		WillReturnRows(movieRows(movieRow(3, 77, "Hidden", nil, false)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE movies SET is_hidden = ? WHERE id = ?")).
		WithArgs(true, uint64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	m, err := repo.ToggleHidden(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, m.IsHidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMovieRepo_ToggleHiddenMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMovieRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM movies WHERE id = \? FOR UPDATE`).WillReturnRows(movieRows())
	mock.ExpectRollback()

	_, err := repo.ToggleHidden(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMovieRepo_HiddenQueries(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMovieRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT tmdb_id FROM movies WHERE is_hidden = 1")).
		WillReturnRows(sqlmock.NewRows([]string{"tmdb_id"}).AddRow(int64(5)).AddRow(int64(9)))
	mock.ExpectQuery(`SELECT .* FROM movies WHERE is_hidden = 1 ORDER BY updated_at DESC`).WithArgs(24, 24).
		WillReturnRows(movieRows(movieRow(2, 5, "A", nil, true)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM movies WHERE is_hidden = 1")).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(2)))

	ids, err := repo.HiddenTMDBIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 9}, ids)

	list, err := repo.ListHidden(context.Background(), 24, 24)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsHidden)

	n, err := repo.CountHidden(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
