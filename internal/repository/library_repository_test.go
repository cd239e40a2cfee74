package repository

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchlistRepo_AddIsIdempotent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWatchlistRepo(db)
	insert := regexp.QuoteMeta("INSERT INTO watchlist (user_id, movie_id) VALUES (?,?)")

	mock.ExpectExec(insert).WithArgs(uint64(1), uint64(2)).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insert).WithArgs(uint64(1), uint64(2)).WillReturnError(duplicateErr("watchlist.uq_watchlist_user_movie"))

	added, err := repo.Add(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.Add(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.False(t, added)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWatchlistRepo_ListByUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWatchlistRepo(db)
	added := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	cols := append([]string{"id", "added_at"}, movieColumnNames...)
	row := append([]driver.Value{uint64(50), added}, movieRow(9, 603, "The Matrix", nil, false)...)
	mock.ExpectQuery(`FROM watchlist w\s+JOIN movies m`).WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(row...))

	list, err := repo.ListByUser(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, uint64(50), list[0].ID)
	assert.Equal(t, uint64(9), list[0].MovieID)
	assert.Equal(t, added, list[0].AddedAt)
	assert.Equal(t, "The Matrix", list[0].Movie.Title)
}

func TestWatchlistRepo_RemoveAndExists(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWatchlistRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM watchlist")).WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM watchlist")).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Exists(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := repo.Remove(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRatingRepo_UpsertAndSummary(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRatingRepo(db)

	mock.ExpectExec(`INSERT INTO ratings .* ON DUPLICATE KEY UPDATE`).
		WithArgs(uint64(1), uint64(2), 9, "great").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), AVG(score) FROM ratings WHERE movie_id=?")).
		WithArgs(uint64(2)).WillReturnRows(sqlmock.NewRows([]string{"count", "avg"}).AddRow(int64(2), 8.5))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), AVG(score) FROM ratings WHERE movie_id=?")).
		WithArgs(uint64(3)).WillReturnRows(sqlmock.NewRows([]string{"count", "avg"}).AddRow(int64(0), nil))

	require.NoError(t, repo.Upsert(context.Background(), 1, 2, 9, "great"))

	s, err := repo.Summary(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.Count)
	assert.InDelta(t, 8.5, s.Average, 0.0001)

	s, err = repo.Summary(context.Background(), 3)
	require.NoError(t, err)
	assert.Zero(t, s.Count)
	assert.Zero(t, s.Average)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingRepo_GetMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRatingRepo(db)

	mock.ExpectQuery(`FROM ratings WHERE user_id=\? AND movie_id=\?`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "score", "review", "created_at", "updated_at"}))

	_, err := repo.Get(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}
