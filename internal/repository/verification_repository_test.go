package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationRepo_LatestUnconsumedOrdersByTimestampThenID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVerificationRepo(db)
	issued := time.Date(2026, 5, 1, 12, 0, 0, 123000, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`ORDER BY created_at DESC, id DESC\s+LIMIT 1\s+FOR UPDATE`).WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "code", "created_at", "consumed"}).
			AddRow(uint64(10), uint64(3), "048213", issued, false))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	vc, err := repo.LatestUnconsumedForUpdateTx(context.Background(), tx, 3)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, "048213", vc.Code)
	assert.Equal(t, issued, vc.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationRepo_LatestUnconsumedNone(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVerificationRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM verification_codes`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "code", "created_at", "consumed"}))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	_, err = repo.LatestUnconsumedForUpdateTx(context.Background(), tx, 3)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, tx.Rollback())
}

func TestVerificationRepo_ConsumeAndInvalidate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVerificationRepo(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE verification_codes SET consumed = 1 WHERE user_id = ? AND consumed = 0")).
		WithArgs(uint64(3)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO verification_codes")).
		WithArgs(uint64(3), "000123", now).WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE verification_codes SET consumed = 1 WHERE id = ? AND consumed = 0")).
		WithArgs(uint64(11)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE verification_codes SET consumed = 1 WHERE id = ? AND consumed = 0")).
		WithArgs(uint64(11)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := db.Begin()
	require.NoError(t, err)

	n, err := repo.InvalidateAllTx(ctx, tx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	id, err := repo.InsertTx(ctx, tx, 3, "000123", now)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), id)

	ok, err := repo.MarkConsumedTx(ctx, tx, 11)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkConsumedTx(ctx, tx, 11)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
