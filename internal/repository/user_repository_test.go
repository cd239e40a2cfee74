package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/aura/internal/model"
)

func TestUserRepo_CreateTxNormalizes(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("neo", "neo@matrix.io", "hash", "Thomas", "Anderson", model.RoleUser, false).
		WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	id, err := repo.CreateTx(context.Background(), tx, &model.User{
		Username: " neo ", Email: " Neo@Matrix.IO ", PasswordHash: "hash",
		FirstName: "Thomas", LastName: "Anderson",
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Equal(t, uint64(12), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_CreateDuplicates(t *testing.T) {
	tests := []struct {
		key  string
		want error
	}{
		{"users.uq_users_username", ErrUsernameExists},
		{"users.uq_users_email", ErrEmailExists},
		{"uq_users_email", ErrEmailExists},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewUserRepo(db)
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).WillReturnError(duplicateErr(tt.key))

			_, err := repo.Create(context.Background(), &model.User{Username: "a", Email: "a@b.c"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUserRepo_GetByLogin(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)
	now := time.Now().UTC()
	cols := []string{"id", "username", "email", "password_hash", "first_name", "last_name", "role", "is_active", "created_at", "updated_at"}

	mock.ExpectQuery(`FROM users WHERE email=\?`).WithArgs("neo@matrix.io").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, "neo", "neo@matrix.io", "h", "", "", "USER", true, now, now))
	mock.ExpectQuery(`FROM users WHERE username=\?`).WithArgs("trinity").
		WillReturnRows(sqlmock.NewRows(cols))

	u, err := repo.GetByLogin(context.Background(), "NEO@matrix.io")
	require.NoError(t, err)
	assert.Equal(t, "neo", u.Username)
	assert.True(t, u.IsActive)

	_, err = repo.GetByLogin(context.Background(), "trinity")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_ActivateTxMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET is_active=1 WHERE id=?")).
		WithArgs(uint64(5)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	err = repo.ActivateTx(context.Background(), tx, 5)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, tx.Rollback())
}

func TestTokenRepo_Rotate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepo(db)
	exp := time.Now().UTC().Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=\? LIMIT 1 FOR UPDATE`).
		WithArgs("old").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).AddRow(uint64(7), exp, nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE token_hash=?")).
		WithArgs("old").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WithArgs(uint64(7), "new", exp).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	uid, err := repo.Rotate(context.Background(), "old", "new", exp)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), uid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_ValidateRejectsRevokedAndExpired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepo(db)
	cols := []string{"user_id", "expires_at", "revoked_at"}
	q := `SELECT user_id, expires_at, revoked_at FROM refresh_tokens`

	mock.ExpectQuery(q).WillReturnRows(sqlmock.NewRows(cols).AddRow(uint64(1), time.Now().Add(time.Hour), time.Now()))
	mock.ExpectQuery(q).WillReturnRows(sqlmock.NewRows(cols).AddRow(uint64(1), time.Now().Add(-time.Hour), nil))
	mock.ExpectQuery(q).WillReturnRows(sqlmock.NewRows(cols))

	for i := 0; i < 3; i++ {
		_, err := repo.ValidateRefresh(context.Background(), "h")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
