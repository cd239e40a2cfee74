package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/aura/internal/model"
)

// VerificationRepo stores email verification codes.  Every method runs
// inside a caller-owned transaction.
type VerificationRepo struct{ DB *sql.DB }

func NewVerificationRepo(db *sql.DB) *VerificationRepo { return &VerificationRepo{DB: db} }

// InsertTx stores a new unconsumed code issued at createdAt.
func (r *VerificationRepo) InsertTx(ctx context.Context, tx *sql.Tx, userID uint64, code string, createdAt time.Time) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO verification_codes (user_id, code, created_at, consumed) VALUES (?,?,?,0)",
		userID, code, createdAt.UTC())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// LatestUnconsumedForUpdateTx locks and returns the most recently issued
// unconsumed code.  Ties on created_at are broken by id.
func (r *VerificationRepo) LatestUnconsumedForUpdateTx(ctx context.Context, tx *sql.Tx, userID uint64) (*model.VerificationCode, error) {
	var vc model.VerificationCode
	err := tx.QueryRowContext(ctx,
		`SELECT id, user_id, code, created_at, consumed
		   FROM verification_codes
		  WHERE user_id = ? AND consumed = 0
		  ORDER BY created_at DESC, id DESC
		  LIMIT 1
		  FOR UPDATE`,
		userID).Scan(&vc.ID, &vc.UserID, &vc.Code, &vc.CreatedAt, &vc.Consumed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &vc, nil
}

// MarkConsumedTx consumes one code.  It reports false when the code was
// already consumed by a concurrent request.
func (r *VerificationRepo) MarkConsumedTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE verification_codes SET consumed = 1 WHERE id = ? AND consumed = 0", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// InvalidateAllTx consumes every outstanding code of a user and returns
// how many were invalidated.
func (r *VerificationRepo) InvalidateAllTx(ctx context.Context, tx *sql.Tx, userID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE verification_codes SET consumed = 1 WHERE user_id = ? AND consumed = 0", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
