package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/aura/internal/model"
)

// ProfileRepo manages the user_profiles extension rows.
type ProfileRepo struct{ DB *sql.DB }

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{DB: db} }

// CreateTx inserts the empty profile row for a freshly created user.
func (r *ProfileRepo) CreateTx(ctx context.Context, tx *sql.Tx, userID uint64) error {
	_, err := tx.ExecContext(ctx, "INSERT INTO user_profiles (user_id) VALUES (?)", userID)
	return err
}

// Get returns the profile of a user.  A missing row yields an empty
// profile.
func (r *ProfileRepo) Get(ctx context.Context, userID uint64) (*model.Profile, error) {
	p := model.Profile{UserID: userID}
	var key sql.NullString
	err := r.DB.QueryRowContext(ctx,
		"SELECT avatar_key, updated_at FROM user_profiles WHERE user_id=? LIMIT 1", userID).
		Scan(&key, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &p, nil
	}
	if err != nil {
		return nil, err
	}
	p.AvatarKey = key.String
	return &p, nil
}

// SetAvatar stores a new avatar object key, creating the profile row if an
// older account lacks one.
func (r *ProfileRepo) SetAvatar(ctx context.Context, userID uint64, key string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO user_profiles (user_id, avatar_key) VALUES (?,?) ON DUPLICATE KEY UPDATE avatar_key=VALUES(avatar_key)",
		userID, key)
	return err
}
