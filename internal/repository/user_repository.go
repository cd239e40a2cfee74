package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/aura/internal/model"
)

const userColumns = "id,username,email,password_hash,first_name,last_name,role,is_active,created_at,updated_at"

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// CreateTx inserts the user inside tx and returns its ID.  The password
// must already be hashed.
func (r *UserRepo) CreateTx(ctx context.Context, tx *sql.Tx, u *model.User) (uint64, error) {
	return r.create(ctx, tx, u)
}

// Create inserts the user outside a transaction.
func (r *UserRepo) Create(ctx context.Context, u *model.User) (uint64, error) {
	return r.create(ctx, r.DB, u)
}

func (r *UserRepo) create(ctx context.Context, q execer, u *model.User) (uint64, error) {
	role := u.Role
	if role == "" {
		role = model.RoleUser
	}
	res, err := q.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, first_name, last_name, role, is_active) VALUES (?,?,?,?,?,?,?)",
		strings.TrimSpace(u.Username), NormalizeEmail(u.Email), u.PasswordHash,
		strings.TrimSpace(u.FirstName), strings.TrimSpace(u.LastName), role, u.IsActive)
	if err != nil {
		return 0, mapUserDuplicate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func mapUserDuplicate(err error) error {
	if !isDuplicateKey(err) {
		return err
	}
	if duplicateKeyName(err) == "uq_users_username" {
		return ErrUsernameExists
	}
	return ErrEmailExists
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email))
}

// GetByUsername fetches a user by exact username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", strings.TrimSpace(username))
}

// GetByLogin accepts either a username or an email address.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	if strings.Contains(login, "@") {
		return r.GetByEmail(ctx, login)
	}
	return r.GetByUsername(ctx, login)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ActivateTx flips is_active inside the verification transaction.
func (r *UserRepo) ActivateTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, "UPDATE users SET is_active=1 WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile changes the editable identity fields.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, username, email, firstName, lastName string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET username=?, email=?, first_name=?, last_name=? WHERE id=?",
		strings.TrimSpace(username), NormalizeEmail(email), strings.TrimSpace(firstName), strings.TrimSpace(lastName), id)
	return mapUserDuplicate(err)
}

// UpdatePassword stores a new bcrypt hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET password_hash=? WHERE id=?", hash, id)
	return err
}
