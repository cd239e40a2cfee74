package model

import "time"

// Roles stored in users.role and carried in the access token's "role"
// claim.
const (
	RoleUser       = "USER"
	RoleSupervisor = "SUPERVISOR"
)

// User represents an application user record as stored in the
// `users` table.  Accounts are created inactive and only flip
// IsActive once an email verification code has been matched.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique login name.
//  Email        – unique, lower-cased email address.
//  PasswordHash – bcrypt hashed password.
//  FirstName    – optional given name.
//  LastName     – optional family name.
//  Role         – USER or SUPERVISOR.
//  IsActive     – whether the account completed verification.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	FirstName    string    // users.first_name
	LastName     string    // users.last_name
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// IsSupervisor reports whether the user holds the staff role.
func (u User) IsSupervisor() bool { return u.Role == RoleSupervisor }

// Profile is the 1:1 extension row in `user_profiles`.  It is inserted
// in the same transaction that creates the user.
type Profile struct {
	UserID    uint64    // user_profiles.user_id
	AvatarKey string    // user_profiles.avatar_key (empty when unset)
	UpdatedAt time.Time // user_profiles.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its
// SHA‑256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
