package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/errs"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, username, pwd_hash, salt_auth)
VALUES ($1, $2, $3, $4)`
	_, err := r.db.Pool.Exec(ctx, q, u.ID, u.Username, u.PwdHash, u.SaltAuth)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return errs.ErrAlreadyExists
	default:
		return persistErr("create user", err)
	}
}

// GetByUsername selects a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	const q = `
SELECT id, username, COALESCE(pwd_hash, ''::bytea), COALESCE(salt_auth, ''::bytea),
       COALESCE(password, ''), COALESCE(session_token, ''), plaid_tokens, created_at
FROM users WHERE username=$1`
	var u model.User
	err := r.db.Pool.QueryRow(ctx, q, username).
		Scan(&u.ID, &u.Username, &u.PwdHash, &u.SaltAuth, &u.LegacyPassword, &u.SessionToken, &u.LegacyItems, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// SetSessionToken overwrites the stored session token, ending any previous session.
func (r *UserRepo) SetSessionToken(ctx context.Context, username, token string) error {
	const q = `UPDATE users SET session_token=$2 WHERE username=$1`
	tag, err := r.db.Pool.Exec(ctx, q, username, token)
	if err != nil {
		return persistErr("set session token", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}

// UpgradePassword replaces a plaintext password with its hash. Rows that already carry a hash are left alone.
func (r *UserRepo) UpgradePassword(ctx context.Context, username string, pwdHash, salt []byte) error {
	const q = `
UPDATE users SET pwd_hash=$2, salt_auth=$3, password=NULL
WHERE username=$1 AND pwd_hash IS NULL`
	tag, err := r.db.Pool.Exec(ctx, q, username, pwdHash, salt)
	if err != nil {
		return persistErr("upgrade password", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}
