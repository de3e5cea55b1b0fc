// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/model"
)

// UserRepository provides access to user records and their session token.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, u *model.User) error
	// GetByUsername loads a user by username.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// SetSessionToken replaces the user's session token.
	SetSessionToken(ctx context.Context, username, token string) error
	// UpgradePassword stores a hash for a user that only has a plaintext password and clears it.
	UpgradePassword(ctx context.Context, username string, pwdHash, salt []byte) error
}
