package repository

import (
	"context"

	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/model"
)

// ItemRepository stores the linked items of each user.
type ItemRepository interface {
	// Append links a new item to the user atomically and refreshes the legacy encoded field.
	Append(ctx context.Context, username string, item model.Item) error

	// List returns the user's items in insertion order.
	List(ctx context.Context, username string) ([]model.Item, error)

	// LegacyCandidates returns users with an encoded item field but no item rows.
	LegacyCandidates(ctx context.Context) ([]model.User, error)

	// ImportLegacy inserts decoded legacy items for a user, skipping ones already present.
	ImportLegacy(ctx context.Context, username string, items []model.Item) (int, error)
}
