package service

import (
	"context"

	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/model"
)

// Provider is the financial-data API the registry and aggregator call out to.
// It is implemented by *plaid.Client.
type Provider interface {
	// CreateLinkToken creates a link token bound to userRef.
	CreateLinkToken(ctx context.Context, userRef string) (model.LinkToken, error)
	// ExchangePublicToken trades a public token for an item credential.
	ExchangePublicToken(ctx context.Context, publicToken string) (model.Item, error)
	// RemoveItem invalidates an item credential.
	RemoveItem(ctx context.Context, accessToken string) error
	// GetBalances returns the provider's item id and the item's accounts.
	GetBalances(ctx context.Context, accessToken string) (string, []model.Account, error)
	// GetTransactions returns one page of transactions for the item.
	GetTransactions(ctx context.Context, accessToken string, q model.TransactionQuery) ([]model.Transaction, error)
}
