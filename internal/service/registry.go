package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/errs"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/itemcodec"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/model"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/repository"
)

// ItemLister supplies a user's linked items.
type ItemLister interface {
	ListItems(ctx context.Context, username string) ([]model.Item, error)
}

// RegistryService links provider items to users and lists them.
type RegistryService interface {
	ItemLister
	// CreateLinkToken starts a provider link flow for the user.
	CreateLinkToken(ctx context.Context, username string) (model.LinkToken, error)
	// LinkItem exchanges a public token and stores the resulting item.
	LinkItem(ctx context.Context, username, publicToken string) (model.Item, error)
	// AppendItem stores an already exchanged item.
	AppendItem(ctx context.Context, username string, item model.Item) error
	// ImportLegacy moves encoded legacy item fields into item rows.
	ImportLegacy(ctx context.Context) (ImportReport, error)
}

// ImportReport summarizes one legacy import run.
type ImportReport struct {
	Users     int // users whose field was imported
	Items     int // item rows inserted
	Malformed int // users skipped because their field could not be decoded
	Failed    int // users whose import failed in storage, retried on the next run
}

type RegistryServiceImpl struct {
	items    repository.ItemRepository
	provider Provider
	log      *zap.Logger
}

// NewRegistryService constructs RegistryService.
func NewRegistryService(items repository.ItemRepository, provider Provider, log *zap.Logger) *RegistryServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &RegistryServiceImpl{items: items, provider: provider, log: log}
}

// CreateLinkToken asks the provider for a link token bound to the username.
func (s *RegistryServiceImpl) CreateLinkToken(ctx context.Context, username string) (model.LinkToken, error) {
	if username == "" {
		return model.LinkToken{}, fmt.Errorf("%w: empty username", errs.ErrValidation)
	}
	lt, err := s.provider.CreateLinkToken(ctx, username)
	if err != nil {
		return model.LinkToken{}, fmt.Errorf("create link token: %w", err)
	}
	return lt, nil
}

// LinkItem exchanges publicToken with the provider, then appends the item.
func (s *RegistryServiceImpl) LinkItem(ctx context.Context, username, publicToken string) (model.Item, error) {
	if username == "" || publicToken == "" {
		return model.Item{}, fmt.Errorf("%w: empty username/public_token", errs.ErrValidation)
	}
	it, err := s.provider.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return model.Item{}, fmt.Errorf("exchange public token: %w", err)
	}
	if err := s.AppendItem(ctx, username, it); err != nil {
		// A duplicate item_id is the item already stored; removing it would revoke the stored credential.
		if !errors.Is(err, errs.ErrAlreadyExists) {
			s.removeOrphan(ctx, username, it)
		}
		return model.Item{}, err
	}
	s.log.Info("item linked", zap.String("username", username), zap.String("item_id", it.ItemID))
	return it, nil
}

// removeOrphan revokes a credential that was exchanged but could not be stored.
func (s *RegistryServiceImpl) removeOrphan(ctx context.Context, username string, it model.Item) {
	if err := s.provider.RemoveItem(context.WithoutCancel(ctx), it.AccessToken); err != nil {
		s.log.Warn("orphaned item not removed",
			zap.String("username", username), zap.String("item_id", it.ItemID), zap.Error(err))
	}
}

// AppendItem validates the item and stores it. A second item with the same item_id is rejected.
func (s *RegistryServiceImpl) AppendItem(ctx context.Context, username string, item model.Item) error {
	if username == "" {
		return fmt.Errorf("%w: empty username", errs.ErrValidation)
	}
	if err := itemcodec.Validate(item); err != nil {
		return err
	}
	return s.items.Append(ctx, username, item)
}

// ListItems returns the user's items in the order they were linked.
func (s *RegistryServiceImpl) ListItems(ctx context.Context, username string) ([]model.Item, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: empty username", errs.ErrValidation)
	}
	return s.items.List(ctx, username)
}

// ImportLegacy decodes each pending legacy field and inserts its items.
// Malformed fields are logged and left in place for manual repair.
// A storage failure for one user is logged and counted; the remaining users are still imported.
func (s *RegistryServiceImpl) ImportLegacy(ctx context.Context) (ImportReport, error) {
	var rep ImportReport
	users, err := s.items.LegacyCandidates(ctx)
	if err != nil {
		return rep, fmt.Errorf("legacy candidates: %w", err)
	}
	for _, u := range users {
		items, err := itemcodec.Decode(u.LegacyItems)
		if err != nil {
			rep.Malformed++
			s.log.Error("legacy item field needs manual repair",
				zap.String("username", u.Username), zap.Error(err))
			continue
		}
		n, err := s.items.ImportLegacy(ctx, u.Username, items)
		if err != nil {
			rep.Failed++
			s.log.Error("legacy import failed",
				zap.String("username", u.Username), zap.Error(err))
			continue
		}
		rep.Users++
		rep.Items += n
	}
	if len(users) > 0 {
		s.log.Info("legacy items imported",
			zap.Int("users", rep.Users), zap.Int("items", rep.Items), zap.Int("malformed", rep.Malformed),
			zap.Int("failed", rep.Failed))
	}
	return rep, nil
}
