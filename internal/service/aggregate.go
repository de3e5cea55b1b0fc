package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/errs"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/model"
)

// Aggregator merges provider data across all of a user's linked items.
type Aggregator interface {
	// AggregateBalances fetches every item's accounts concurrently; failed items are left out.
	AggregateBalances(ctx context.Context, username string) (*model.BalanceReport, error)
	// FetchTransactions fetches transactions of one account of the item with itemID.
	FetchTransactions(ctx context.Context, username, itemID, accountID string, r model.DateRange) ([]model.Transaction, error)
}

// AggregatorOptions tune provider calls.
type AggregatorOptions struct {
	CallTimeout  time.Duration // bound on each provider call
	PageSize     int           // transactions requested per call
	LookbackDays int           // default range when the caller gives none
}

const (
	defaultCallTimeout  = 20 * time.Second
	defaultPageSize     = 35
	defaultLookbackDays = 365
)

type AggregatorImpl struct {
	items    ItemLister
	provider Provider
	log      *zap.Logger
	opts     AggregatorOptions
	now      func() time.Time
}

// NewAggregator constructs Aggregator; zero options fall back to defaults.
func NewAggregator(items ItemLister, provider Provider, log *zap.Logger, opts AggregatorOptions) *AggregatorImpl {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = defaultLookbackDays
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AggregatorImpl{items: items, provider: provider, log: log, opts: opts, now: time.Now}
}

// AggregateBalances issues one balance call per distinct credential, all at once, and waits
// for every call to settle. A failing item never cancels its siblings.
func (a *AggregatorImpl) AggregateBalances(ctx context.Context, username string) (*model.BalanceReport, error) {
	items, err := a.items.ListItems(ctx, username)
	if err != nil {
		return nil, err
	}

	targets := make([]model.Item, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it.AccessToken]; dup {
			continue
		}
		seen[it.AccessToken] = struct{}{}
		targets = append(targets, it)
	}

	results := make([]model.ItemResult, len(targets))
	var g errgroup.Group
	for i, it := range targets {
		g.Go(func() error {
			results[i] = a.fetchBalances(ctx, it)
			return nil
		})
	}
	_ = g.Wait()

	rep := &model.BalanceReport{Accounts: []model.Account{}}
	for _, res := range results {
		if res.Err != nil {
			rep.Failures = append(rep.Failures, model.ItemFailure{ItemID: res.ItemID, Err: res.Err})
			a.log.Warn("balance fetch failed",
				zap.String("username", username),
				zap.String("item_id", res.ItemID),
				zap.Error(res.Err),
			)
			continue
		}
		rep.Accounts = append(rep.Accounts, res.Accounts...)
	}
	if len(rep.Failures) > 0 {
		a.log.Warn("balance aggregation partial",
			zap.String("username", username),
			zap.Int("items", len(targets)),
			zap.Int("failed", len(rep.Failures)),
		)
	}
	return rep, nil
}

func (a *AggregatorImpl) fetchBalances(ctx context.Context, it model.Item) model.ItemResult {
	ctx, cancel := context.WithTimeout(ctx, a.opts.CallTimeout)
	defer cancel()

	itemID, accts, err := a.provider.GetBalances(ctx, it.AccessToken)
	if err != nil {
		return model.ItemResult{ItemID: it.ItemID, Err: providerErr(err)}
	}
	if itemID == "" {
		itemID = it.ItemID
	}
	for i := range accts {
		accts[i].ItemID = itemID
	}
	return model.ItemResult{ItemID: itemID, Accounts: accts}
}

// FetchTransactions resolves itemID among the user's items (first match wins) and issues
// exactly one provider call scoped to accountID and r.
func (a *AggregatorImpl) FetchTransactions(ctx context.Context, username, itemID, accountID string, r model.DateRange) ([]model.Transaction, error) {
	if itemID == "" || accountID == "" {
		return nil, fmt.Errorf("%w: empty item_id/account_id", errs.ErrValidation)
	}
	r, err := a.resolveRange(r)
	if err != nil {
		return nil, err
	}

	items, err := a.items.ListItems(ctx, username)
	if err != nil {
		return nil, err
	}
	var accessToken string
	for _, it := range items {
		if it.ItemID == itemID {
			accessToken = it.AccessToken
			break
		}
	}
	if accessToken == "" {
		return nil, errs.ErrItemNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.CallTimeout)
	defer cancel()
	txs, err := a.provider.GetTransactions(ctx, accessToken, model.TransactionQuery{
		AccountID: accountID,
		Range:     r,
		Count:     a.opts.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("get transactions: %w", providerErr(err))
	}
	return txs, nil
}

func (a *AggregatorImpl) resolveRange(r model.DateRange) (model.DateRange, error) {
	if r.End.IsZero() {
		r.End = a.now()
	}
	if r.Start.IsZero() {
		r.Start = r.End.AddDate(0, 0, -a.opts.LookbackDays)
	}
	if r.End.Before(r.Start) {
		return r, fmt.Errorf("%w: end date before start date", errs.ErrValidation)
	}
	return r, nil
}

// providerErr makes sure a provider failure matches errs.ErrProvider.
func providerErr(err error) error {
	if errors.Is(err, errs.ErrProvider) {
		return err
	}
	return fmt.Errorf("%w: %w", errs.ErrProvider, err)
}
