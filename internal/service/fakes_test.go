package service

import (
	"context"
	"errors"
	"sync"

	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/errs"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/itemcodec"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/model"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/repository"
)

type fakeUsers struct {
	byName map[string]*model.User

	createErr error
	getErr    error
	setErr    error
	getCalls  int
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.byName == nil {
		f.byName = map[string]*model.User{}
	}
	if _, exists := f.byName[u.Username]; exists {
		return errs.ErrAlreadyExists
	}
	cpy := *u
	f.byName[u.Username] = &cpy
	return nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[username]
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) SetSessionToken(_ context.Context, username, token string) error {
	if f.setErr != nil {
		return f.setErr
	}
	u, ok := f.byName[username]
	if !ok {
		return errs.ErrUserNotFound
	}
	u.SessionToken = token
	return nil
}

func (f *fakeUsers) UpgradePassword(_ context.Context, username string, pwdHash, salt []byte) error {
	u, ok := f.byName[username]
	if !ok || len(u.PwdHash) != 0 {
		return errs.ErrUserNotFound
	}
	u.PwdHash, u.SaltAuth, u.LegacyPassword = pwdHash, salt, ""
	return nil
}

// fakeItems mimics the postgres repository: ordered rows, unique item ids per user,
// and the encoded legacy field rewritten on every append.
type fakeItems struct {
	mu        sync.Mutex
	rows      map[string][]model.Item
	legacy    map[string]string
	listErr   error
	appErr    error
	importErr map[string]error // username -> ImportLegacy error
}

var _ repository.ItemRepository = (*fakeItems)(nil)

func newFakeItems(users ...string) *fakeItems {
	f := &fakeItems{rows: map[string][]model.Item{}, legacy: map[string]string{}}
	for _, u := range users {
		f.rows[u] = nil
	}
	return f
}

func (f *fakeItems) Append(_ context.Context, username string, item model.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appErr != nil {
		return f.appErr
	}
	cur, ok := f.rows[username]
	if !ok {
		return errs.ErrUserNotFound
	}
	if len(cur) == 0 && f.legacy[username] != "" {
		pending, err := itemcodec.Decode(f.legacy[username])
		if err != nil {
			return err
		}
		cur = pending
	}
	for _, it := range cur {
		if it.ItemID == item.ItemID {
			return errs.ErrAlreadyExists
		}
	}
	cur = append(cur, item)
	enc, err := itemcodec.Encode(cur)
	if err != nil {
		return err
	}
	f.rows[username] = cur
	f.legacy[username] = enc
	return nil
}

func (f *fakeItems) List(_ context.Context, username string) ([]model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	cur, ok := f.rows[username]
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	return append([]model.Item{}, cur...), nil
}

func (f *fakeItems) LegacyCandidates(context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for name, enc := range f.legacy {
		if enc != "" && len(f.rows[name]) == 0 {
			out = append(out, model.User{Username: name, LegacyItems: enc})
		}
	}
	return out, nil
}

func (f *fakeItems) ImportLegacy(_ context.Context, username string, items []model.Item) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.importErr[username]; err != nil {
		return 0, err
	}
	n := 0
next:
	for _, it := range items {
		for _, have := range f.rows[username] {
			if have.ItemID == it.ItemID {
				continue next
			}
		}
		f.rows[username] = append(f.rows[username], it)
		n++
	}
	return n, nil
}

type fakeProvider struct {
	mu sync.Mutex

	linkToken model.LinkToken
	exchange  map[string]model.Item          // public token -> item
	balances  map[string][]model.Account     // access token -> accounts
	itemIDs   map[string]string              // access token -> provider item id
	failing   map[string]error               // access token -> error
	txs       map[string][]model.Transaction // access token -> transactions
	block     map[string]bool                // access token -> wait for ctx

	removeErr error

	balanceCalls []string
	txCalls      []string
	removeCalls  []string
	lastQuery    model.TransactionQuery
	exchangeCall int
}

var _ Provider = (*fakeProvider)(nil)

func (p *fakeProvider) CreateLinkToken(_ context.Context, userRef string) (model.LinkToken, error) {
	lt := p.linkToken
	lt.LinkToken += ":" + userRef
	return lt, nil
}

func (p *fakeProvider) ExchangePublicToken(_ context.Context, publicToken string) (model.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchangeCall++
	it, ok := p.exchange[publicToken]
	if !ok {
		return model.Item{}, errors.Join(errs.ErrProvider, errors.New("INVALID_PUBLIC_TOKEN"))
	}
	return it, nil
}

func (p *fakeProvider) RemoveItem(_ context.Context, accessToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeCalls = append(p.removeCalls, accessToken)
	return p.removeErr
}

func (p *fakeProvider) GetBalances(ctx context.Context, accessToken string) (string, []model.Account, error) {
	p.mu.Lock()
	p.balanceCalls = append(p.balanceCalls, accessToken)
	err := p.failing[accessToken]
	block := p.block[accessToken]
	accts := append([]model.Account(nil), p.balances[accessToken]...)
	itemID := p.itemIDs[accessToken]
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", nil, ctx.Err()
	}
	if err != nil {
		return "", nil, err
	}
	return itemID, accts, nil
}

func (p *fakeProvider) GetTransactions(_ context.Context, accessToken string, q model.TransactionQuery) ([]model.Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txCalls = append(p.txCalls, accessToken)
	p.lastQuery = q
	if err := p.failing[accessToken]; err != nil {
		return nil, err
	}
	return p.txs[accessToken], nil
}
