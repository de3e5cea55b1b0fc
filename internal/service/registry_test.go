package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/errs"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/model"
)

func TestRegistry_AliceLinksTwoItems(t *testing.T) {
	t.Parallel()
	items := newFakeItems("alice")
	prov := &fakeProvider{exchange: map[string]model.Item{
		"public-1": {AccessToken: "cred1", ItemID: "item_a"},
		"public-2": {AccessToken: "cred2", ItemID: "item_b"},
	}}
	s := NewRegistryService(items, prov, zaptest.NewLogger(t))
	ctx := context.Background()

	if _, err := s.LinkItem(ctx, "alice", "public-1"); err != nil {
		t.Fatalf("LinkItem(1): %v", err)
	}
	if _, err := s.LinkItem(ctx, "alice", "public-2"); err != nil {
		t.Fatalf("LinkItem(2): %v", err)
	}

	if got := items.legacy["alice"]; got != "cred1|item_a~cred2|item_b" {
		t.Fatalf("encoded field=%q", got)
	}
	got, err := s.ListItems(ctx, "alice")
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	want := []model.Item{{AccessToken: "cred1", ItemID: "item_a"}, {AccessToken: "cred2", ItemID: "item_b"}}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("ListItems=%v want %v", got, want)
	}
}

func TestRegistry_LinkItem_Errors(t *testing.T) {
	t.Parallel()
	items := newFakeItems("alice")
	prov := &fakeProvider{exchange: map[string]model.Item{
		"public-1": {AccessToken: "cred1", ItemID: "item_a"},
		"public-x": {AccessToken: "cred9", ItemID: "item_a"},
		"public-d": {AccessToken: "cr|ed", ItemID: "item_d"},
	}}
	s := NewRegistryService(items, prov, zaptest.NewLogger(t))
	ctx := context.Background()

	if _, err := s.LinkItem(ctx, "alice", ""); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
	if prov.exchangeCall != 0 {
		t.Fatalf("provider called on invalid input")
	}
	if _, err := s.LinkItem(ctx, "alice", "bogus"); !errors.Is(err, errs.ErrProvider) {
		t.Fatalf("want provider error, got %v", err)
	}
	if _, err := s.LinkItem(ctx, "alice", "public-1"); err != nil {
		t.Fatalf("LinkItem: %v", err)
	}
	if _, err := s.LinkItem(ctx, "alice", "public-x"); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("want duplicate item rejected, got %v", err)
	}
	if _, err := s.LinkItem(ctx, "alice", "public-d"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want delimiter rejected, got %v", err)
	}
	if _, err := s.LinkItem(ctx, "ghost", "public-1"); !errors.Is(err, errs.ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestRegistry_LinkItem_RemovesCredentialItCouldNotStore(t *testing.T) {
	t.Parallel()
	items := newFakeItems("alice")
	items.appErr = errs.ErrPersistence
	prov := &fakeProvider{exchange: map[string]model.Item{
		"public-1": {AccessToken: "cred1", ItemID: "item_a"},
	}}
	s := NewRegistryService(items, prov, zaptest.NewLogger(t))

	if _, err := s.LinkItem(context.Background(), "alice", "public-1"); !errors.Is(err, errs.ErrPersistence) {
		t.Fatalf("want ErrPersistence, got %v", err)
	}
	if len(prov.removeCalls) != 1 || prov.removeCalls[0] != "cred1" {
		t.Fatalf("removeCalls=%v", prov.removeCalls)
	}

	// a failed removal is logged only; the caller still sees the storage error
	prov.removeErr = errors.Join(errs.ErrProvider, errors.New("INVALID_ACCESS_TOKEN"))
	if _, err := s.LinkItem(context.Background(), "alice", "public-1"); !errors.Is(err, errs.ErrPersistence) {
		t.Fatalf("want ErrPersistence, got %v", err)
	}
}

func TestRegistry_LinkItem_DuplicateKeepsStoredCredential(t *testing.T) {
	t.Parallel()
	items := newFakeItems("alice")
	prov := &fakeProvider{exchange: map[string]model.Item{
		"public-1": {AccessToken: "cred1", ItemID: "item_a"},
		"public-2": {AccessToken: "cred1b", ItemID: "item_a"},
	}}
	s := NewRegistryService(items, prov, zaptest.NewLogger(t))
	ctx := context.Background()

	if _, err := s.LinkItem(ctx, "alice", "public-1"); err != nil {
		t.Fatalf("LinkItem: %v", err)
	}
	if _, err := s.LinkItem(ctx, "alice", "public-2"); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}
	if len(prov.removeCalls) != 0 {
		t.Fatalf("duplicate must not remove the item, removeCalls=%v", prov.removeCalls)
	}
}

func TestRegistry_AppendItem_KeepsUnimportedLegacyItems(t *testing.T) {
	t.Parallel()
	items := newFakeItems("bob", "dave")
	items.legacy["bob"] = "cred0|item_0"
	items.legacy["dave"] = "garbage"
	s := NewRegistryService(items, &fakeProvider{}, nil)
	ctx := context.Background()

	if err := s.AppendItem(ctx, "bob", model.Item{AccessToken: "cred1", ItemID: "item_1"}); err != nil {
		t.Fatalf("AppendItem: %v", err)
	}
	if got := items.legacy["bob"]; got != "cred0|item_0~cred1|item_1" {
		t.Fatalf("encoded field=%q", got)
	}

	err := s.AppendItem(ctx, "dave", model.Item{AccessToken: "cred1", ItemID: "item_1"})
	if !errors.Is(err, errs.ErrMalformedItemRecord) {
		t.Fatalf("want ErrMalformedItemRecord, got %v", err)
	}
	if items.legacy["dave"] != "garbage" {
		t.Fatalf("malformed field was overwritten: %q", items.legacy["dave"])
	}
}

func TestRegistry_AppendItem_PersistenceErrorPropagates(t *testing.T) {
	t.Parallel()
	items := newFakeItems("alice")
	items.appErr = errs.ErrPersistence
	s := NewRegistryService(items, &fakeProvider{}, nil)

	err := s.AppendItem(context.Background(), "alice", model.Item{AccessToken: "c", ItemID: "i"})
	if !errors.Is(err, errs.ErrPersistence) {
		t.Fatalf("want ErrPersistence, got %v", err)
	}
}

func TestRegistry_ListItems_Empty(t *testing.T) {
	t.Parallel()
	s := NewRegistryService(newFakeItems("carol"), &fakeProvider{}, nil)

	got, err := s.ListItems(context.Background(), "carol")
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("want empty non-nil slice, got %v err=%v", got, err)
	}
	if _, err := s.ListItems(context.Background(), "ghost"); !errors.Is(err, errs.ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestRegistry_CreateLinkToken(t *testing.T) {
	t.Parallel()
	s := NewRegistryService(newFakeItems("alice"), &fakeProvider{linkToken: model.LinkToken{LinkToken: "link"}}, nil)

	lt, err := s.CreateLinkToken(context.Background(), "alice")
	if err != nil || lt.LinkToken != "link:alice" {
		t.Fatalf("CreateLinkToken: %+v err=%v", lt, err)
	}
	if _, err := s.CreateLinkToken(context.Background(), ""); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestRegistry_ImportLegacy(t *testing.T) {
	t.Parallel()
	items := newFakeItems("alice", "bob", "carol")
	items.legacy["alice"] = "~cred1|item_a~cred2|item_b"
	items.legacy["bob"] = "cred3|item_c~garbage"
	s := NewRegistryService(items, &fakeProvider{}, zaptest.NewLogger(t))

	rep, err := s.ImportLegacy(context.Background())
	if err != nil {
		t.Fatalf("ImportLegacy: %v", err)
	}
	if rep.Users != 1 || rep.Items != 2 || rep.Malformed != 1 {
		t.Fatalf("report=%+v", rep)
	}
	if got := items.rows["alice"]; len(got) != 2 || got[0].ItemID != "item_a" || got[1].ItemID != "item_b" {
		t.Fatalf("alice rows=%v", got)
	}
	if len(items.rows["bob"]) != 0 {
		t.Fatalf("malformed field must not be partially imported")
	}

	// Second run has nothing left for alice; bob stays pending for repair.
	rep, err = s.ImportLegacy(context.Background())
	if err != nil || rep.Users != 0 || rep.Malformed != 1 {
		t.Fatalf("rerun report=%+v err=%v", rep, err)
	}
}

func TestRegistry_ImportLegacy_StorageFailureSkipsOnlyThatUser(t *testing.T) {
	t.Parallel()
	items := newFakeItems("alice", "bob", "carol")
	items.legacy["alice"] = "cred1|item_a"
	items.legacy["bob"] = "cred2|item_b"
	items.legacy["carol"] = "cred3|item_c"
	items.importErr = map[string]error{"bob": errs.ErrPersistence}
	s := NewRegistryService(items, &fakeProvider{}, zaptest.NewLogger(t))

	rep, err := s.ImportLegacy(context.Background())
	if err != nil {
		t.Fatalf("ImportLegacy: %v", err)
	}
	if rep.Users != 2 || rep.Items != 2 || rep.Failed != 1 || rep.Malformed != 0 {
		t.Fatalf("report=%+v", rep)
	}
	if len(items.rows["alice"]) != 1 || len(items.rows["carol"]) != 1 || len(items.rows["bob"]) != 0 {
		t.Fatalf("rows=%v", items.rows)
	}

	// bob is still a candidate and is picked up once storage recovers
	delete(items.importErr, "bob")
	rep, err = s.ImportLegacy(context.Background())
	if err != nil || rep.Users != 1 || rep.Failed != 0 || len(items.rows["bob"]) != 1 {
		t.Fatalf("rerun report=%+v err=%v", rep, err)
	}
}
