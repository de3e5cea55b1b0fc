package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/errs"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/itemcodec"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/model"
)

// ItemRepo implements ItemRepository using PostgreSQL.
type ItemRepo struct{ db *DB }

// NewItemRepo constructs an item repository.
func NewItemRepo(db *DB) *ItemRepo { return &ItemRepo{db: db} }

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const lockUser = `SELECT id FROM users WHERE username=$1 FOR UPDATE`

const lockUserForAppend = `
SELECT u.id, u.plaid_tokens, EXISTS (SELECT 1 FROM items i WHERE i.user_id = u.id)
FROM users u WHERE u.username=$1 FOR UPDATE OF u`

const insertIgnoringDup = `
INSERT INTO items (user_id, access_token, item_id) VALUES ($1,$2,$3)
ON CONFLICT (user_id, item_id) DO NOTHING`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Append inserts the item under a row lock on the owning user, then rewrites the
// user's encoded legacy field from the item rows, all in one transaction.
// A legacy field that was never imported is imported first, so its items survive the
// rewrite; if it cannot be decoded the append is refused and the field is left as is.
func (r *ItemRepo) Append(ctx context.Context, username string, item model.Item) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = persistErr("append item", e)
		}
	}()

	var (
		userID   uuid.UUID
		legacy   string
		hasItems bool
	)
	if err = tx.QueryRow(ctx, lockUserForAppend, username).Scan(&userID, &legacy, &hasItems); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrUserNotFound
		}
		return err
	}

	if !hasItems && legacy != "" {
		pending, derr := itemcodec.Decode(legacy)
		if derr != nil {
			err = fmt.Errorf("unimported legacy items of %s: %w", username, derr)
			return err
		}
		if _, err = insertAll(ctx, tx, userID, pending); err != nil {
			return err
		}
	}

	const ins = `INSERT INTO items (user_id, access_token, item_id) VALUES ($1,$2,$3)`
	if _, err = tx.Exec(ctx, ins, userID, item.AccessToken, item.ItemID); err != nil {
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
		return persistErr("append item", err)
	}

	items, err := listByUserID(ctx, tx, userID)
	if err != nil {
		return err
	}
	encoded, err := itemcodec.Encode(items)
	if err != nil {
		return err
	}
	const upd = `UPDATE users SET plaid_tokens=$2 WHERE id=$1`
	if _, err = tx.Exec(ctx, upd, userID, encoded); err != nil {
		return persistErr("append item", err)
	}
	return nil
}

// List returns the user's items ordered by insertion.
func (r *ItemRepo) List(ctx context.Context, username string) ([]model.Item, error) {
	const q = `
SELECT i.access_token, i.item_id
FROM users u LEFT JOIN items i ON i.user_id = u.id
WHERE u.username=$1
ORDER BY i.seq ASC`
	rows, err := r.db.Pool.Query(ctx, q, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := false
	out := []model.Item{}
	for rows.Next() {
		found = true
		var tok, id *string
		if err = rows.Scan(&tok, &id); err != nil {
			return nil, err
		}
		// a user without items still yields one row of NULLs
		if tok == nil || id == nil {
			continue
		}
		out = append(out, model.Item{AccessToken: *tok, ItemID: *id})
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.ErrUserNotFound
	}
	return out, nil
}

// LegacyCandidates lists users whose encoded field has not been imported into item rows.
func (r *ItemRepo) LegacyCandidates(ctx context.Context) ([]model.User, error) {
	const q = `
SELECT u.id, u.username, u.plaid_tokens
FROM users u
WHERE u.plaid_tokens <> '' AND NOT EXISTS (SELECT 1 FROM items i WHERE i.user_id = u.id)
ORDER BY u.username`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		if err = rows.Scan(&u.ID, &u.Username, &u.LegacyItems); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ImportLegacy inserts items in order, ignoring item ids the user already has.
func (r *ItemRepo) ImportLegacy(ctx context.Context, username string, items []model.Item) (n int, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			n, err = 0, persistErr("import legacy items", e)
		}
	}()

	var userID uuid.UUID
	if err = tx.QueryRow(ctx, lockUser, username).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errs.ErrUserNotFound
		}
		return 0, err
	}

	return insertAll(ctx, tx, userID, items)
}

// insertAll inserts items in order, skipping item ids the user already has, and
// returns how many rows were added.
func insertAll(ctx context.Context, tx execer, userID uuid.UUID, items []model.Item) (int, error) {
	n := 0
	for _, it := range items {
		tag, err := tx.Exec(ctx, insertIgnoringDup, userID, it.AccessToken, it.ItemID)
		if err != nil {
			return 0, persistErr("import legacy items", err)
		}
		n += int(tag.RowsAffected())
	}
	return n, nil
}

func listByUserID(ctx context.Context, q rowQuerier, userID uuid.UUID) ([]model.Item, error) {
	const sel = `SELECT access_token, item_id FROM items WHERE user_id=$1 ORDER BY seq ASC`
	rows, err := q.Query(ctx, sel, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Item
	for rows.Next() {
		var it model.Item
		if err = rows.Scan(&it.AccessToken, &it.ItemID); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
