package sqlite

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/skinsense/store"
)

// UpsertCartItem adds upsert.Quantity to the existing line, creating it when
// missing, and returns the resulting line.
func (d *DB) UpsertCartItem(ctx context.Context, upsert *store.CartItem) (*store.CartItem, error) {
	now := time.Now().Unix()
	stmt := `INSERT INTO cart_item (user_id, product_id, size_id, quantity, updated_ts) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, product_id, size_id) DO UPDATE SET
			quantity = cart_item.quantity + excluded.quantity,
			updated_ts = excluded.updated_ts
		RETURNING user_id, product_id, size_id, quantity, updated_ts`
	item := &store.CartItem{}
	err := d.db.QueryRowContext(ctx, stmt, upsert.UserID, upsert.ProductID, upsert.SizeID, upsert.Quantity, now).
		Scan(&item.UserID, &item.ProductID, &item.SizeID, &item.Quantity, &item.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert cart_item")
	}
	return item, nil
}

func (d *DB) ListCartItems(ctx context.Context, find *store.FindCartItem) ([]*store.CartItem, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT user_id, product_id, size_id, quantity, updated_ts FROM cart_item WHERE user_id = ? ORDER BY updated_ts DESC, product_id ASC`, find.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list cart_item")
	}
	defer rows.Close()

	list := make([]*store.CartItem, 0)
	for rows.Next() {
		item := &store.CartItem{}
		if err := rows.Scan(&item.UserID, &item.ProductID, &item.SizeID, &item.Quantity, &item.UpdatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan cart_item")
		}
		list = append(list, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate cart_item")
	}
	return list, nil
}
