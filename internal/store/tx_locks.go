package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// lockProductRow takes a row lock on a product for the rest of tx so that
// concurrent updates replacing images or specs apply one after the other.
func lockProductRow(ctx context.Context, tx pgx.Tx, id int64) error {
	var locked int64
	err := tx.QueryRow(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	return mapError("lock product", err)
}
