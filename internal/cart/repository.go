package cart

import (
	"context"
	"database/sql"
	"fmt"
)

type Repository interface {
	GetCartRows(ctx context.Context, userID uint) ([]CartItem, error)
	Clear(ctx context.Context, userID uint) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetCartRows(ctx context.Context, userID uint) ([]CartItem, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, user_id, product_id, quantity, created_at, updated_at
	FROM carts
	WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedGetCartRows, err)
	}
	defer rows.Close()

	var items []CartItem
	for rows.Next() {
		var item CartItem
		if err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.ProductID,
			&item.Quantity,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailedGetCartRows, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *repository) Clear(ctx context.Context, userID uint) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedClearCart, err)
	}
	return nil
}

// ClearTx removes every cart row for the user inside an open transaction, so
// order creation and cart clearing commit or roll back as one unit.
func ClearTx(ctx context.Context, tx *sql.Tx, userID uint) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM carts WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedClearCart, err)
	}
	return nil
}
