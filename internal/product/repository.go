package product

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var ErrProductNotFound = errors.New("product not found")

type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id string) (*Product, error) {
	query := `
	SELECT id, name, image, price, discount, stock, description, created_at, updated_at
	FROM products
	WHERE id = $1
	`

	var p Product
	var image pq.StringArray
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&image,
		&p.Price,
		&p.Discount,
		&p.Stock,
		&p.Description,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Image = []string(image)
	return &p, nil
}
