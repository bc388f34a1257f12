package address

import (
	"context"
	"database/sql"
	"errors"
)

var ErrAddressNotFound = errors.New("address not found")

type Repository interface {
	// GetUserAddress loads an address and checks it belongs to the user.
	GetUserAddress(ctx context.Context, addressID string, userID uint) (*Address, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetUserAddress(ctx context.Context, addressID string, userID uint) (*Address, error) {
	query := `
	SELECT id, user_id, address_line, city, state, pincode, country, mobile
	FROM addresses
	WHERE id = $1 AND user_id = $2
	`

	var a Address
	err := r.db.QueryRowContext(ctx, query, addressID, userID).Scan(
		&a.ID,
		&a.UserID,
		&a.AddressLine,
		&a.City,
		&a.State,
		&a.Pincode,
		&a.Country,
		&a.Mobile,
	)
	if err == sql.ErrNoRows {
		return nil, ErrAddressNotFound
	}
	if err != nil {
		return nil, err
	}

	return &a, nil
}
