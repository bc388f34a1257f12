package cart

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one row of a user's cart. The cart is ephemeral: a successful
// checkout clears every row for the user inside the order transaction.
type CartItem struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
