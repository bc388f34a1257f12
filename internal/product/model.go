package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uuid.UUID           `json:"id"`
	Name        string              `json:"name"`
	Image       []string            `json:"image"`
	Price       decimal.Decimal     `json:"price"`
	Discount    decimal.NullDecimal `json:"discount"`
	Stock       int                 `json:"stock"`
	Description string              `json:"description,omitempty"`
	CreatedAt   time.Time           `json:"-"`
	UpdatedAt   time.Time           `json:"-"`
}

// DiscountPercent returns the discount to apply at checkout. A product with
// no stored discount still gets the storefront-wide default of 1 percent.
func (p *Product) DiscountPercent() decimal.Decimal {
	if !p.Discount.Valid {
		return decimal.NewFromInt(1)
	}
	return p.Discount.Decimal
}

// DiscountedPrice applies the checkout discount formula:
// price - ceil(price * discount / 100).
func (p *Product) DiscountedPrice() decimal.Decimal {
	cut := p.Price.Mul(p.DiscountPercent()).Div(decimal.NewFromInt(100)).Ceil()
	return p.Price.Sub(cut)
}
