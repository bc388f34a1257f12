package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"swiftmart-be/internal/address"
	"swiftmart-be/internal/product"
	"swiftmart-be/internal/user"
)

type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusDelivered DeliveryStatus = "delivered"
	StatusCancelled DeliveryStatus = "cancelled"
)

// Valid reports whether s is one of the enumerated delivery statuses.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case StatusPending, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Payment status strings recorded on orders. Online orders may instead carry
// the status string the gateway reports at completion.
const (
	PaymentStatusCashOnDelivery = "CASH ON DELIVERY"
	PaymentStatusPaidOnline     = "PAID-ONLINE"
)

// ProductDetails is the catalog snapshot frozen into a line item at order
// time, so later catalog edits never alter order history.
type ProductDetails struct {
	Name  string   `json:"name"`
	Image []string `json:"image"`
}

type ProductLine struct {
	ID             uint             `json:"-"`
	OrderRef       uint             `json:"-"`
	ProductID      uuid.UUID        `json:"productId"`
	ProductDetails ProductDetails   `json:"product_details"`
	Quantity       int              `json:"quantity"`
	Price          decimal.Decimal  `json:"price"`
	Product        *product.Product `json:"product,omitempty"`
}

type Order struct {
	ID              uint             `json:"-"`
	OrderID         string           `json:"orderId"`
	UserID          uint             `json:"userId"`
	Products        []ProductLine    `json:"products"`
	PaymentID       string           `json:"paymentId"`
	PaymentStatus   string           `json:"payment_status"`
	DeliveryAddress uuid.UUID        `json:"delivery_address"`
	SubTotalAmt     decimal.Decimal  `json:"subTotalAmt"`
	TotalAmt        decimal.Decimal  `json:"totalAmt"`
	InvoiceReceipt  string           `json:"invoice_receipt"`
	DeliveryStatus  DeliveryStatus   `json:"delivery_status"`
	DeliveredAt     *time.Time       `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`

	// Populated views, lifecycle-dependent
	Address *address.Address `json:"address,omitempty"`
	User    *user.User       `json:"user,omitempty"`
}

// LineItemInput is a (product reference, quantity) pair submitted at
// checkout.
type LineItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CheckoutInput is the body of both checkout endpoints. The totals are
// client-computed and verified against catalog prices before being stored.
type CheckoutInput struct {
	Items       []LineItemInput `json:"list_items"`
	AddressID   string          `json:"addressId"`
	SubTotalAmt decimal.Decimal `json:"subTotalAmt"`
	TotalAmt    decimal.Decimal `json:"totalAmt"`
}

// CompletedSession is the slice of a gateway "checkout completed" event the
// order flow needs.
type CompletedSession struct {
	SessionID     string
	PaymentIntent string
	PaymentStatus string
	UserID        string
	AddressID     string
}

// StatusUpdate is the payload returned after a delivery-status transition.
type StatusUpdate struct {
	OrderID        string         `json:"orderId"`
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
}
