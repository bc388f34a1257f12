package order

import "errors"

var (
	// -- Validation & Input --
	ErrEmptyLineItems  = errors.New("invalid or empty list_items")
	ErrInvalidLineItem = errors.New("invalid product data in list_items")
	ErrTotalMismatch   = errors.New("supplied totals do not match catalog prices")
	ErrInvalidStatus   = errors.New("invalid delivery status, must be one of: pending, delivered, cancelled")

	// -- Resource State --
	ErrOrderNotFound  = errors.New("order not found")
	ErrStatusConflict = errors.New("order status unchanged")

	// -- Persistence --
	ErrDuplicatePayment = errors.New("order already recorded for payment session")
	ErrPersistence      = errors.New("failed to persist order")
)
