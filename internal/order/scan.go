package order

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"swiftmart-be/internal/address"
	"swiftmart-be/internal/product"
	"swiftmart-be/internal/user"
)

// Nullable scan targets for the LEFT JOINed views.

type userView struct {
	id     uint
	name   string
	email  string
	avatar string
}

func (v userView) toUser() *user.User {
	return &user.User{
		ID:     v.id,
		Name:   v.name,
		Email:  v.email,
		Avatar: v.avatar,
	}
}

type addressView struct {
	id      uuid.NullUUID
	line    sql.NullString
	city    sql.NullString
	state   sql.NullString
	pincode sql.NullString
	country sql.NullString
	mobile  sql.NullString
}

func (v addressView) toAddress() *address.Address {
	if !v.id.Valid {
		return nil
	}
	return &address.Address{
		ID:          v.id.UUID,
		AddressLine: v.line.String,
		City:        v.city.String,
		State:       v.state.String,
		Pincode:     v.pincode.String,
		Country:     v.country.String,
		Mobile:      v.mobile.String,
	}
}

func collectOrdersWithAddress(rows *sql.Rows) ([]*Order, error) {
	var orders []*Order
	for rows.Next() {
		var o Order
		var addr addressView
		err := rows.Scan(
			&o.ID, &o.OrderID, &o.UserID, &o.PaymentID, &o.PaymentStatus,
			&o.DeliveryAddress, &o.SubTotalAmt, &o.TotalAmt, &o.InvoiceReceipt,
			&o.DeliveryStatus, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt,
			&addr.id, &addr.line, &addr.city, &addr.state, &addr.pincode, &addr.country, &addr.mobile,
		)
		if err != nil {
			return nil, err
		}
		o.Address = addr.toAddress()
		orders = append(orders, &o)
	}
	return orders, rows.Err()
}

func scanDetailLine(rows *sql.Rows) (*ProductLine, error) {
	var line ProductLine
	var image pq.StringArray

	var pid uuid.NullUUID
	var pname sql.NullString
	var pimage pq.StringArray
	var pprice decimal.NullDecimal
	var pdiscount decimal.NullDecimal

	err := rows.Scan(
		&line.ID, &line.OrderRef, &line.ProductID,
		&line.ProductDetails.Name, &image, &line.Quantity, &line.Price,
		&pid, &pname, &pimage, &pprice, &pdiscount,
	)
	if err != nil {
		return nil, err
	}
	line.ProductDetails.Image = []string(image)

	// catalog row may be gone; the snapshot still stands on its own
	if pid.Valid {
		line.Product = &product.Product{
			ID:       pid.UUID,
			Name:     pname.String,
			Image:    []string(pimage),
			Price:    pprice.Decimal,
			Discount: pdiscount,
		}
	}
	return &line, nil
}
