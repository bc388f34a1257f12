package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"swiftmart-be/internal/cart"
	"swiftmart-be/internal/db"
)

type Repository interface {
	// CreateOrder persists the order and its line items and clears the
	// user's cart, all in one transaction.
	CreateOrder(ctx context.Context, o *Order) error
	GetByOrderID(ctx context.Context, orderID string) (*Order, error)
	// GetByPaymentID returns nil, nil when no order references the payment
	// session.
	GetByPaymentID(ctx context.Context, paymentID string) (*Order, error)
	ListByUser(ctx context.Context, userID uint) ([]*Order, error)
	ListAll(ctx context.Context) ([]*Order, error)
	// GetOrderDetail loads one order with user, address, and current catalog
	// products expanded.
	GetOrderDetail(ctx context.Context, orderID string) (*Order, error)
	UpdateDeliveryStatus(ctx context.Context, orderID string, status DeliveryStatus, deliveredAt *time.Time) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const orderColumns = `
	o.id, o.order_id, o.user_id, o.payment_id, o.payment_status,
	o.delivery_address, o.sub_total_amt, o.total_amt, o.invoice_receipt,
	o.delivery_status, o.delivered_at, o.created_at, o.updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.OrderID,
		&o.UserID,
		&o.PaymentID,
		&o.PaymentStatus,
		&o.DeliveryAddress,
		&o.SubTotalAmt,
		&o.TotalAmt,
		&o.InvoiceReceipt,
		&o.DeliveryStatus,
		&o.DeliveredAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) CreateOrder(ctx context.Context, o *Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			order_id, user_id, payment_id, payment_status,
			delivery_address, sub_total_amt, total_amt, invoice_receipt,
			delivery_status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, created_at, updated_at
	`,
		o.OrderID,
		o.UserID,
		o.PaymentID,
		o.PaymentStatus,
		o.DeliveryAddress,
		o.SubTotalAmt,
		o.TotalAmt,
		o.InvoiceReceipt,
		o.DeliveryStatus,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return wrapCreateErr(err)
	}

	for i := range o.Products {
		line := &o.Products[i]
		line.OrderRef = o.ID
		err = tx.QueryRowContext(ctx, `
			INSERT INTO order_products (
				order_ref, product_id, name, image, quantity, price
			) VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id
		`,
			o.ID,
			line.ProductID,
			line.ProductDetails.Name,
			pq.Array(line.ProductDetails.Image),
			line.Quantity,
			line.Price,
		).Scan(&line.ID)
		if err != nil {
			return wrapCreateErr(err)
		}
	}

	if err := cart.ClearTx(ctx, tx, o.UserID); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return wrapCreateErr(err)
	}
	return nil
}

// wrapCreateErr maps a unique violation on the payment-session index to the
// idempotency sentinel; everything else is a persistence failure.
func wrapCreateErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == db.PgUniqueViolation {
		if pqErr.Constraint == "orders_payment_id_key" {
			return fmt.Errorf("%w: %v", ErrDuplicatePayment, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

func (r *repository) GetByOrderID(ctx context.Context, orderID string) (*Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.order_id = $1
	`, orderID)

	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	lines, err := r.fetchLines(ctx, []uint{o.ID})
	if err != nil {
		return nil, err
	}
	o.Products = lines[o.ID]
	return o, nil
}

func (r *repository) GetByPaymentID(ctx context.Context, paymentID string) (*Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.payment_id = $1
	`, paymentID)

	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	lines, err := r.fetchLines(ctx, []uint{o.ID})
	if err != nil {
		return nil, err
	}
	o.Products = lines[o.ID]
	return o, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uint) ([]*Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`,
			a.id, a.address_line, a.city, a.state, a.pincode, a.country, a.mobile
		FROM orders o
		LEFT JOIN addresses a ON a.id = o.delivery_address
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders, err := collectOrdersWithAddress(rows)
	if err != nil {
		return nil, err
	}
	return r.attachLines(ctx, orders)
}

func (r *repository) ListAll(ctx context.Context) ([]*Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		ORDER BY o.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return r.attachLines(ctx, orders)
}

func (r *repository) GetOrderDetail(ctx context.Context, orderID string) (*Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`,
			u.id, u.name, u.email, u.avatar,
			a.id, a.address_line, a.city, a.state, a.pincode, a.country, a.mobile
		FROM orders o
		JOIN users u ON u.id = o.user_id
		LEFT JOIN addresses a ON a.id = o.delivery_address
		WHERE o.order_id = $1
	`, orderID)

	var o Order
	var usr userView
	var addr addressView
	err := row.Scan(
		&o.ID, &o.OrderID, &o.UserID, &o.PaymentID, &o.PaymentStatus,
		&o.DeliveryAddress, &o.SubTotalAmt, &o.TotalAmt, &o.InvoiceReceipt,
		&o.DeliveryStatus, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt,
		&usr.id, &usr.name, &usr.email, &usr.avatar,
		&addr.id, &addr.line, &addr.city, &addr.state, &addr.pincode, &addr.country, &addr.mobile,
	)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	o.User = usr.toUser()
	o.Address = addr.toAddress()

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			op.id, op.order_ref, op.product_id, op.name, op.image, op.quantity, op.price,
			p.id, p.name, p.image, p.price, p.discount
		FROM order_products op
		LEFT JOIN products p ON p.id = op.product_id
		WHERE op.order_ref = $1
	`, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		line, err := scanDetailLine(rows)
		if err != nil {
			return nil, err
		}
		o.Products = append(o.Products, *line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &o, nil
}

func (r *repository) UpdateDeliveryStatus(ctx context.Context, orderID string, status DeliveryStatus, deliveredAt *time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET delivery_status = $2,
		    delivered_at = COALESCE($3, delivered_at),
		    updated_at = NOW()
		WHERE order_id = $1
	`, orderID, status, deliveredAt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ----------------- Line loading -----------------

func (r *repository) attachLines(ctx context.Context, orders []*Order) ([]*Order, error) {
	if len(orders) == 0 {
		return orders, nil
	}
	ids := make([]uint, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}

	lines, err := r.fetchLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		o.Products = lines[o.ID]
	}
	return orders, nil
}

func (r *repository) fetchLines(ctx context.Context, orderRefs []uint) (map[uint][]ProductLine, error) {
	refs := make([]int64, 0, len(orderRefs))
	for _, id := range orderRefs {
		refs = append(refs, int64(id))
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_ref, product_id, name, image, quantity, price
		FROM order_products
		WHERE order_ref = ANY($1)
	`, pq.Array(refs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uint][]ProductLine)
	for rows.Next() {
		var line ProductLine
		var image pq.StringArray
		if err := rows.Scan(
			&line.ID,
			&line.OrderRef,
			&line.ProductID,
			&line.ProductDetails.Name,
			&image,
			&line.Quantity,
			&line.Price,
		); err != nil {
			return nil, err
		}
		line.ProductDetails.Image = []string(image)
		out[line.OrderRef] = append(out[line.OrderRef], line)
	}
	return out, rows.Err()
}
