package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swiftmart-be/internal/address"
	"swiftmart-be/internal/logger"
	"swiftmart-be/internal/metrics"
	"swiftmart-be/internal/notify"
	"swiftmart-be/internal/payment"
	"swiftmart-be/internal/product"
	"swiftmart-be/internal/user"
	"swiftmart-be/internal/utils"
)

// totalTolerance is how far the client-supplied totals may drift from the
// server-recomputed ones before the checkout is rejected.
var totalTolerance = decimal.NewFromInt(1)

var minorUnits = decimal.NewFromInt(100)

type Service interface {
	CashOnDelivery(ctx context.Context, userID uint, input CheckoutInput) (*Order, error)
	BeginOnlineCheckout(ctx context.Context, userID uint, input CheckoutInput) (*payment.CheckoutSession, *Order, error)
	HandleCheckoutCompleted(ctx context.Context, evt CompletedSession) (*Order, error)
	ListUserOrders(ctx context.Context, userID uint) ([]*Order, error)
	ListAllOrders(ctx context.Context) ([]*Order, error)
	GetOrderDetail(ctx context.Context, orderID string) (*Order, error)
	UpdateDeliveryStatus(ctx context.Context, orderID, rawStatus string) (*StatusUpdate, error)
}

type service struct {
	repo      Repository
	products  product.Repository
	addresses address.Repository
	users     user.Repository
	gateway   payment.Gateway
	events    notify.EventPublisher

	ordersCreated     metrics.Counter
	webhookEvents     metrics.Counter
	webhookDuplicates metrics.Counter
}

func NewService(
	repo Repository,
	products product.Repository,
	addresses address.Repository,
	users user.Repository,
	gateway payment.Gateway,
	events notify.EventPublisher,
) Service {
	return &service{
		repo:      repo,
		products:  products,
		addresses: addresses,
		users:     users,
		gateway:   gateway,
		events:    events,
	}
}

// ----------------- Order Builder -----------------

func (s *service) CashOnDelivery(ctx context.Context, userID uint, input CheckoutInput) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.Uint("user_id", userID),
		zap.Int("item_count", len(input.Items)),
	)

	lines, subtotal, err := s.buildLines(ctx, input.Items, false)
	if err != nil {
		log.Warn("cash-on-delivery checkout rejected", zap.Error(err))
		return nil, err
	}

	addr, err := s.lookupAddress(ctx, input.AddressID, userID)
	if err != nil {
		return nil, err
	}

	if err := verifyTotals(input, subtotal); err != nil {
		log.Warn("client totals rejected",
			zap.String("recomputed_subtotal", subtotal.String()),
			zap.String("client_subtotal", input.SubTotalAmt.String()),
		)
		return nil, err
	}

	o := s.assemble(userID, addr.ID, lines, input, "", PaymentStatusCashOnDelivery)
	if err := s.repo.CreateOrder(ctx, o); err != nil {
		return nil, err
	}

	s.ordersCreated.Inc()
	s.publish(ctx, notify.KeyOrderCreated, o)

	log.Info("cash-on-delivery order placed", zap.String("order_id", o.OrderID))
	return o, nil
}

// ----------------- Payment Session Bridge -----------------

func (s *service) BeginOnlineCheckout(ctx context.Context, userID uint, input CheckoutInput) (*payment.CheckoutSession, *Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.Uint("user_id", userID),
		zap.Int("item_count", len(input.Items)),
	)

	lines, subtotal, err := s.buildLines(ctx, input.Items, true)
	if err != nil {
		log.Warn("online checkout rejected", zap.Error(err))
		return nil, nil, err
	}

	addr, err := s.lookupAddress(ctx, input.AddressID, userID)
	if err != nil {
		return nil, nil, err
	}

	if err := verifyTotals(input, subtotal); err != nil {
		return nil, nil, err
	}

	usr, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	params := payment.CreateSessionParams{
		CustomerEmail: usr.Email,
		UserID:        strconv.FormatUint(uint64(userID), 10),
		AddressID:     addr.ID.String(),
		Items:         make([]payment.SessionItemParams, 0, len(lines)),
	}
	for _, line := range lines {
		params.Items = append(params.Items, payment.SessionItemParams{
			ProductID:  line.ProductID.String(),
			Name:       line.ProductDetails.Name,
			Images:     line.ProductDetails.Image,
			UnitAmount: line.Price.Mul(minorUnits).IntPart(),
			Quantity:   line.Quantity,
		})
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, params)
	if err != nil {
		// nothing has been persisted yet
		return nil, nil, err
	}

	// The order is recorded at session-creation time, tagged paid-online,
	// keyed by the session id. The webhook later finds it by that key.
	o := s.assemble(userID, addr.ID, lines, input, sess.ID, PaymentStatusPaidOnline)
	if err := s.repo.CreateOrder(ctx, o); err != nil {
		return nil, nil, err
	}

	s.ordersCreated.Inc()
	s.publish(ctx, notify.KeyOrderCreated, o)

	log.Info("online checkout order placed",
		zap.String("order_id", o.OrderID),
		zap.String("session_id", sess.ID),
	)
	return sess, o, nil
}

func (s *service) HandleCheckoutCompleted(ctx context.Context, evt CompletedSession) (*Order, error) {
	s.webhookEvents.Inc()

	log := logger.FromCtx(ctx).With(zap.String("session_id", evt.SessionID))

	// Webhook delivery is at-least-once; the session id is the idempotency
	// key, so a checkout that already produced an order is acknowledged
	// without writing a second one.
	existing, err := s.repo.GetByPaymentID(ctx, evt.SessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.webhookDuplicates.Inc()
		log.Info("checkout already recorded, skipping", zap.String("order_id", existing.OrderID))
		return existing, nil
	}

	gwItems, err := s.gateway.ListSessionLineItems(ctx, evt.SessionID)
	if err != nil {
		return nil, err
	}
	if len(gwItems) == 0 {
		return nil, fmt.Errorf("%w: session has no line items", ErrInvalidLineItem)
	}

	userID, err := strconv.ParseUint(evt.UserID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed session metadata userId %q", ErrInvalidLineItem, evt.UserID)
	}
	addrID, err := uuid.Parse(evt.AddressID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed session metadata addressId %q", ErrInvalidLineItem, evt.AddressID)
	}

	lines := make([]ProductLine, 0, len(gwItems))
	total := decimal.Zero
	for _, item := range gwItems {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed product metadata %q", ErrInvalidLineItem, item.ProductID)
		}
		lines = append(lines, ProductLine{
			ProductID: productID,
			ProductDetails: ProductDetails{
				Name:  item.Name,
				Image: item.Images,
			},
			Quantity: item.Quantity,
			Price:    decimal.NewFromInt(item.UnitAmount).Div(minorUnits),
		})
		total = total.Add(decimal.NewFromInt(item.AmountTotal).Div(minorUnits))
	}

	paymentStatus := evt.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = PaymentStatusPaidOnline
	}

	o := &Order{
		OrderID:         utils.GenerateOrderID(),
		UserID:          uint(userID),
		Products:        lines,
		PaymentID:       evt.SessionID,
		PaymentStatus:   paymentStatus,
		DeliveryAddress: addrID,
		SubTotalAmt:     total,
		TotalAmt:        total,
		InvoiceReceipt:  utils.GenerateInvoiceNumber(),
		DeliveryStatus:  StatusPending,
	}

	if err := s.repo.CreateOrder(ctx, o); err != nil {
		if errors.Is(err, ErrDuplicatePayment) {
			// lost the race against the synchronous checkout path
			s.webhookDuplicates.Inc()
			return s.repo.GetByPaymentID(ctx, evt.SessionID)
		}
		return nil, err
	}

	s.ordersCreated.Inc()
	s.publish(ctx, notify.KeyOrderCreated, o)

	log.Info("order created from webhook", zap.String("order_id", o.OrderID))
	return o, nil
}

// ----------------- Queries -----------------

func (s *service) ListUserOrders(ctx context.Context, userID uint) ([]*Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) ListAllOrders(ctx context.Context) ([]*Order, error) {
	return s.repo.ListAll(ctx)
}

func (s *service) GetOrderDetail(ctx context.Context, orderID string) (*Order, error) {
	return s.repo.GetOrderDetail(ctx, orderID)
}

// ----------------- Order Status Machine -----------------

func (s *service) UpdateDeliveryStatus(ctx context.Context, orderID, rawStatus string) (*StatusUpdate, error) {
	status := DeliveryStatus(strings.ToLower(strings.TrimSpace(rawStatus)))
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	o, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// transitions must change state
	if o.DeliveryStatus == status {
		return nil, fmt.Errorf("%w: order is already marked as %s", ErrStatusConflict, status)
	}

	var deliveredAt *time.Time
	if status == StatusDelivered {
		now := time.Now()
		deliveredAt = &now
	}

	if err := s.repo.UpdateDeliveryStatus(ctx, orderID, status, deliveredAt); err != nil {
		return nil, err
	}

	s.publish(ctx, notify.KeyOrderStatusChanged, map[string]any{
		"orderId":         orderID,
		"delivery_status": status,
		"userId":          o.UserID,
	})

	logger.FromCtx(ctx).Info("delivery status updated",
		zap.String("order_id", orderID),
		zap.String("from", string(o.DeliveryStatus)),
		zap.String("to", string(status)),
	)
	return &StatusUpdate{OrderID: orderID, DeliveryStatus: status}, nil
}

// ----------------- Internals -----------------

// buildLines resolves every submitted line item against the catalog and
// snapshots name/image/price. With discounted set, the unit price carries the
// checkout discount; cash orders charge the raw catalog price.
func (s *service) buildLines(ctx context.Context, items []LineItemInput, discounted bool) ([]ProductLine, decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, decimal.Zero, ErrEmptyLineItems
	}

	lines := make([]ProductLine, 0, len(items))
	subtotal := decimal.Zero

	for _, item := range items {
		if item.Quantity < 0 {
			return nil, decimal.Zero, ErrInvalidLineItem
		}
		// reject malformed ids before they reach a UUID column
		if _, err := uuid.Parse(item.ProductID); err != nil {
			return nil, decimal.Zero, fmt.Errorf("%w: malformed product id %q", ErrInvalidLineItem, item.ProductID)
		}
		quantity := item.Quantity
		if quantity == 0 {
			quantity = 1
		}

		p, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrProductNotFound) {
				return nil, decimal.Zero, fmt.Errorf("%w: unknown product %s", ErrInvalidLineItem, item.ProductID)
			}
			return nil, decimal.Zero, err
		}
		if p.Name == "" || p.Price.IsNegative() {
			return nil, decimal.Zero, fmt.Errorf("%w: product %s", ErrInvalidLineItem, item.ProductID)
		}

		unit := p.Price
		if discounted {
			unit = p.DiscountedPrice()
		}

		lines = append(lines, ProductLine{
			ProductID: p.ID,
			ProductDetails: ProductDetails{
				Name:  p.Name,
				Image: p.Image,
			},
			Quantity: quantity,
			Price:    unit,
		})
		subtotal = subtotal.Add(unit.Mul(decimal.NewFromInt(int64(quantity))))
	}

	return lines, subtotal, nil
}

// lookupAddress validates the raw address id before it touches the UUID
// column, then loads the address scoped to the user.
func (s *service) lookupAddress(ctx context.Context, rawID string, userID uint) (*address.Address, error) {
	if _, err := uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("%w: malformed address id %q", address.ErrAddressNotFound, rawID)
	}
	return s.addresses.GetUserAddress(ctx, rawID, userID)
}

// verifyTotals checks the client-supplied amounts against the recomputed
// subtotal. Accepted client values are stored as-is.
func verifyTotals(input CheckoutInput, subtotal decimal.Decimal) error {
	if input.SubTotalAmt.Sub(subtotal).Abs().GreaterThan(totalTolerance) {
		return fmt.Errorf("%w: subTotalAmt %s, expected %s", ErrTotalMismatch, input.SubTotalAmt, subtotal)
	}
	if input.TotalAmt.Sub(subtotal).Abs().GreaterThan(totalTolerance) {
		return fmt.Errorf("%w: totalAmt %s, expected %s", ErrTotalMismatch, input.TotalAmt, subtotal)
	}
	return nil
}

func (s *service) assemble(userID uint, addrID uuid.UUID, lines []ProductLine, input CheckoutInput, paymentID, paymentStatus string) *Order {
	return &Order{
		OrderID:         utils.GenerateOrderID(),
		UserID:          userID,
		Products:        lines,
		PaymentID:       paymentID,
		PaymentStatus:   paymentStatus,
		DeliveryAddress: addrID,
		SubTotalAmt:     input.SubTotalAmt,
		TotalAmt:        input.TotalAmt,
		InvoiceReceipt:  utils.GenerateInvoiceNumber(),
		DeliveryStatus:  StatusPending,
	}
}

// publish sends an order event; failures are logged, never surfaced.
func (s *service) publish(ctx context.Context, key string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(key, payload); err != nil {
		logger.FromCtx(ctx).Warn("failed to publish order event",
			zap.String("routing_key", key),
			zap.Error(err),
		)
	}
}
