package order

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"swiftmart-be/internal/address"
	"swiftmart-be/internal/httpx"
	"swiftmart-be/internal/logger"
	"swiftmart-be/internal/payment"
	"swiftmart-be/internal/user"
	"swiftmart-be/internal/utils"
)

func userIDFromRequest(r *http.Request) (uint, bool) {
	return utils.GetUserIDFromContext(r.Context())
}

// Handler exposes the order workflow over the fixed REST contract. Every
// response uses the shared success/error envelope.
type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the order routes. The webhook route is registered
// separately by the payment webhook handler.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /order/cash-on-delivery", h.CashOnDelivery)
	mux.HandleFunc("POST /order/checkout", h.Checkout)
	mux.HandleFunc("GET /order/order-list", h.OrderList)
	mux.HandleFunc("GET /order/get-orders", h.AllOrders)
	mux.HandleFunc("GET /order/order-details/{orderId}", h.OrderDetails)
	mux.HandleFunc("POST /order/update-delivery-status/{orderId}", h.UpdateDeliveryStatus)
}

func (h *Handler) CashOnDelivery(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var input CheckoutInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.service.CashOnDelivery(r.Context(), userID, input)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.OK(w, "Order placed successfully", o)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var input CheckoutInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, o, err := h.service.BeginOnlineCheckout(r.Context(), userID, input)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.OK(w, "Payment and order processed successfully", checkoutResponse{
		Session: sess,
		Order:   o,
	})
}

func (h *Handler) OrderList(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListUserOrders(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.OK(w, "order list", orders)
}

func (h *Handler) AllOrders(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}

	orders, err := h.service.ListAllOrders(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.OK(w, "All orders fetched successfully", orders)
}

func (h *Handler) OrderDetails(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}

	o, err := h.service.GetOrderDetail(r.Context(), r.PathValue("orderId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.OK(w, "order details", o)
}

// UpdateDeliveryStatus has no caller identity check: store tooling hits it
// directly (observed contract, see DESIGN.md).
func (h *Handler) UpdateDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DeliveryStatus string `json:"delivery_status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.service.UpdateDeliveryStatus(r.Context(), r.PathValue("orderId"), body.DeliveryStatus)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.OK(w,
		fmt.Sprintf("Order status updated to %s successfully", updated.DeliveryStatus),
		updated,
	)
}

type checkoutResponse struct {
	Session *payment.CheckoutSession `json:"session"`
	Order   *Order                   `json:"order"`
}

func callerID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "authentication required")
		return 0, false
	}
	return userID, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromCtx(r.Context()).Error("order request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	httpx.Fail(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrEmptyLineItems),
		errors.Is(err, ErrInvalidLineItem),
		errors.Is(err, ErrTotalMismatch),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, address.ErrAddressNotFound),
		errors.Is(err, user.ErrUserNotFound):
		return http.StatusBadRequest
	case errors.Is(err, ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrStatusConflict), errors.Is(err, ErrDuplicatePayment):
		return http.StatusConflict
	case errors.Is(err, payment.ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
