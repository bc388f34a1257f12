// Package webhook receives the payment gateway's asynchronous completion
// callbacks and reconciles them with the order flow.
package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"swiftmart-be/internal/httpx"
	"swiftmart-be/internal/logger"
	"swiftmart-be/internal/order"
	"swiftmart-be/internal/payment"
)

const eventCheckoutCompleted = "checkout.session.completed"

// Event is the envelope the gateway posts. Only the session object fields
// the order flow needs are decoded.
type Event struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string            `json:"id"`
			PaymentIntent string            `json:"payment_intent"`
			PaymentStatus string            `json:"payment_status"`
			Metadata      map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

type Handler struct {
	orders  order.Service
	gateway payment.Gateway
}

func NewHandler(orders order.Service, gateway payment.Gateway) *Handler {
	return &Handler{
		orders:  orders,
		gateway: gateway,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /order/webhook", h.Handle)
}

func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	log := logger.FromCtx(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "failed to read body")
		return
	}
	defer r.Body.Close()

	if err := h.gateway.VerifySignature(body, r.Header.Get("Stripe-Signature")); err != nil {
		log.Warn("webhook signature rejected", zap.Error(err))
		httpx.Fail(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	switch evt.Type {
	case eventCheckoutCompleted:
		_, err = h.orders.HandleCheckoutCompleted(r.Context(), order.CompletedSession{
			SessionID:     evt.Data.Object.ID,
			PaymentIntent: evt.Data.Object.PaymentIntent,
			PaymentStatus: evt.Data.Object.PaymentStatus,
			UserID:        evt.Data.Object.Metadata["userId"],
			AddressID:     evt.Data.Object.Metadata["addressId"],
		})
		if err != nil {
			log.Error("failed to process checkout completion",
				zap.String("session_id", evt.Data.Object.ID),
				zap.Error(err),
			)
			httpx.Fail(w, http.StatusInternalServerError, "failed to process event")
			return
		}
	default:
		log.Info("ignoring webhook event", zap.String("type", evt.Type))
	}

	// acknowledge receipt so the gateway stops retrying
	httpx.JSON(w, http.StatusOK, map[string]bool{"received": true})
}
