package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"swiftmart-be/internal/httpx"
	"swiftmart-be/internal/order"
	"swiftmart-be/internal/payment"
)

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CashOnDelivery(ctx context.Context, userID uint, input order.CheckoutInput) (*order.Order, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) BeginOnlineCheckout(ctx context.Context, userID uint, input order.CheckoutInput) (*payment.CheckoutSession, *order.Order, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*payment.CheckoutSession), args.Get(1).(*order.Order), args.Error(2)
}

func (m *MockOrderService) HandleCheckoutCompleted(ctx context.Context, evt order.CompletedSession) (*order.Order, error) {
	args := m.Called(ctx, evt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) ListUserOrders(ctx context.Context, userID uint) ([]*order.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockOrderService) ListAllOrders(ctx context.Context) ([]*order.Order, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockOrderService) GetOrderDetail(ctx context.Context, orderID string) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) UpdateDeliveryStatus(ctx context.Context, orderID, rawStatus string) (*order.StatusUpdate, error) {
	args := m.Called(ctx, orderID, rawStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.StatusUpdate), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, params payment.CreateSessionParams) (*payment.CheckoutSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CheckoutSession), args.Error(1)
}

func (m *MockGateway) ListSessionLineItems(ctx context.Context, sessionID string) ([]payment.SessionLineItem, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]payment.SessionLineItem), args.Error(1)
}

func (m *MockGateway) VerifySignature(payload []byte, sigHeader string) error {
	args := m.Called(payload, sigHeader)
	return args.Error(0)
}

func post(t *testing.T, svc order.Service, gw payment.Gateway, body string, sig string) *httptest.ResponseRecorder {
	t.Helper()

	mux := http.NewServeMux()
	NewHandler(svc, gw).Register(mux)

	req := httptest.NewRequest("POST", "/order/webhook", bytes.NewBufferString(body))
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_Handle(t *testing.T) {
	completedBody := `{
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test_1",
				"payment_intent": "pi_1",
				"payment_status": "paid",
				"metadata": {"userId": "7", "addressId": "addr-1"}
			}
		}
	}`

	t.Run("CheckoutCompleted", func(t *testing.T) {
		svc := new(MockOrderService)
		gw := new(MockGateway)

		gw.On("VerifySignature", mock.Anything, "t=1,v1=sig").Return(nil)
		svc.On("HandleCheckoutCompleted", mock.Anything, order.CompletedSession{
			SessionID:     "cs_test_1",
			PaymentIntent: "pi_1",
			PaymentStatus: "paid",
			UserID:        "7",
			AddressID:     "addr-1",
		}).Return(&order.Order{OrderID: "ORD-1"}, nil)

		rec := post(t, svc, gw, completedBody, "t=1,v1=sig")

		assert.Equal(t, http.StatusOK, rec.Code)
		var ack map[string]bool
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
		assert.True(t, ack["received"])
		svc.AssertExpectations(t)
	})

	t.Run("InvalidSignature", func(t *testing.T) {
		svc := new(MockOrderService)
		gw := new(MockGateway)

		gw.On("VerifySignature", mock.Anything, mock.Anything).Return(payment.ErrGateway)

		rec := post(t, svc, gw, completedBody, "t=1,v1=bad")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		// failures use the same JSON envelope as every other endpoint
		var env httpx.Envelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		assert.True(t, env.Error)
		assert.False(t, env.Success)
		assert.Equal(t, "invalid signature", env.Message)
		svc.AssertNotCalled(t, "HandleCheckoutCompleted", mock.Anything, mock.Anything)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		svc := new(MockOrderService)
		gw := new(MockGateway)

		gw.On("VerifySignature", mock.Anything, mock.Anything).Return(nil)

		rec := post(t, svc, gw, `{not-json`, "t=1,v1=sig")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("IgnoredEventStillAcked", func(t *testing.T) {
		svc := new(MockOrderService)
		gw := new(MockGateway)

		gw.On("VerifySignature", mock.Anything, mock.Anything).Return(nil)

		rec := post(t, svc, gw, `{"type": "payment_intent.created", "data": {"object": {}}}`, "t=1,v1=sig")

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertNotCalled(t, "HandleCheckoutCompleted", mock.Anything, mock.Anything)
	})

	t.Run("ProcessingError", func(t *testing.T) {
		svc := new(MockOrderService)
		gw := new(MockGateway)

		gw.On("VerifySignature", mock.Anything, mock.Anything).Return(nil)
		svc.On("HandleCheckoutCompleted", mock.Anything, mock.Anything).
			Return(nil, errors.New("db down"))

		rec := post(t, svc, gw, completedBody, "t=1,v1=sig")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var env httpx.Envelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		assert.True(t, env.Error)
		assert.False(t, env.Success)
	})

	t.Run("DuplicateDeliveryIsAcked", func(t *testing.T) {
		// at-least-once delivery: the second notification resolves to the
		// already-recorded order and still acks 200
		svc := new(MockOrderService)
		gw := new(MockGateway)

		gw.On("VerifySignature", mock.Anything, mock.Anything).Return(nil)
		svc.On("HandleCheckoutCompleted", mock.Anything, mock.Anything).
			Return(&order.Order{OrderID: "ORD-existing", PaymentID: "cs_test_1"}, nil)

		rec := post(t, svc, gw, completedBody, "t=1,v1=sig")

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
