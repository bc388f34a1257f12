package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRoundTripper allows us to mock the HTTP response
type MockRoundTripper func(req *http.Request) *http.Response

func (f MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

type MockRoundTripperWithError func(req *http.Request) (*http.Response, error)

func (f MockRoundTripperWithError) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestGateway() *stripeGateway {
	return NewStripeGateway("sk_test_123", "whsec_test", "https://shop.example.com").(*stripeGateway)
}

func TestStripeGateway_CreateCheckoutSession(t *testing.T) {
	params := CreateSessionParams{
		CustomerEmail: "buyer@example.com",
		UserID:        "7",
		AddressID:     "addr-1",
		Items: []SessionItemParams{
			{
				ProductID:  "prod-1",
				Name:       "Test Product",
				Images:     []string{"https://img.example.com/p.png"},
				UnitAmount: 18000,
				Quantity:   2,
			},
		},
	}

	t.Run("Success", func(t *testing.T) {
		gw := newTestGateway()

		respBody := `{
			"id": "cs_test_1",
			"url": "https://checkout.stripe.com/pay/cs_test_1",
			"payment_intent": "pi_1",
			"payment_status": "unpaid",
			"metadata": {"userId": "7", "addressId": "addr-1"}
		}`

		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			assert.Equal(t, "POST", req.Method)
			assert.Equal(t, "https://api.stripe.com/v1/checkout/sessions", req.URL.String())
			assert.Equal(t, "Bearer sk_test_123", req.Header.Get("Authorization"))
			assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))

			body, _ := io.ReadAll(req.Body)
			form, err := url.ParseQuery(string(body))
			require.NoError(t, err)

			assert.Equal(t, "payment", form.Get("mode"))
			assert.Equal(t, "buyer@example.com", form.Get("customer_email"))
			assert.Equal(t, "7", form.Get("metadata[userId]"))
			assert.Equal(t, "addr-1", form.Get("metadata[addressId]"))
			assert.Equal(t, "https://shop.example.com/success", form.Get("success_url"))
			assert.Equal(t, "https://shop.example.com/cancel", form.Get("cancel_url"))
			assert.Equal(t, "inr", form.Get("line_items[0][price_data][currency]"))
			assert.Equal(t, "18000", form.Get("line_items[0][price_data][unit_amount]"))
			assert.Equal(t, "Test Product", form.Get("line_items[0][price_data][product_data][name]"))
			assert.Equal(t, "prod-1", form.Get("line_items[0][price_data][product_data][metadata][productId]"))
			assert.Equal(t, "2", form.Get("line_items[0][quantity]"))
			assert.Equal(t, "true", form.Get("line_items[0][adjustable_quantity][enabled]"))

			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewBufferString(respBody)),
				Header:     make(http.Header),
			}
		})

		sess, err := gw.CreateCheckoutSession(context.Background(), params)

		require.NoError(t, err)
		assert.Equal(t, "cs_test_1", sess.ID)
		assert.Equal(t, "https://checkout.stripe.com/pay/cs_test_1", sess.URL)
		assert.Equal(t, "7", sess.UserID)
		assert.Equal(t, "addr-1", sess.AddressID)
	})

	t.Run("APIError", func(t *testing.T) {
		gw := newTestGateway()
		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			return &http.Response{
				StatusCode: http.StatusBadRequest,
				Body:       io.NopCloser(bytes.NewBufferString(`{"error": {"message": "Invalid currency"}}`)),
				Header:     make(http.Header),
			}
		})

		_, err := gw.CreateCheckoutSession(context.Background(), params)

		assert.ErrorIs(t, err, ErrGateway)
		assert.Contains(t, err.Error(), "Invalid currency")
	})

	t.Run("NetworkError", func(t *testing.T) {
		gw := newTestGateway()
		gw.httpClient.Transport = MockRoundTripperWithError(func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})

		_, err := gw.CreateCheckoutSession(context.Background(), params)

		assert.ErrorIs(t, err, ErrGateway)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("InvalidJSONResponse", func(t *testing.T) {
		gw := newTestGateway()
		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewBufferString(`{invalid-json`)),
				Header:     make(http.Header),
			}
		})

		_, err := gw.CreateCheckoutSession(context.Background(), params)

		assert.ErrorIs(t, err, ErrGateway)
	})

	t.Run("MissingCredentials", func(t *testing.T) {
		gw := NewStripeGateway("", "", "https://shop.example.com").(*stripeGateway)

		_, err := gw.CreateCheckoutSession(context.Background(), params)

		assert.ErrorIs(t, err, ErrGateway)
		assert.Contains(t, err.Error(), "credentials")
	})
}

func TestStripeGateway_ListSessionLineItems(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		gw := newTestGateway()

		respBody := `{
			"data": [
				{
					"quantity": 2,
					"amount_total": 36000,
					"price": {
						"unit_amount": 18000,
						"product": {
							"name": "Test Product",
							"images": ["https://img.example.com/p.png"],
							"metadata": {"productId": "prod-1"}
						}
					}
				}
			]
		}`

		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			assert.Equal(t, "GET", req.Method)
			assert.Contains(t, req.URL.String(), "/v1/checkout/sessions/cs_test_1/line_items")
			assert.Contains(t, req.URL.RawQuery, "expand")
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewBufferString(respBody)),
				Header:     make(http.Header),
			}
		})

		items, err := gw.ListSessionLineItems(context.Background(), "cs_test_1")

		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "prod-1", items[0].ProductID)
		assert.Equal(t, "Test Product", items[0].Name)
		assert.Equal(t, 2, items[0].Quantity)
		assert.Equal(t, int64(18000), items[0].UnitAmount)
		assert.Equal(t, int64(36000), items[0].AmountTotal)
	})

	t.Run("APIError", func(t *testing.T) {
		gw := newTestGateway()
		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			return &http.Response{
				StatusCode: http.StatusNotFound,
				Body:       io.NopCloser(bytes.NewBufferString(`{"error": {"message": "No such checkout session"}}`)),
				Header:     make(http.Header),
			}
		})

		_, err := gw.ListSessionLineItems(context.Background(), "cs_missing")

		assert.ErrorIs(t, err, ErrGateway)
		assert.Contains(t, err.Error(), "No such checkout session")
	})

	t.Run("Empty", func(t *testing.T) {
		gw := newTestGateway()
		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewBufferString(`{"data": []}`)),
				Header:     make(http.Header),
			}
		})

		items, err := gw.ListSessionLineItems(context.Background(), "cs_test_1")

		assert.NoError(t, err)
		assert.Empty(t, items)
	})
}

func signPayload(secret string, ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestStripeGateway_VerifySignature(t *testing.T) {
	payload := []byte(`{"type": "checkout.session.completed"}`)
	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	newFrozenGateway := func() *stripeGateway {
		gw := newTestGateway()
		gw.now = func() time.Time { return frozen }
		return gw
	}

	t.Run("Valid", func(t *testing.T) {
		gw := newFrozenGateway()
		ts := frozen.Unix()
		header := fmt.Sprintf("t=%d,v1=%s", ts, signPayload("whsec_test", ts, payload))

		assert.NoError(t, gw.VerifySignature(payload, header))
	})

	t.Run("ValidWithinTolerance", func(t *testing.T) {
		gw := newFrozenGateway()
		ts := frozen.Add(-4 * time.Minute).Unix()
		header := fmt.Sprintf("t=%d,v1=%s", ts, signPayload("whsec_test", ts, payload))

		assert.NoError(t, gw.VerifySignature(payload, header))
	})

	t.Run("StaleTimestamp", func(t *testing.T) {
		gw := newFrozenGateway()
		ts := frozen.Add(-6 * time.Minute).Unix()
		header := fmt.Sprintf("t=%d,v1=%s", ts, signPayload("whsec_test", ts, payload))

		err := gw.VerifySignature(payload, header)
		assert.ErrorIs(t, err, ErrGateway)
		assert.Contains(t, err.Error(), "tolerance")
	})

	t.Run("WrongSecret", func(t *testing.T) {
		gw := newFrozenGateway()
		ts := frozen.Unix()
		header := fmt.Sprintf("t=%d,v1=%s", ts, signPayload("whsec_other", ts, payload))

		err := gw.VerifySignature(payload, header)
		assert.ErrorIs(t, err, ErrGateway)
		assert.Contains(t, err.Error(), "invalid webhook signature")
	})

	t.Run("TamperedPayload", func(t *testing.T) {
		gw := newFrozenGateway()
		ts := frozen.Unix()
		header := fmt.Sprintf("t=%d,v1=%s", ts, signPayload("whsec_test", ts, payload))

		err := gw.VerifySignature([]byte(`{"type": "something.else"}`), header)
		assert.Error(t, err)
	})

	t.Run("SecondSignatureMatches", func(t *testing.T) {
		// key-roll window: an old v1 plus the current one
		gw := newFrozenGateway()
		ts := frozen.Unix()
		header := fmt.Sprintf("t=%d,v1=%s,v1=%s", ts, "deadbeef", signPayload("whsec_test", ts, payload))

		assert.NoError(t, gw.VerifySignature(payload, header))
	})

	t.Run("MissingHeader", func(t *testing.T) {
		gw := newFrozenGateway()
		assert.Error(t, gw.VerifySignature(payload, ""))
	})

	t.Run("MalformedHeader", func(t *testing.T) {
		gw := newFrozenGateway()
		assert.Error(t, gw.VerifySignature(payload, "v1=abc"))
		assert.Error(t, gw.VerifySignature(payload, "t="+strconv.FormatInt(frozen.Unix(), 10)))
		assert.Error(t, gw.VerifySignature(payload, "t=not-a-number,v1=abc"))
	})

	t.Run("SkipInDev", func(t *testing.T) {
		gw := NewStripeGateway("sk_test_123", "", "https://shop.example.com").(*stripeGateway)
		assert.NoError(t, gw.VerifySignature(payload, ""))
	})
}
