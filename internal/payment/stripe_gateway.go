package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"swiftmart-be/internal/logger"

	"go.uber.org/zap"
)

const (
	stripeBaseURL      = "https://api.stripe.com"
	signatureTolerance = 5 * time.Minute
)

type stripeGateway struct {
	secretKey     string
	webhookSecret string
	httpClient    *http.Client
	baseURL       string
	successURL    string
	cancelURL     string

	// now is swapped in signature tests
	now func() time.Time
}

// ----------------- Constructor -----------------

func NewStripeGateway(secretKey, webhookSecret, frontendURL string) Gateway {
	if secretKey == "" {
		logger.L().Warn("Stripe secret key is empty")
	}

	return &stripeGateway{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL:    stripeBaseURL,
		successURL: frontendURL + "/success",
		cancelURL:  frontendURL + "/cancel",
		now:        time.Now,
	}
}

// ----------------- CreateCheckoutSession -----------------

func (g *stripeGateway) CreateCheckoutSession(ctx context.Context, params CreateSessionParams) (*CheckoutSession, error) {
	if g.secretKey == "" {
		return nil, fmt.Errorf("%w: gateway credentials not configured", ErrGateway)
	}

	log := logger.FromCtx(ctx).With(
		zap.String("user_id", params.UserID),
		zap.Int("item_count", len(params.Items)),
	)

	form := url.Values{}
	form.Set("submit_type", "pay")
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("customer_email", params.CustomerEmail)
	form.Set("metadata[userId]", params.UserID)
	form.Set("metadata[addressId]", params.AddressID)
	form.Set("success_url", g.successURL)
	form.Set("cancel_url", g.cancelURL)

	for i, item := range params.Items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", "inr")
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitAmount, 10))
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
		form.Set(prefix+"[price_data][product_data][metadata][productId]", item.ProductID)
		for j, img := range item.Images {
			form.Set(fmt.Sprintf("%s[price_data][product_data][images][%d]", prefix, j), img)
		}
		form.Set(prefix+"[quantity]", strconv.Itoa(item.Quantity))
		// let the payer adjust quantity on the hosted page, one minimum
		form.Set(prefix+"[adjustable_quantity][enabled]", "true")
		form.Set(prefix+"[adjustable_quantity][minimum]", "1")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		log.Error("Failed creating request", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	log.Info("Creating hosted checkout session")

	bodyBytes, err := g.do(req)
	if err != nil {
		log.Error("Checkout session creation failed", zap.Error(err))
		return nil, err
	}

	var res struct {
		ID            string `json:"id"`
		URL           string `json:"url"`
		PaymentIntent string `json:"payment_intent"`
		PaymentStatus string `json:"payment_status"`
		Metadata      struct {
			UserID    string `json:"userId"`
			AddressID string `json:"addressId"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(bodyBytes, &res); err != nil {
		log.Error("Failed decoding session response", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	log.Info("Checkout session created",
		zap.String("session_id", res.ID),
		zap.String("payment_status", res.PaymentStatus),
	)

	return &CheckoutSession{
		ID:            res.ID,
		URL:           res.URL,
		PaymentIntent: res.PaymentIntent,
		PaymentStatus: res.PaymentStatus,
		UserID:        res.Metadata.UserID,
		AddressID:     res.Metadata.AddressID,
	}, nil
}

// ----------------- ListSessionLineItems -----------------

func (g *stripeGateway) ListSessionLineItems(ctx context.Context, sessionID string) ([]SessionLineItem, error) {
	if g.secretKey == "" {
		return nil, fmt.Errorf("%w: gateway credentials not configured", ErrGateway)
	}

	log := logger.FromCtx(ctx).With(zap.String("session_id", sessionID))

	endpoint := fmt.Sprintf("%s/v1/checkout/sessions/%s/line_items?expand[]=data.price.product", g.baseURL, url.PathEscape(sessionID))
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)

	bodyBytes, err := g.do(req)
	if err != nil {
		log.Error("Failed to list session line items", zap.Error(err))
		return nil, err
	}

	var res struct {
		Data []struct {
			Quantity    int   `json:"quantity"`
			AmountTotal int64 `json:"amount_total"`
			Price       struct {
				UnitAmount int64 `json:"unit_amount"`
				Product    struct {
					Name     string   `json:"name"`
					Images   []string `json:"images"`
					Metadata struct {
						ProductID string `json:"productId"`
					} `json:"metadata"`
				} `json:"product"`
			} `json:"price"`
		} `json:"data"`
	}
	if err := json.Unmarshal(bodyBytes, &res); err != nil {
		log.Error("Failed decoding line items", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	items := make([]SessionLineItem, 0, len(res.Data))
	for _, d := range res.Data {
		items = append(items, SessionLineItem{
			ProductID:   d.Price.Product.Metadata.ProductID,
			Name:        d.Price.Product.Name,
			Images:      d.Price.Product.Images,
			Quantity:    d.Quantity,
			UnitAmount:  d.Price.UnitAmount,
			AmountTotal: d.AmountTotal,
		})
	}

	log.Info("Session line items fetched", zap.Int("count", len(items)))
	return items, nil
}

func (g *stripeGateway) do(req *http.Request) ([]byte, error) {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrGateway, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(bodyBytes, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrGateway, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrGateway, resp.StatusCode, string(bodyBytes))
	}

	return bodyBytes, nil
}

// ----------------- Verify Signature -----------------

// VerifySignature checks the provider's webhook signature header:
// "t=<unix>,v1=<hex hmac-sha256 of t.payload>". Stale timestamps outside the
// tolerance window are rejected to stop replays.
func (g *stripeGateway) VerifySignature(payload []byte, sigHeader string) error {
	if g.webhookSecret == "" {
		return nil // skip in dev
	}
	if sigHeader == "" {
		return fmt.Errorf("%w: missing signature header", ErrGateway)
	}

	var ts string
	var sigs []string
	for _, part := range strings.Split(sigHeader, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return fmt.Errorf("%w: malformed signature header", ErrGateway)
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed signature timestamp", ErrGateway)
	}
	if g.now().Sub(time.Unix(unix, 0)) > signatureTolerance {
		return fmt.Errorf("%w: signature timestamp outside tolerance", ErrGateway)
	}

	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range sigs {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return fmt.Errorf("%w: invalid webhook signature", ErrGateway)
}
