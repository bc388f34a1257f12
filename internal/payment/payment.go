package payment

import (
	"context"
	"errors"
)

// ErrGateway marks any failure coming from the external payment provider:
// missing credentials, transport errors, or non-2xx API responses.
var ErrGateway = errors.New("payment gateway error")

// Gateway is the hosted-checkout provider the order flow depends on. It is
// injected into the order service so tests can substitute a fake.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params CreateSessionParams) (*CheckoutSession, error)
	ListSessionLineItems(ctx context.Context, sessionID string) ([]SessionLineItem, error)
	VerifySignature(payload []byte, sigHeader string) error
}
