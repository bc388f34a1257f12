package payment

// SessionItemParams is one line of a hosted-checkout session request. The
// unit amount is in the currency's minor unit (x100 for two-decimal
// currencies), already discounted.
type SessionItemParams struct {
	ProductID  string
	Name       string
	Images     []string
	UnitAmount int64
	Quantity   int
}

// CreateSessionParams carries everything the gateway needs to host a
// checkout: line items, the payer's email, and a back-reference to the
// user/address so the webhook can rebuild the order context.
type CreateSessionParams struct {
	CustomerEmail string
	UserID        string
	AddressID     string
	Items         []SessionItemParams
}

// CheckoutSession is the provider's hosted-checkout transaction record.
type CheckoutSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentIntent string `json:"payment_intent"`
	PaymentStatus string `json:"payment_status"`
	UserID        string `json:"-"`
	AddressID     string `json:"-"`
}

// SessionLineItem is a purchased line re-derived from the gateway's session
// record after completion. AmountTotal is in minor units.
type SessionLineItem struct {
	ProductID   string
	Name        string
	Images      []string
	Quantity    int
	UnitAmount  int64
	AmountTotal int64
}
