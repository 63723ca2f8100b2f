package adapter

import "context"

// OrderParams is what we ask the gateway to charge.
type OrderParams struct {
	Amount   int64 // major units; the client converts to the gateway's minor units
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Order is the gateway's view of a created order.
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Status   string
}

// PaymentGateway is the port for the external payment processor.
// Implementations do not retry; the caller's ctx carries the deadline.
type PaymentGateway interface {
	Name() string
	KeyID() string
	CreateOrder(ctx context.Context, params OrderParams) (Order, error)
	// VerifySignature checks the checkout callback signature for (orderID, paymentID).
	VerifySignature(orderID, paymentID, signature string) bool
}
