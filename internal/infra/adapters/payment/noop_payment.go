package payment

import (
	"context"
	"fmt"
	"sync"

	"track-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway allocates order ids in memory and signs with a local
// secret. Used in dev mode, the demo and tests.
type NoopPaymentGateway struct {
	mu     sync.Mutex
	seq    int64
	secret string
	orders map[string]adapter.Order

	// Fail, when set, makes CreateOrder return it.
	Fail error
	// EmptyID makes CreateOrder succeed with an empty order id.
	EmptyID bool
}

func NewNoopPaymentGateway(secret string) *NoopPaymentGateway {
	return &NoopPaymentGateway{
		secret: secret,
		orders: make(map[string]adapter.Order),
	}
}

func (g *NoopPaymentGateway) Name() string  { return "noop" }
func (g *NoopPaymentGateway) KeyID() string { return "noop_key" }

func (g *NoopPaymentGateway) CreateOrder(ctx context.Context, params adapter.OrderParams) (adapter.Order, error) {
	if err := ctx.Err(); err != nil {
		return adapter.Order{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail != nil {
		return adapter.Order{}, g.Fail
	}
	if g.EmptyID {
		return adapter.Order{Amount: params.Amount, Currency: params.Currency}, nil
	}
	g.seq++
	o := adapter.Order{
		ID:       fmt.Sprintf("order_noop%d", g.seq),
		Amount:   params.Amount,
		Currency: params.Currency,
		Status:   "created",
	}
	g.orders[o.ID] = o
	return o, nil
}

func (g *NoopPaymentGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return verify(g.secret, orderID, paymentID, signature)
}

// Sign produces the signature a checkout would post back for orderID.
func (g *NoopPaymentGateway) Sign(orderID, paymentID string) string {
	return Sign(g.secret, orderID, paymentID)
}
