// File: internal/infra/adapters/payment/razorpay_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"track-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*RazorpayGateway)(nil)

// minorUnits is the multiplier from the price table to the gateway's
// smallest currency unit (paise for INR).
const minorUnits = 100

// RazorpayGateway implements adapter.PaymentGateway over the Orders REST API.
// It performs one HTTP call per CreateOrder and never retries.
type RazorpayGateway struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
}

func NewRazorpayGateway(keyID, keySecret, baseURL string) (*RazorpayGateway, error) {
	if keyID == "" || keySecret == "" {
		return nil, errors.New("razorpay key pair empty")
	}
	if baseURL == "" {
		baseURL = "https://api.razorpay.com"
	}
	return &RazorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		// The request ctx carries the real deadline; this is only a backstop.
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (g *RazorpayGateway) Name() string  { return "razorpay" }
func (g *RazorpayGateway) KeyID() string { return g.keyID }

type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type razorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Error    *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error,omitempty"`
}

// CreateOrder calls POST /v1/orders. Amounts cross the wire in minor units.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, params adapter.OrderParams) (adapter.Order, error) {
	body, err := json.Marshal(razorpayOrderRequest{
		Amount:   params.Amount * minorUnits,
		Currency: params.Currency,
		Receipt:  params.Receipt,
		Notes:    params.Notes,
	})
	if err != nil {
		return adapter.Order{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return adapter.Order{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return adapter.Order{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return adapter.Order{}, err
	}
	var out razorpayOrder
	if err := json.Unmarshal(raw, &out); err != nil {
		return adapter.Order{}, fmt.Errorf("razorpay: decode order: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Error != nil {
			return adapter.Order{}, fmt.Errorf("razorpay http %d: %s", resp.StatusCode, out.Error.Code)
		}
		return adapter.Order{}, fmt.Errorf("razorpay http %d", resp.StatusCode)
	}
	return adapter.Order{
		ID:       out.ID,
		Amount:   out.Amount / minorUnits,
		Currency: out.Currency,
		Status:   out.Status,
	}, nil
}

func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return verify(g.keySecret, orderID, paymentID, signature)
}
