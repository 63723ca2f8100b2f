package model

import (
	"strings"
	"time"

	"track-billing/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // order created at gateway; awaiting callback
	PaymentStatusCompleted PaymentStatus = "completed" // signature verified
	PaymentStatusFailed    PaymentStatus = "failed"    // signature mismatch; terminal
)

// Purpose is what the buyer is paying for.
type Purpose string

const (
	PurposeTrackAccess      Purpose = "track_access"       // access to a track; track may be chosen later
	PurposeTrackContentSave Purpose = "track_content_save" // saving content under an existing track
)

// ParsePurpose validates a client supplied purpose label.
func ParsePurpose(s string) (Purpose, error) {
	switch Purpose(strings.ToLower(strings.TrimSpace(s))) {
	case PurposeTrackAccess:
		return PurposeTrackAccess, nil
	case PurposeTrackContentSave:
		return PurposeTrackContentSave, nil
	}
	return "", domain.ErrInvalidArgument
}

// RequiresTrack reports whether a purchase with this purpose must name a track.
func (p Purpose) RequiresTrack() bool { return p == PurposeTrackContentSave }

// Payment is one purchase attempt against the gateway.
type Payment struct {
	ID               string // UUID
	UserID           string
	GatewayOrderID   string // unique per payment
	GatewayPaymentID string // set on completion
	GatewaySignature string // set on completion
	Receipt          string // our reference sent to the gateway (ULID)
	Amount           int64  // authoritative paid amount
	Currency         string
	Tier             Tier // cached; always re-derived from Amount
	Purpose          Purpose
	TrackID          *string // nil until linked to a track
	Status           PaymentStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
	SubscriptionID   string     // window this payment funded
	AppliedAt        *time.Time // nil while a completed payment still needs resolving
}

// NewPendingPayment builds the record persisted right after the gateway allocated an order.
func NewPendingPayment(id, userID, orderID, receipt string, amount int64, currency string, purpose Purpose, trackID *string) (*Payment, error) {
	if id == "" || userID == "" || orderID == "" || amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Payment{
		ID:             id,
		UserID:         userID,
		GatewayOrderID: orderID,
		Receipt:        receipt,
		Amount:         amount,
		Currency:       currency,
		Tier:           TierForAmount(amount),
		Purpose:        purpose,
		TrackID:        cloneStr(trackID),
		Status:         PaymentStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (p *Payment) IsCompleted() bool { return p.Status == PaymentStatusCompleted }
func (p *Payment) IsFailed() bool    { return p.Status == PaymentStatusFailed }
func (p *Payment) IsApplied() bool   { return p.AppliedAt != nil }

// HasTrack reports whether the payment is scoped to a track.
func (p *Payment) HasTrack() bool { return p.TrackID != nil && *p.TrackID != "" }

// TrackOrEmpty returns the track id or "".
func (p *Payment) TrackOrEmpty() string {
	if p.TrackID == nil {
		return ""
	}
	return *p.TrackID
}

func cloneStr(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

// StrPtr returns a pointer to s, or nil for the empty string.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
