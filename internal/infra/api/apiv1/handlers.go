package apiv1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"track-billing/internal/domain"
	"track-billing/internal/domain/model"
	"track-billing/internal/usecase"
)

type createOrderRequest struct {
	Tier    string `json:"tier"`
	Purpose string `json:"purpose"`
	TrackID string `json:"track_id,omitempty"`
}

type orderResponse struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	KeyID     string `json:"key_id"`
	Recovered bool   `json:"recovered"`
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	tier, err := model.ParseTier(req.Tier)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	purpose := model.PurposeTrackAccess
	if req.Purpose != "" {
		if purpose, err = model.ParsePurpose(req.Purpose); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	res, err := s.orders.CreateOrder(r.Context(), usecase.OrderRequest{
		UserID:  UserID(r.Context()),
		Tier:    tier,
		Purpose: purpose,
		TrackID: model.StrPtr(req.TrackID),
	})
	if err != nil {
		s.failPayment(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Recovered {
		status = http.StatusOK
	}
	writeJSON(w, status, orderResponse{
		PaymentID: res.PaymentID,
		OrderID:   res.GatewayOrderID,
		Amount:    res.Amount,
		Currency:  res.Currency,
		KeyID:     res.KeyID,
		Recovered: res.Recovered,
	})
}

// verifyRequest uses the field names the checkout widget posts back.
type verifyRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
	// Internal payment id returned by createOrder; optional.
	InternalID string `json:"payment_id,omitempty"`
}

type paymentResponse struct {
	PaymentID   string     `json:"payment_id"`
	Status      string     `json:"status"`
	Tier        string     `json:"tier"`
	Amount      int64      `json:"amount"`
	TrackID     string     `json:"track_id,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (s *Server) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.payments.Verify(r.Context(), usecase.VerifyRequest{
		UserID:           UserID(r.Context()),
		GatewayOrderID:   req.OrderID,
		GatewayPaymentID: req.PaymentID,
		Signature:        req.Signature,
		PaymentID:        req.InternalID,
	})
	if err != nil {
		s.failPayment(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentResponse{
		PaymentID:   p.ID,
		Status:      string(p.Status),
		Tier:        string(p.Tier),
		Amount:      p.Amount,
		TrackID:     p.TrackOrEmpty(),
		CompletedAt: p.CompletedAt,
	})
}

type subscriptionResponse struct {
	ID           string    `json:"id"`
	TrackID      string    `json:"track_id,omitempty"`
	Tier         string    `json:"tier"`
	StartAt      time.Time `json:"start_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Active       bool      `json:"active"`
	DailyLimit   int       `json:"daily_limit"`
	MonthlyLimit int       `json:"monthly_limit"`
	TracksSaved  int       `json:"tracks_saved"`
}

func toSubscriptionResponse(sub *model.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:           sub.ID,
		TrackID:      sub.TrackOrEmpty(),
		Tier:         string(sub.Tier),
		StartAt:      sub.StartAt,
		ExpiresAt:    sub.ExpiresAt,
		Active:       sub.Active,
		DailyLimit:   sub.DailyChatLimit,
		MonthlyLimit: sub.MonthlyGenerationLimit,
		TracksSaved:  sub.TracksSaved,
	}
}

type linkRequest struct {
	TrackID string `json:"track_id"`
}

func (s *Server) linkPayment(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	sub, err := s.subs.Link(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), req.TrackID)
	if err != nil {
		s.failPayment(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

type moduleResponse struct {
	ID         string `json:"id"`
	Index      int    `json:"index"`
	Accessible bool   `json:"accessible"`
}

type accessResponse struct {
	TrackID        string           `json:"track_id"`
	SubscriptionID string           `json:"subscription_id,omitempty"`
	Tier           string           `json:"tier,omitempty"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
	Unlocked       int              `json:"unlocked"`
	Modules        []moduleResponse `json:"modules"`
}

func (s *Server) trackAccess(w http.ResponseWriter, r *http.Request) {
	report, err := s.access.TrackAccess(r.Context(), UserID(r.Context()), chi.URLParam(r, "trackID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := accessResponse{
		TrackID:        report.TrackID,
		SubscriptionID: report.SubscriptionID,
		Tier:           string(report.Tier),
		Unlocked:       report.Unlocked,
		Modules:        make([]moduleResponse, len(report.Modules)),
	}
	if !report.ExpiresAt.IsZero() {
		resp.ExpiresAt = &report.ExpiresAt
	}
	for i, m := range report.Modules {
		resp.Modules[i] = moduleResponse{ID: m.ID, Index: m.Index, Accessible: m.Accessible}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) moduleAccess(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.fail(w, r, domain.ErrInvalidArgument)
		return
	}
	ok, err := s.access.ModuleAccess(r.Context(), UserID(r.Context()), chi.URLParam(r, "trackID"), index)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"index": index, "accessible": ok})
}

// usageTarget authorizes the caller against the subscription in the path.
func (s *Server) usageTarget(w http.ResponseWriter, r *http.Request) (string, bool) {
	subID := chi.URLParam(r, "id")
	if err := s.usage.Authorize(r.Context(), UserID(r.Context()), subID); err != nil {
		s.fail(w, r, err)
		return "", false
	}
	return subID, true
}

func usageKind(r *http.Request) (model.UsageKind, error) {
	k := r.URL.Query().Get("kind")
	if k == "" {
		return model.UsageDaily, nil
	}
	return model.ParseUsageKind(k)
}

func (s *Server) recordUsage(w http.ResponseWriter, r *http.Request) {
	kind, err := usageKind(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	subID, ok := s.usageTarget(w, r)
	if !ok {
		return
	}
	n, err := s.usage.RecordUsage(r.Context(), subID, chi.URLParam(r, "unitID"), kind)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "count": n})
}

func (s *Server) remainingUsage(w http.ResponseWriter, r *http.Request) {
	kind, err := usageKind(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	subID, ok := s.usageTarget(w, r)
	if !ok {
		return
	}
	left, err := s.usage.Remaining(r.Context(), subID, chi.URLParam(r, "unitID"), kind)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "remaining": left})
}

func (s *Server) recordTrackSaved(w http.ResponseWriter, r *http.Request) {
	subID, ok := s.usageTarget(w, r)
	if !ok {
		return
	}
	n, err := s.usage.RecordTrackSaved(r.Context(), subID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks_saved": n})
}
