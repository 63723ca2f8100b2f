package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"

	"track-billing/internal/domain"
	"track-billing/internal/infra/logging"
)

// paymentFailed is the only text a client sees for any payment problem.
const paymentFailed = "payment could not be completed, please retry"

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrInvalidArgument
	}
	return nil
}

// statusFor maps the error taxonomy onto HTTP.
func statusFor(err error) (int, errorBody) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, errorBody{Error: "invalid request", Code: "invalid_argument"}
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, errorBody{Error: "too many requests", Code: "rate_limited"}
	case errors.Is(err, domain.ErrUsageLimitReached):
		return http.StatusTooManyRequests, errorBody{Error: "usage limit reached", Code: "usage_limit"}
	case errors.Is(err, domain.ErrSignatureMismatch), errors.Is(err, domain.ErrAlreadyFailed):
		return http.StatusPaymentRequired, errorBody{Error: paymentFailed, Code: "payment_failed"}
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusBadGateway, errorBody{Error: paymentFailed, Code: "gateway_unavailable"}
	case errors.Is(err, domain.ErrRetryable):
		return http.StatusConflict, errorBody{Error: paymentFailed, Code: "retry"}
	case errors.Is(err, domain.ErrPaymentNotFound), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "not found", Code: "not_found"}
	case errors.Is(err, domain.ErrAlreadyLinked), errors.Is(err, domain.ErrCrossTrackConflict):
		return http.StatusConflict, errorBody{Error: "already linked", Code: "conflict"}
	case errors.Is(err, domain.ErrNoActiveSubscription):
		return http.StatusForbidden, errorBody{Error: "no active subscription", Code: "no_subscription"}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal error"}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	s.respondErr(w, r, status, body, err)
}

// failPayment is fail for the order, verify and link routes. Errors outside
// the taxonomy still answer with the generic payment text.
func (s *Server) failPayment(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		body = errorBody{Error: paymentFailed, Code: "payment_failed"}
	}
	s.respondErr(w, r, status, body, err)
}

func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, status int, body errorBody, err error) {
	if status >= http.StatusInternalServerError {
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, body)
}
