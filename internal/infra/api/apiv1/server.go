// Package apiv1 is the JSON API for checkout, access and usage.
package apiv1

import (
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"track-billing/internal/usecase"
)

type Server struct {
	orders   usecase.OrderUseCase
	payments usecase.PaymentUseCase
	subs     usecase.SubscriptionUseCase
	access   usecase.AccessUseCase
	usage    usecase.UsageUseCase
	log      *zerolog.Logger
}

func NewServer(
	orders usecase.OrderUseCase,
	payments usecase.PaymentUseCase,
	subs usecase.SubscriptionUseCase,
	access usecase.AccessUseCase,
	usage usecase.UsageUseCase,
	logger *zerolog.Logger,
) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "apiv1").Logger()
	return &Server{orders: orders, payments: payments, subs: subs, access: access, usage: usage, log: &l}
}

// RegisterAPIV1 mounts the authenticated /api/v1 routes on r.
func RegisterAPIV1(r chi.Router, s *Server, auth *Authenticator) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Post("/orders", s.createOrder)
		r.Post("/payments/verify", s.verifyPayment)
		r.Post("/payments/{id}/link", s.linkPayment)

		r.Get("/tracks/{trackID}/access", s.trackAccess)
		r.Get("/tracks/{trackID}/modules/{index}", s.moduleAccess)

		r.Route("/subscriptions/{id}", func(r chi.Router) {
			r.Post("/usage/{unitID}", s.recordUsage)
			r.Get("/usage/{unitID}", s.remainingUsage)
			r.Post("/saves", s.recordTrackSaved)
		})
	})
}
