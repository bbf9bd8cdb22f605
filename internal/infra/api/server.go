package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"jobboard-premium/internal/config"
	"jobboard-premium/internal/usecase"
)

const (
	routeIntent   = "payments.intent"
	routeCheckout = "payments.checkout"

	// Stripe caps event payloads well below this.
	maxWebhookBody = 64 << 10
	maxJSONBody    = 16 << 10
)

// HealthFunc reports whether a dependency is reachable.
type HealthFunc func(ctx context.Context) error

// Server exposes the payment use cases over HTTP.
type Server struct {
	payUC   usecase.PaymentUseCase
	subUC   usecase.SubscriptionUseCase
	hookUC  usecase.WebhookUseCase
	auth    *Authenticator
	limiter Limiter
	cfg     *config.Config
	health  HealthFunc
	log     *zerolog.Logger
}

func NewServer(
	payUC usecase.PaymentUseCase,
	subUC usecase.SubscriptionUseCase,
	hookUC usecase.WebhookUseCase,
	auth *Authenticator,
	limiter Limiter,
	cfg *config.Config,
	health HealthFunc,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "HTTP").Logger()
	return &Server{
		payUC:   payUC,
		subUC:   subUC,
		hookUC:  hookUC,
		auth:    auth,
		limiter: limiter,
		cfg:     cfg,
		health:  health,
		log:     &l,
	}
}

// Router builds the full handler tree including the middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/webhooks/stripe", s.handleStripeWebhook)

	rl := s.cfg.RateLimit
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.RequireUser(s.log))

		r.With(RateLimit(s.limiter, routeIntent, rl.InitiationsPerWindow, rl.Window, s.log)).
			Post("/payments/intents", s.handleCreateIntent)
		r.With(RateLimit(s.limiter, routeCheckout, rl.InitiationsPerWindow, rl.Window, s.log)).
			Post("/payments/checkout-sessions", s.handleCreateCheckout)
		r.Post("/payments/confirm", s.handleConfirm)
		r.Post("/payments/{id}/cancel", s.handleCancel)
		r.Get("/payments", s.handleHistory)
		r.Get("/subscription", s.handleSubscription)
	})

	timeout := s.cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return Chain(r,
		Recover(s.log),
		Tracing(s.cfg.Server.ServiceName),
		TraceID(),
		RequestLog(s.log),
		Timeout(timeout),
	)
}
