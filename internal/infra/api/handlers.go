package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"jobboard-premium/internal/domain"
	"jobboard-premium/internal/domain/model"
	"jobboard-premium/internal/infra/logging"
	"jobboard-premium/internal/infra/metrics"
)

type createIntentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type createCheckoutRequest struct {
	Amount         int64    `json:"amount"`
	Currency       string   `json:"currency"`
	PaymentMethods []string `json:"paymentMethods"`
}

type confirmRequest struct {
	ProcessorReference string `json:"processorReference"`
}

type historyResponse struct {
	Items []*model.Payment `json:"items"`
}

type errorBody struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Status  string `json:"status,omitempty"`
	TraceID string `json:"traceId,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a single JSON object and rejects unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", domain.ErrInvalidArgument)
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON object", domain.ErrInvalidArgument)
	}
	return nil
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindProcessor:
		return http.StatusBadGateway
	case domain.KindReconciliation:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a use case error to its HTTP status. Internal details of
// persistence and processor failures stay in the logs.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("unclassified error")
		writeJSON(w, http.StatusInternalServerError, internalError(r))
		return
	}

	code := statusFor(de.Kind)
	body := errorBody{Error: de.Message(), Kind: string(de.Kind), Status: de.Status}
	switch de.Kind {
	case domain.KindPersistence:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("request failed")
		body = internalError(r)
		body.Kind = string(de.Kind)
	case domain.KindProcessor:
		logging.With(r.Context(), s.log).Warn().Err(err).Msg("payment processor error")
		body.Error = "payment processor error"
	}
	writeJSON(w, code, body)
}

// internalError hides the cause and hands back the trace id to quote in a report.
func internalError(r *http.Request) errorBody {
	return errorBody{Error: "internal error", TraceID: logging.TraceIDFrom(r.Context())}
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: string(domain.KindValidation)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			logging.With(r.Context(), s.log).Warn().Err(err).Msg("health check failed")
			http.Error(w, "UNAVAILABLE", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	res, err := s.payUC.CreateIntent(r.Context(), logging.UserIDFrom(r.Context()), req.Amount, req.Currency)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req createCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	res, err := s.payUC.CreateCheckout(r.Context(), logging.UserIDFrom(r.Context()), req.Amount, req.Currency, req.PaymentMethods)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result, reason := "fail", ""
	defer func() {
		metrics.PaymentConfirmRequests.WithLabelValues(result, reason).Inc()
		metrics.PaymentConfirmDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}()

	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		reason = "bad_json"
		s.badRequest(w, err)
		return
	}
	if strings.TrimSpace(req.ProcessorReference) == "" {
		reason = "missing_reference"
		s.badRequest(w, fmt.Errorf("%w: processorReference is required", domain.ErrInvalidArgument))
		return
	}

	res, err := s.payUC.Confirm(r.Context(), logging.UserIDFrom(r.Context()), req.ProcessorReference)
	if err != nil {
		reason = confirmReason(domain.KindOf(err))
		s.writeError(w, r, err)
		return
	}
	result = "ok"
	writeJSON(w, http.StatusOK, res)
}

func confirmReason(kind domain.ErrorKind) string {
	switch kind {
	case domain.KindNotFound:
		return "not_found"
	case domain.KindReconciliation:
		return "mismatch"
	case domain.KindProcessor:
		return "processor"
	case domain.KindPersistence:
		return "persistence"
	case domain.KindValidation:
		return "invalid"
	default:
		return "unknown"
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	p, err := s.payUC.Cancel(r.Context(), logging.UserIDFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.badRequest(w, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrInvalidArgument))
			return
		}
		limit = n
	}
	items, err := s.payUC.History(r.Context(), logging.UserIDFrom(r.Context()), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Items: items})
}

func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request) {
	st, err := s.subUC.Status(r.Context(), logging.UserIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleStripeWebhook acknowledges with 200, rejects bad payloads with 400 and
// returns 500 on processing failures so Stripe redelivers.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		logging.With(r.Context(), s.log).Warn().Err(err).Msg("webhook body unreadable")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unreadable body"})
		return
	}

	if err := s.hookUC.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		if domain.KindOf(err) == domain.KindProcessor {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid webhook", Kind: string(domain.KindProcessor)})
			return
		}
		body := internalError(r)
		body.Error = "processing failed"
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
