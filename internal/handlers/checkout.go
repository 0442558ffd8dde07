package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/creativia/api/internal/platform/auth"
	"github.com/creativia/api/internal/platform/httpx"
	"github.com/creativia/api/internal/services"
)

// CheckoutHandlers exposes checkout session and reconciliation endpoints.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
	limiter  rateLimiter
}

// CheckoutOption customises checkout handler construction.
type CheckoutOption func(*CheckoutHandlers)

// WithCheckoutRateLimit throttles the public checkout endpoints per client IP.
func WithCheckoutRateLimit(limit int, window time.Duration) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.limiter = newSimpleRateLimiter(limit, window, nil)
	}
}

// NewCheckoutHandlers constructs checkout handlers.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout services.CheckoutService, opts ...CheckoutOption) *CheckoutHandlers {
	h := &CheckoutHandlers{
		authn:    authn,
		checkout: checkout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/create-checkout-session", h.createSession)
	r.Post("/payment-success", h.paymentSuccess)
	r.Get("/participations/{email}", h.participations)
	if h.authn != nil {
		r.With(h.authn.RequireFirebaseAuth()).Get("/payments/contest/{contestId}", h.contestPayments)
		return
	}
	r.Get("/payments/contest/{contestId}", h.contestPayments)
}

type createCheckoutSessionRequest struct {
	ContestID   string `json:"contestId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Banner      string `json:"banner"`
	Price       int64  `json:"price"`
	Participant struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"participant"`
}

type paymentSuccessRequest struct {
	SessionID string `json:"sessionId"`
}

type paymentResponse struct {
	ID               string `json:"id"`
	ContestID        string `json:"contestId"`
	TransactionID    string `json:"transactionId"`
	Participant      string `json:"participant"`
	ParticipantName  string `json:"participantName,omitempty"`
	Status           string `json:"status"`
	OwnerEmail       string `json:"ownerEmail,omitempty"`
	Title            string `json:"title,omitempty"`
	Category         string `json:"category,omitempty"`
	Image            string `json:"image,omitempty"`
	Price            int64  `json:"price"`
	ParticipantCount int64  `json:"participantCount,omitempty"`
	CreatedAt        string `json:"createdAt,omitempty"`
}

func toPaymentResponse(payment services.Payment) paymentResponse {
	return paymentResponse{
		ID:               payment.ID,
		ContestID:        payment.ContestID,
		TransactionID:    payment.TransactionID,
		Participant:      payment.Participant,
		ParticipantName:  payment.ParticipantName,
		Status:           payment.Status,
		OwnerEmail:       payment.Owner.Email,
		Title:            payment.Title,
		Category:         payment.Category,
		Image:            payment.Image,
		Price:            payment.Price,
		ParticipantCount: payment.ParticipantCount,
		CreatedAt:        formatTime(payment.CreatedAt),
	}
}

func (h *CheckoutHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}
	if !h.allow(r) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many checkout requests", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, defaultMaxBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req createCheckoutSessionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	redirect, err := h.checkout.CreateSession(ctx, services.CreateCheckoutSessionCommand{
		ContestID:        req.ContestID,
		Title:            req.Title,
		Description:      req.Description,
		Banner:           req.Banner,
		Price:            req.Price,
		ParticipantEmail: req.Participant.Email,
		ParticipantName:  req.Participant.Name,
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"url": redirect.RedirectURL})
}

func (h *CheckoutHandlers) paymentSuccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}
	if !h.allow(r) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many checkout requests", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, defaultMaxBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req paymentSuccessRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	result, err := h.checkout.ReconcileSession(ctx, req.SessionID)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}

	// Sessions that were not complete, or whose contest no longer exists,
	// acknowledge with an empty body. Replays return the stored settlement.
	if result.Payment == nil {
		writeJSONResponse(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{
		"transactionId": result.Payment.TransactionID,
		"orderId":       result.Payment.ID,
	})
}

func (h *CheckoutHandlers) contestPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	contestID := strings.TrimSpace(chi.URLParam(r, "contestId"))
	if contestID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "contest id is required", http.StatusBadRequest))
		return
	}

	payments, err := h.checkout.ListContestPayments(ctx, contestID)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, paymentsPayload(payments))
}

func (h *CheckoutHandlers) participations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	email := strings.TrimSpace(chi.URLParam(r, "email"))
	if email == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "participant email is required", http.StatusBadRequest))
		return
	}

	payments, err := h.checkout.ListParticipations(ctx, email)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, paymentsPayload(payments))
}

func paymentsPayload(payments []services.Payment) []paymentResponse {
	payload := make([]paymentResponse, 0, len(payments))
	for _, payment := range payments {
		payload = append(payload, toPaymentResponse(payment))
	}
	return payload
}

func (h *CheckoutHandlers) allow(r *http.Request) bool {
	if h.limiter == nil {
		return true
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return h.limiter.Allow(host)
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutGateway):
		httpx.WriteError(ctx, w, httpx.NewError("gateway_error", "payment gateway request failed", http.StatusBadGateway))
	case errors.Is(err, services.ErrCheckoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to process checkout request", http.StatusInternalServerError))
	}
}
