package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
	"go.uber.org/zap"

	"github.com/creativia/api/internal/platform/httpx"
	"github.com/creativia/api/internal/services"
)

const maxWebhookPayload = 64 * 1024

// StripeWebhookHandlers receives asynchronous gateway notifications and feeds
// completed checkout sessions into reconciliation.
type StripeWebhookHandlers struct {
	checkout      services.CheckoutService
	signingSecret string
	logger        *zap.Logger
}

// NewStripeWebhookHandlers constructs webhook handlers. The signing secret is
// required; unsigned payloads are rejected.
func NewStripeWebhookHandlers(checkout services.CheckoutService, signingSecret string, logger *zap.Logger) *StripeWebhookHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StripeWebhookHandlers{
		checkout:      checkout,
		signingSecret: signingSecret,
		logger:        logger,
	}
}

// Routes registers webhook endpoints under the provided router.
func (h *StripeWebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.handleStripeEvent)
}

func (h *StripeWebhookHandlers) handleStripeEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil || h.signingSecret == "" {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "webhook processing unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxWebhookPayload)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	event, err := webhook.ConstructEvent(body, r.Header.Get("Stripe-Signature"), h.signingSecret)
	if err != nil {
		h.logger.Warn("stripe webhook rejected", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
		return
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		writeJSONResponse(w, http.StatusOK, map[string]any{})
		return
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payload", "malformed checkout session payload", http.StatusBadRequest))
		return
	}

	result, err := h.checkout.ReconcileSession(ctx, session.ID)
	if err != nil {
		h.logger.Error("webhook reconciliation failed",
			zap.String("session_id", session.ID),
			zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("reconcile_failed", "failed to reconcile checkout session", http.StatusInternalServerError))
		return
	}
	if result.Recorded {
		h.logger.Info("webhook settlement recorded",
			zap.String("session_id", session.ID),
			zap.String("payment_id", result.Payment.ID))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{})
}
