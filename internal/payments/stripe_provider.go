package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"go.uber.org/zap"

	"github.com/creativia/api/internal/platform/textutil"
)

// stripeSessionAPI narrows the stripe-go checkout session client for testing.
type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeClients struct {
	sessions stripeSessionAPI
}

// StripeProviderConfig carries the dependencies for the Stripe adapter.
type StripeProviderConfig struct {
	APIKey string
	Logger *zap.Logger
	Clock  func() time.Time
}

// StripeProvider implements Provider backed by Stripe Checkout.
type StripeProvider struct {
	clients stripeClients
	logger  *zap.Logger
	clock   func() time.Time
}

// NewStripeProvider constructs the Stripe adapter.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("payments: stripe api key is required")
	}
	sc := &client.API{}
	sc.Init(cfg.APIKey, nil)

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &StripeProvider{
		clients: stripeClients{
			sessions: sc.CheckoutSessions,
		},
		logger: logger,
		clock:  clock,
	}, nil
}

// CreateCheckoutSession opens a hosted checkout session for a single line item.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	if p == nil {
		return CheckoutSession{}, errors.New("payments: stripe provider is nil")
	}
	if req.UnitAmount <= 0 {
		return CheckoutSession{}, errors.New("payments: unit amount must be positive")
	}
	if strings.TrimSpace(req.Currency) == "" {
		return CheckoutSession{}, errors.New("payments: currency is required")
	}
	if strings.TrimSpace(req.SuccessURL) == "" || strings.TrimSpace(req.CancelURL) == "" {
		return CheckoutSession{}, errors.New("payments: success and cancel URLs are required")
	}

	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.Name),
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		productData.Description = stripe.String(desc)
	}
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(strings.ToLower(req.Currency)),
					UnitAmount:  stripe.Int64(req.UnitAmount),
					ProductData: productData,
				},
				Quantity: stripe.Int64(quantity),
			},
		},
	}
	params.Context = ctx
	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if metadata := textutil.NormalizeStringMap(req.Metadata); len(metadata) > 0 {
		params.Metadata = metadata
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		}
	}

	session, err := p.clients.sessions.New(params)
	if err != nil {
		p.logger.Error("payments.stripe.session.create_failed", zap.Error(err))
		return CheckoutSession{}, err
	}

	expiresAt := time.Unix(session.ExpiresAt, 0).UTC()
	if session.ExpiresAt == 0 {
		expiresAt = p.clock().Add(30 * time.Minute)
	}
	p.logger.Info("payments.stripe.session.created",
		zap.String("session_id", session.ID),
		zap.Int64("unit_amount", req.UnitAmount),
		zap.String("currency", strings.ToLower(req.Currency)),
	)
	return CheckoutSession{
		ID:          session.ID,
		Provider:    "stripe",
		RedirectURL: session.URL,
		ExpiresAt:   expiresAt,
	}, nil
}

// RetrieveSession fetches the authoritative session state from Stripe.
func (p *StripeProvider) RetrieveSession(ctx context.Context, sessionID string) (SessionDetails, error) {
	if p == nil {
		return SessionDetails{}, errors.New("payments: stripe provider is nil")
	}
	if strings.TrimSpace(sessionID) == "" {
		return SessionDetails{}, errors.New("payments: session id is required")
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	session, err := p.clients.sessions.Get(sessionID, params)
	if err != nil {
		p.logger.Error("payments.stripe.session.lookup_failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return SessionDetails{}, err
	}

	details := SessionDetails{
		ID:            session.ID,
		Provider:      "stripe",
		Status:        SessionStatus(session.Status),
		PaymentStatus: string(session.PaymentStatus),
		AmountTotal:   session.AmountTotal,
		Currency:      string(session.Currency),
		CustomerEmail: session.CustomerEmail,
	}
	if details.CustomerEmail == "" && session.CustomerDetails != nil {
		details.CustomerEmail = session.CustomerDetails.Email
	}
	if session.PaymentIntent != nil {
		details.PaymentIntentID = session.PaymentIntent.ID
	}
	if len(session.Metadata) > 0 {
		details.Metadata = make(map[string]string, len(session.Metadata))
		for k, v := range session.Metadata {
			details.Metadata[k] = v
		}
	}
	return details, nil
}
