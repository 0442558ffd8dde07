package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"
	"go.uber.org/zap"
)

type stubSessionAPI struct {
	newParams  *stripe.CheckoutSessionParams
	newResult  *stripe.CheckoutSession
	newErr     error
	getID      string
	getResult  *stripe.CheckoutSession
	getErr     error
}

func (s *stubSessionAPI) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.newParams = params
	return s.newResult, s.newErr
}

func (s *stubSessionAPI) Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.getID = id
	return s.getResult, s.getErr
}

func newTestStripeProvider(sessions stripeSessionAPI) *StripeProvider {
	return &StripeProvider{
		clients: stripeClients{sessions: sessions},
		logger:  zap.NewNop(),
		clock:   func() time.Time { return time.Unix(1700000000, 0).UTC() },
	}
}

func TestStripeProviderCreateCheckoutSession(t *testing.T) {
	stub := &stubSessionAPI{
		newResult: &stripe.CheckoutSession{
			ID:        "cs_test_1",
			URL:       "https://checkout.stripe.com/pay/cs_test_1",
			ExpiresAt: 1700001800,
		},
	}
	provider := newTestStripeProvider(stub)

	session, err := provider.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{
		Name:          "Poster Design Sprint",
		UnitAmount:    500,
		Currency:      "USD",
		Quantity:      1,
		CustomerEmail: "artist@example.com",
		SuccessURL:    "https://app.example.com/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     "https://app.example.com/payment-cancelled",
		Metadata: map[string]string{
			"contestId":   "c1",
			"participant": "artist@example.com",
		},
	})
	if err != nil {
		t.Fatalf("create checkout session: %v", err)
	}

	if session.ID != "cs_test_1" {
		t.Fatalf("unexpected session id %q", session.ID)
	}
	if session.RedirectURL != "https://checkout.stripe.com/pay/cs_test_1" {
		t.Fatalf("unexpected redirect url %q", session.RedirectURL)
	}

	params := stub.newParams
	if params == nil {
		t.Fatalf("expected session params to be captured")
	}
	if got := stripe.StringValue(params.Mode); got != string(stripe.CheckoutSessionModePayment) {
		t.Fatalf("unexpected mode %q", got)
	}
	if len(params.LineItems) != 1 {
		t.Fatalf("expected a single line item, got %d", len(params.LineItems))
	}
	item := params.LineItems[0]
	if got := stripe.Int64Value(item.PriceData.UnitAmount); got != 500 {
		t.Fatalf("unexpected unit amount %d", got)
	}
	if got := stripe.StringValue(item.PriceData.Currency); got != "usd" {
		t.Fatalf("expected lowercase currency, got %q", got)
	}
	if got := stripe.Int64Value(item.Quantity); got != 1 {
		t.Fatalf("unexpected quantity %d", got)
	}
	if got := stripe.StringValue(params.CustomerEmail); got != "artist@example.com" {
		t.Fatalf("unexpected customer email %q", got)
	}
	if params.Metadata["contestId"] != "c1" {
		t.Fatalf("expected contestId metadata, got %v", params.Metadata)
	}
	if params.PaymentIntentData == nil || params.PaymentIntentData.Metadata["contestId"] != "c1" {
		t.Fatalf("expected metadata copied onto payment intent")
	}
}

func TestStripeProviderCreateCheckoutSessionValidation(t *testing.T) {
	provider := newTestStripeProvider(&stubSessionAPI{})

	_, err := provider.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{
		Currency:   "usd",
		SuccessURL: "https://app.example.com/ok",
		CancelURL:  "https://app.example.com/no",
	})
	if err == nil {
		t.Fatalf("expected error for non-positive unit amount")
	}

	_, err = provider.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{
		UnitAmount: 500,
		Currency:   "usd",
	})
	if err == nil {
		t.Fatalf("expected error for missing redirect URLs")
	}
}

func TestStripeProviderCreateCheckoutSessionGatewayError(t *testing.T) {
	stub := &stubSessionAPI{newErr: errors.New("stripe unavailable")}
	provider := newTestStripeProvider(stub)

	_, err := provider.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{
		Name:       "Logo Contest",
		UnitAmount: 1000,
		Currency:   "usd",
		SuccessURL: "https://app.example.com/ok",
		CancelURL:  "https://app.example.com/no",
	})
	if err == nil {
		t.Fatalf("expected gateway error to propagate")
	}
}

func TestStripeProviderRetrieveSession(t *testing.T) {
	stub := &stubSessionAPI{
		getResult: &stripe.CheckoutSession{
			ID:            "cs_test_1",
			Status:        stripe.CheckoutSessionStatusComplete,
			PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
			AmountTotal:   500,
			Currency:      stripe.CurrencyUSD,
			PaymentIntent: &stripe.PaymentIntent{ID: "pi_1"},
			CustomerDetails: &stripe.CheckoutSessionCustomerDetails{
				Email: "artist@example.com",
			},
			Metadata: map[string]string{
				"contestId":       "c1",
				"participant":     "artist@example.com",
				"participantName": "Artist",
			},
		},
	}
	provider := newTestStripeProvider(stub)

	details, err := provider.RetrieveSession(context.Background(), "cs_test_1")
	if err != nil {
		t.Fatalf("retrieve session: %v", err)
	}

	if stub.getID != "cs_test_1" {
		t.Fatalf("expected lookup for cs_test_1, got %q", stub.getID)
	}
	if details.Status != SessionComplete {
		t.Fatalf("unexpected status %q", details.Status)
	}
	if details.AmountTotal != 500 {
		t.Fatalf("unexpected amount total %d", details.AmountTotal)
	}
	if details.PaymentIntentID != "pi_1" {
		t.Fatalf("unexpected payment intent id %q", details.PaymentIntentID)
	}
	if details.CustomerEmail != "artist@example.com" {
		t.Fatalf("unexpected customer email %q", details.CustomerEmail)
	}
	if details.Metadata["contestId"] != "c1" {
		t.Fatalf("expected contest metadata, got %v", details.Metadata)
	}
}

func TestStripeProviderRetrieveSessionRequiresID(t *testing.T) {
	provider := newTestStripeProvider(&stubSessionAPI{})
	if _, err := provider.RetrieveSession(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for blank session id")
	}
}
