package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/creativia/api/internal/services"
)

type stubCheckoutService struct {
	createFunc         func(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutRedirect, error)
	reconcileFunc      func(ctx context.Context, sessionID string) (services.ReconcileResult, error)
	contestFunc        func(ctx context.Context, contestID string) ([]services.Payment, error)
	participationsFunc func(ctx context.Context, email string) ([]services.Payment, error)
}

func (s *stubCheckoutService) CreateSession(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutRedirect, error) {
	if s.createFunc == nil {
		return services.CheckoutRedirect{}, errors.New("unexpected CreateSession call")
	}
	return s.createFunc(ctx, cmd)
}

func (s *stubCheckoutService) ReconcileSession(ctx context.Context, sessionID string) (services.ReconcileResult, error) {
	if s.reconcileFunc == nil {
		return services.ReconcileResult{}, errors.New("unexpected ReconcileSession call")
	}
	return s.reconcileFunc(ctx, sessionID)
}

func (s *stubCheckoutService) ListContestPayments(ctx context.Context, contestID string) ([]services.Payment, error) {
	if s.contestFunc == nil {
		return nil, errors.New("unexpected ListContestPayments call")
	}
	return s.contestFunc(ctx, contestID)
}

func (s *stubCheckoutService) ListParticipations(ctx context.Context, email string) ([]services.Payment, error) {
	if s.participationsFunc == nil {
		return nil, errors.New("unexpected ListParticipations call")
	}
	return s.participationsFunc(ctx, email)
}

func newCheckoutRouter(service services.CheckoutService, opts ...CheckoutOption) chi.Router {
	router := chi.NewRouter()
	NewCheckoutHandlers(nil, service, opts...).Routes(router)
	return router
}

func TestCheckoutHandlersCreateSession(t *testing.T) {
	service := &stubCheckoutService{
		createFunc: func(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutRedirect, error) {
			if cmd.ContestID != "c1" || cmd.Price != 50 {
				t.Fatalf("unexpected command %#v", cmd)
			}
			if cmd.ParticipantEmail != "maya@example.com" || cmd.ParticipantName != "Maya" {
				t.Fatalf("unexpected participant %#v", cmd)
			}
			return services.CheckoutRedirect{SessionID: "cs_1", RedirectURL: "https://pay.example.com/cs_1"}, nil
		},
	}

	router := newCheckoutRouter(service)
	body := strings.NewReader(`{"contestId":"c1","title":"Poster Jam","price":50,"participant":{"email":"maya@example.com","name":"Maya"}}`)
	req := httptest.NewRequest(http.MethodPost, "/create-checkout-session", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["url"] != "https://pay.example.com/cs_1" {
		t.Fatalf("expected redirect url, got %#v", resp)
	}
}

func TestCheckoutHandlersCreateSessionInvalidInput(t *testing.T) {
	service := &stubCheckoutService{
		createFunc: func(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutRedirect, error) {
			return services.CheckoutRedirect{}, fmt.Errorf("%w: price must be positive", services.ErrCheckoutInvalidInput)
		},
	}

	router := newCheckoutRouter(service)
	req := httptest.NewRequest(http.MethodPost, "/create-checkout-session", strings.NewReader(`{"contestId":"c1","price":0}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestCheckoutHandlersCreateSessionGatewayFailure(t *testing.T) {
	service := &stubCheckoutService{
		createFunc: func(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutRedirect, error) {
			return services.CheckoutRedirect{}, errors.Join(services.ErrCheckoutGateway, errors.New("stripe: boom"))
		},
	}

	router := newCheckoutRouter(service)
	body := strings.NewReader(`{"contestId":"c1","price":50,"participant":{"email":"maya@example.com"}}`)
	req := httptest.NewRequest(http.MethodPost, "/create-checkout-session", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rr.Code)
	}
}

func TestCheckoutHandlersRateLimit(t *testing.T) {
	service := &stubCheckoutService{
		createFunc: func(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutRedirect, error) {
			return services.CheckoutRedirect{SessionID: "cs_1", RedirectURL: "https://pay.example.com/cs_1"}, nil
		},
	}

	router := newCheckoutRouter(service, WithCheckoutRateLimit(2, time.Minute))
	payload := `{"contestId":"c1","price":50,"participant":{"email":"maya@example.com"}}`

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/create-checkout-session", strings.NewReader(payload))
		req.RemoteAddr = "203.0.113.7:4123"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i+1, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/create-checkout-session", strings.NewReader(payload))
	req.RemoteAddr = "203.0.113.7:4123"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rr.Code)
	}

	// A different client is unaffected.
	req = httptest.NewRequest(http.MethodPost, "/create-checkout-session", strings.NewReader(payload))
	req.RemoteAddr = "198.51.100.4:9000"
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for other client, got %d", rr.Code)
	}
}

func TestCheckoutHandlersPaymentSuccessRecorded(t *testing.T) {
	service := &stubCheckoutService{
		reconcileFunc: func(ctx context.Context, sessionID string) (services.ReconcileResult, error) {
			if sessionID != "cs_1" {
				t.Fatalf("unexpected session id %q", sessionID)
			}
			return services.ReconcileResult{
				Payment: &services.Payment{
					ID:            "pi_1",
					ContestID:     "c1",
					TransactionID: "pi_1",
				},
				Recorded: true,
			}, nil
		},
	}

	router := newCheckoutRouter(service)
	req := httptest.NewRequest(http.MethodPost, "/payment-success", strings.NewReader(`{"sessionId":"cs_1"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["transactionId"] != "pi_1" || resp["orderId"] != "pi_1" {
		t.Fatalf("unexpected response %#v", resp)
	}
}

func TestCheckoutHandlersPaymentSuccessNeutral(t *testing.T) {
	service := &stubCheckoutService{
		reconcileFunc: func(ctx context.Context, sessionID string) (services.ReconcileResult, error) {
			return services.ReconcileResult{}, nil
		},
	}

	router := newCheckoutRouter(service)
	req := httptest.NewRequest(http.MethodPost, "/payment-success", strings.NewReader(`{"sessionId":"cs_open"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if body := strings.TrimSpace(rr.Body.String()); body != "{}" {
		t.Fatalf("expected empty object, got %q", body)
	}
}

func TestCheckoutHandlersPaymentSuccessGatewayFailure(t *testing.T) {
	service := &stubCheckoutService{
		reconcileFunc: func(ctx context.Context, sessionID string) (services.ReconcileResult, error) {
			return services.ReconcileResult{}, errors.Join(services.ErrCheckoutGateway, errors.New("stripe: lookup failed"))
		},
	}

	router := newCheckoutRouter(service)
	req := httptest.NewRequest(http.MethodPost, "/payment-success", strings.NewReader(`{"sessionId":"cs_1"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rr.Code)
	}
}

func TestCheckoutHandlersContestPayments(t *testing.T) {
	service := &stubCheckoutService{
		contestFunc: func(ctx context.Context, contestID string) ([]services.Payment, error) {
			if contestID != "c1" {
				t.Fatalf("unexpected contest id %q", contestID)
			}
			return []services.Payment{
				{ID: "pi_1", ContestID: "c1", TransactionID: "pi_1", Participant: "maya@example.com", Status: "pending", Price: 5},
			}, nil
		},
	}

	router := newCheckoutRouter(service)
	req := httptest.NewRequest(http.MethodGet, "/payments/contest/c1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp []paymentResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].Participant != "maya@example.com" {
		t.Fatalf("unexpected payments %#v", resp)
	}
}

func TestCheckoutHandlersParticipations(t *testing.T) {
	service := &stubCheckoutService{
		participationsFunc: func(ctx context.Context, email string) ([]services.Payment, error) {
			if email != "maya@example.com" {
				t.Fatalf("unexpected email %q", email)
			}
			return nil, nil
		},
	}

	router := newCheckoutRouter(service)
	req := httptest.NewRequest(http.MethodGet, "/participations/maya@example.com", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
		t.Fatalf("expected empty array, got %q", body)
	}
}

func TestCheckoutHandlersServiceUnavailable(t *testing.T) {
	router := chi.NewRouter()
	NewCheckoutHandlers(nil, nil).Routes(router)
	req := httptest.NewRequest(http.MethodPost, "/payment-success", strings.NewReader(`{"sessionId":"cs_1"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
