package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/creativia/api/internal/domain"
	"github.com/creativia/api/internal/payments"
	"github.com/creativia/api/internal/repositories"
)

const (
	// unitAmountMultiplier converts a contest entry price into the amount
	// sent to the gateway. Carried over verbatim from the billing rules
	// this service replaces; see DESIGN.md before changing it.
	unitAmountMultiplier = 10
	// settledAmountDivisor converts the gateway's amount_total back into
	// the price stored on a payment record.
	settledAmountDivisor = 100

	defaultGatewayTimeout = 10 * time.Second

	metadataContestID       = "contestId"
	metadataParticipant     = "participant"
	metadataParticipantName = "participantName"
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
	// ErrCheckoutGateway indicates the payment gateway rejected or failed a call.
	ErrCheckoutGateway = errors.New("checkout: payment gateway failure")
)

// checkoutGateway abstracts payments.Manager for easier testing.
type checkoutGateway interface {
	CreateCheckoutSession(ctx context.Context, provider string, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error)
	RetrieveSession(ctx context.Context, provider string, sessionID string) (payments.SessionDetails, error)
}

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Payments       repositories.PaymentRepository
	Gateway        checkoutGateway
	Currency       string
	ClientBaseURL  string
	GatewayTimeout time.Duration
	Clock          func() time.Time
	Logger         *zap.Logger
}

type checkoutService struct {
	payments       repositories.PaymentRepository
	gateway        checkoutGateway
	currency       string
	clientBaseURL  string
	gatewayTimeout time.Duration
	clock          func() time.Time
	logger         *zap.Logger
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Payments == nil {
		return nil, errors.New("checkout service: payment repository is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("checkout service: payment gateway is required")
	}
	currency := strings.ToLower(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "usd"
	}
	baseURL := strings.TrimRight(strings.TrimSpace(deps.ClientBaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("checkout service: client base url is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := deps.GatewayTimeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}

	return &checkoutService{
		payments:       deps.Payments,
		gateway:        deps.Gateway,
		currency:       currency,
		clientBaseURL:  baseURL,
		gatewayTimeout: timeout,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreateSession validates the entry submission and opens a gateway checkout session.
func (s *checkoutService) CreateSession(ctx context.Context, cmd CreateCheckoutSessionCommand) (CheckoutRedirect, error) {
	if s == nil || s.gateway == nil {
		return CheckoutRedirect{}, ErrCheckoutUnavailable
	}

	contestID := strings.TrimSpace(cmd.ContestID)
	if contestID == "" {
		return CheckoutRedirect{}, fmt.Errorf("%w: contest id is required", ErrCheckoutInvalidInput)
	}
	if cmd.Price <= 0 {
		return CheckoutRedirect{}, fmt.Errorf("%w: price must be positive", ErrCheckoutInvalidInput)
	}
	participant := normaliseEmail(cmd.ParticipantEmail)
	if participant == "" {
		return CheckoutRedirect{}, fmt.Errorf("%w: participant email is required", ErrCheckoutInvalidInput)
	}

	req := payments.CheckoutSessionRequest{
		Name:          strings.TrimSpace(cmd.Title),
		Description:   strings.TrimSpace(cmd.Description),
		UnitAmount:    cmd.Price * unitAmountMultiplier,
		Currency:      s.currency,
		Quantity:      1,
		CustomerEmail: participant,
		SuccessURL:    s.clientBaseURL + "/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.clientBaseURL + "/contests/" + contestID,
		Metadata: map[string]string{
			metadataContestID:       contestID,
			metadataParticipant:     participant,
			metadataParticipantName: strings.TrimSpace(cmd.ParticipantName),
		},
	}
	if req.Name == "" {
		req.Name = "Contest entry"
	}

	gatewayCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	session, err := s.gateway.CreateCheckoutSession(gatewayCtx, "", req)
	if err != nil {
		s.logger.Error("checkout.session.create_failed",
			zap.String("contest_id", contestID),
			zap.Error(err),
		)
		return CheckoutRedirect{}, errors.Join(ErrCheckoutGateway, err)
	}

	s.logger.Info("checkout.session.created",
		zap.String("contest_id", contestID),
		zap.String("session_id", session.ID),
	)
	return CheckoutRedirect{
		SessionID:   session.ID,
		RedirectURL: session.RedirectURL,
	}, nil
}

// ReconcileSession verifies a checkout session with the gateway and, when the
// session is complete and its contest still exists, records the settlement and
// increments the contest's participant count in one atomic store operation.
// Replays return the stored payment without re-incrementing; incomplete
// sessions and missing contests are absorbed as neutral no-ops.
func (s *checkoutService) ReconcileSession(ctx context.Context, sessionID string) (ReconcileResult, error) {
	if s == nil || s.gateway == nil || s.payments == nil {
		return ReconcileResult{}, ErrCheckoutUnavailable
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ReconcileResult{}, fmt.Errorf("%w: session id is required", ErrCheckoutInvalidInput)
	}

	gatewayCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	details, err := s.gateway.RetrieveSession(gatewayCtx, "", sessionID)
	if err != nil {
		s.logger.Error("checkout.reconcile.lookup_failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return ReconcileResult{}, errors.Join(ErrCheckoutGateway, err)
	}

	if details.Status != payments.SessionComplete {
		s.logger.Info("checkout.reconcile.session_incomplete",
			zap.String("session_id", sessionID),
			zap.String("status", string(details.Status)),
		)
		return ReconcileResult{}, nil
	}

	contestID := strings.TrimSpace(details.Metadata[metadataContestID])
	if contestID == "" {
		s.logger.Warn("checkout.reconcile.missing_contest_metadata",
			zap.String("session_id", sessionID),
		)
		return ReconcileResult{}, nil
	}
	transactionID := strings.TrimSpace(details.PaymentIntentID)
	if transactionID == "" {
		return ReconcileResult{}, fmt.Errorf("%w: session %s has no payment intent", ErrCheckoutGateway, sessionID)
	}

	participant := strings.TrimSpace(details.Metadata[metadataParticipant])
	if participant == "" {
		participant = normaliseEmail(details.CustomerEmail)
	}

	payment := Payment{
		ID:               transactionID,
		ContestID:        contestID,
		TransactionID:    transactionID,
		Participant:      participant,
		ParticipantName:  strings.TrimSpace(details.Metadata[metadataParticipantName]),
		Status:           domain.PaymentStatusPending,
		Price:            details.AmountTotal / settledAmountDivisor,
		ParticipantCount: 1,
		CreatedAt:        s.clock(),
	}

	stored, recorded, err := s.payments.RecordSettlement(ctx, payment)
	if err != nil {
		if isNotFound(err) {
			s.logger.Warn("checkout.reconcile.contest_missing",
				zap.String("session_id", sessionID),
				zap.String("contest_id", contestID),
			)
			return ReconcileResult{}, nil
		}
		return ReconcileResult{}, fmt.Errorf("record settlement: %w", err)
	}

	if recorded {
		s.logger.Info("checkout.reconcile.settled",
			zap.String("session_id", sessionID),
			zap.String("contest_id", contestID),
			zap.String("transaction_id", stored.TransactionID),
		)
	} else {
		s.logger.Info("checkout.reconcile.replay",
			zap.String("session_id", sessionID),
			zap.String("transaction_id", stored.TransactionID),
		)
	}
	return ReconcileResult{Payment: &stored, Recorded: recorded}, nil
}

func (s *checkoutService) ListContestPayments(ctx context.Context, contestID string) ([]Payment, error) {
	contestID = strings.TrimSpace(contestID)
	if contestID == "" {
		return nil, fmt.Errorf("%w: contest id is required", ErrCheckoutInvalidInput)
	}
	return s.payments.ListByContest(ctx, contestID)
}

func (s *checkoutService) ListParticipations(ctx context.Context, participantEmail string) ([]Payment, error) {
	participant := normaliseEmail(participantEmail)
	if participant == "" {
		return nil, fmt.Errorf("%w: participant email is required", ErrCheckoutInvalidInput)
	}
	return s.payments.ListByParticipant(ctx, participant)
}
