package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/creativia/api/internal/payments"
	"github.com/creativia/api/internal/platform/auth"
	"github.com/creativia/api/internal/platform/config"
	"github.com/creativia/api/internal/repositories"
	"github.com/creativia/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Contests services.ContestService
	Users    services.UserService
	Checkout services.CheckoutService
	System   services.SystemService
}

// Container wires repositories, services, and platform infrastructure for runtime use.
type Container struct {
	Config        config.Config
	Repositories  repositories.Registry
	Services      Services
	Authenticator *auth.Authenticator
}

// Option customises container assembly.
type Option func(*containerOptions)

type containerOptions struct {
	logger  *zap.Logger
	gateway *payments.Manager
}

// WithLogger attaches the application logger used by services.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		o.logger = logger
	}
}

// WithPaymentGateway overrides the payment gateway, primarily for tests.
func WithPaymentGateway(gateway *payments.Manager) Option {
	return func(o *containerOptions) {
		o.gateway = gateway
	}
}

// NewContainer constructs the runtime dependencies. Production wiring provides the
// Firestore-backed registry, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	options := containerOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}

	gateway := options.gateway
	if gateway == nil && cfg.PSP.StripeAPIKey != "" {
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey: cfg.PSP.StripeAPIKey,
			Logger: options.logger.Named("stripe"),
		})
		if err != nil {
			return nil, fmt.Errorf("build stripe provider: %w", err)
		}
		gateway, err = payments.NewManager(map[string]payments.Provider{
			"stripe": stripeProvider,
		})
		if err != nil {
			return nil, fmt.Errorf("build payment manager: %w", err)
		}
	}

	svc, err := buildServices(reg, cfg, gateway, options.logger)
	if err != nil {
		return nil, err
	}

	authenticator, err := buildAuthenticator(ctx, cfg, svc.Users)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:        cfg,
		Repositories:  reg,
		Services:      svc,
		Authenticator: authenticator,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(reg repositories.Registry, cfg config.Config, gateway *payments.Manager, logger *zap.Logger) (Services, error) {
	var svc Services

	if contestsRepo := reg.Contests(); contestsRepo != nil {
		contestSvc, err := services.NewContestService(services.ContestServiceDeps{
			Contests: contestsRepo,
			Clock:    time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build contest service: %w", err)
		}
		svc.Contests = contestSvc
	}

	if usersRepo := reg.Users(); usersRepo != nil {
		userSvc, err := services.NewUserService(services.UserServiceDeps{
			Users: usersRepo,
			Clock: time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build user service: %w", err)
		}
		svc.Users = userSvc
	}

	if paymentsRepo := reg.Payments(); paymentsRepo != nil && gateway != nil {
		checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
			Payments:       paymentsRepo,
			Gateway:        gateway,
			Currency:       cfg.Checkout.Currency,
			ClientBaseURL:  cfg.Client.BaseURL,
			GatewayTimeout: cfg.PSP.GatewayTimeout,
			Clock:          time.Now,
			Logger:         logger.Named("checkout"),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build checkout service: %w", err)
		}
		svc.Checkout = checkoutSvc
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

func buildAuthenticator(ctx context.Context, cfg config.Config, users services.UserService) (*auth.Authenticator, error) {
	if cfg.Firebase.ProjectID == "" {
		return nil, nil
	}

	verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		return nil, fmt.Errorf("build firebase verifier: %w", err)
	}

	opts := []auth.Option{auth.WithFallbackRole(auth.RoleUser)}
	if users != nil {
		opts = append(opts, auth.WithRoleResolver(users))
	}
	return auth.NewAuthenticator(verifier, opts...), nil
}
