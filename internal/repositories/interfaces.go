package repositories

import (
	"context"
	"time"

	domain "github.com/creativia/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Contests() ContestRepository
	Users() UserRepository
	Payments() PaymentRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ContestRepository persists contests and guards lifecycle mutations.
type ContestRepository interface {
	Insert(ctx context.Context, contest domain.Contest) error
	FindByID(ctx context.Context, contestID string) (domain.Contest, error)
	ListByStatus(ctx context.Context, status domain.ContestStatus) ([]domain.Contest, error)
	ListAll(ctx context.Context) ([]domain.Contest, error)
	ListByOwnerEmail(ctx context.Context, email string) ([]domain.Contest, error)
	// UpdateStatus persists a lifecycle transition that the service already
	// validated against the current state. Implementations must reject the
	// write when the stored status no longer matches expectedFrom.
	UpdateStatus(ctx context.Context, contestID string, expectedFrom, to domain.ContestStatus) (domain.Contest, error)
	// DeclareWinner atomically moves an active contest to completed and
	// records the winner in the same write.
	DeclareWinner(ctx context.Context, contestID string, winner domain.ContestWinner) (domain.Contest, error)
	Delete(ctx context.Context, contestID string) error
}

// UserRepository stores accounts keyed by their unique email.
type UserRepository interface {
	// Insert persists the user unless an account with the same email already
	// exists, in which case the stored account is returned with created=false.
	Insert(ctx context.Context, user domain.User) (stored domain.User, created bool, err error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	UpdateRole(ctx context.Context, userID string, role domain.UserRole) (domain.User, error)
}

// PaymentRepository stores settled payment records. The transaction id keys
// the record, so the same settlement can never be stored twice.
type PaymentRepository interface {
	// RecordSettlement writes the payment and increments the contest's
	// participant count inside one transaction. When the transaction id was
	// already recorded the stored payment is returned with recorded=false and
	// the count is left untouched.
	RecordSettlement(ctx context.Context, payment domain.Payment) (stored domain.Payment, recorded bool, err error)
	FindByTransactionID(ctx context.Context, transactionID string) (domain.Payment, error)
	ListByContest(ctx context.Context, contestID string) ([]domain.Payment, error)
	ListByParticipant(ctx context.Context, email string) ([]domain.Payment, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (HealthReport, error)
}

// HealthStatus grades a dependency check.
type HealthStatus string

const (
	// HealthOK means the dependency responded normally.
	HealthOK HealthStatus = "ok"
	// HealthDegraded means the dependency responded slowly or partially.
	HealthDegraded HealthStatus = "degraded"
	// HealthUnavailable means the dependency check failed.
	HealthUnavailable HealthStatus = "unavailable"
)

// HealthCheck reports a single dependency probe.
type HealthCheck struct {
	Status    HealthStatus
	Message   string
	Latency   time.Duration
	CheckedAt time.Time
}

// HealthReport aggregates dependency probes for readiness checks.
type HealthReport struct {
	Status      HealthStatus
	Checks      map[string]HealthCheck
	GeneratedAt time.Time
}
