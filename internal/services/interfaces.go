package services

import (
	"context"

	domain "github.com/creativia/api/internal/domain"
	"github.com/creativia/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Contest       = domain.Contest
	ContestOwner  = domain.ContestOwner
	ContestWinner = domain.ContestWinner
	ContestStatus = domain.ContestStatus
	User          = domain.User
	Payment       = domain.Payment
	HealthReport  = repositories.HealthReport
)

// CreateContestCommand carries the payload for publishing a new contest.
type CreateContestCommand struct {
	Title       string
	Description string
	Category    string
	Banner      string
	Price       int64
	OwnerName   string
	OwnerEmail  string
}

// ContestListFilter narrows contest listings by status or owner.
type ContestListFilter struct {
	Status     string
	OwnerEmail string
}

// UpdateContestStatusCommand requests a lifecycle transition for a contest.
type UpdateContestStatusCommand struct {
	ContestID string
	Status    string
}

// DeclareWinnerCommand records the winning participant for an active contest.
type DeclareWinnerCommand struct {
	ContestID   string
	WinnerName  string
	WinnerEmail string
}

// ContestService owns the contest lifecycle state machine.
type ContestService interface {
	CreateContest(ctx context.Context, cmd CreateContestCommand) (Contest, error)
	GetContest(ctx context.Context, contestID string) (Contest, error)
	ListContests(ctx context.Context, filter ContestListFilter) ([]Contest, error)
	UpdateStatus(ctx context.Context, cmd UpdateContestStatusCommand) (Contest, error)
	DeclareWinner(ctx context.Context, cmd DeclareWinnerCommand) (Contest, error)
	DeleteContest(ctx context.Context, contestID string) error
}

// RegisterUserCommand carries the payload for first-login registration.
type RegisterUserCommand struct {
	Name     string
	Email    string
	PhotoURL string
}

// UpdateUserRoleCommand changes a user's role.
type UpdateUserRoleCommand struct {
	UserID string
	Role   string
}

// UserService manages account records and role assignments.
type UserService interface {
	RegisterUser(ctx context.Context, cmd RegisterUserCommand) (User, bool, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateRole(ctx context.Context, cmd UpdateUserRoleCommand) (User, error)
	RoleForEmail(ctx context.Context, email string) (string, error)
}

// CreateCheckoutSessionCommand carries the entry submission that opens a gateway session.
type CreateCheckoutSessionCommand struct {
	ContestID        string
	Title            string
	Description      string
	Banner           string
	Price            int64
	ParticipantEmail string
	ParticipantName  string
}

// CheckoutRedirect is returned to the client to continue payment at the gateway.
type CheckoutRedirect struct {
	SessionID   string
	RedirectURL string
}

// ReconcileResult reports the outcome of a settlement attempt. Recorded is
// false both for replays and for neutral no-op outcomes; Payment is only
// populated when a settlement exists.
type ReconcileResult struct {
	Payment  *Payment
	Recorded bool
}

// CheckoutService coordinates gateway session creation and settlement reconciliation.
type CheckoutService interface {
	CreateSession(ctx context.Context, cmd CreateCheckoutSessionCommand) (CheckoutRedirect, error)
	ReconcileSession(ctx context.Context, sessionID string) (ReconcileResult, error)
	ListContestPayments(ctx context.Context, contestID string) ([]Payment, error)
	ListParticipations(ctx context.Context, participantEmail string) ([]Payment, error)
}

// SystemService exposes operational health reporting.
type SystemService interface {
	HealthReport(ctx context.Context) (HealthReport, error)
}
