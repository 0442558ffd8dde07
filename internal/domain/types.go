package domain

import (
	"time"
)

// ContestStatus describes where a contest sits in its moderation lifecycle.
type ContestStatus string

const (
	// ContestStatusPending indicates a freshly created contest awaiting review.
	ContestStatusPending ContestStatus = "pending"
	// ContestStatusActive indicates a contest open for paid participation.
	ContestStatusActive ContestStatus = "active"
	// ContestStatusCompleted indicates a contest closed with a declared winner.
	ContestStatusCompleted ContestStatus = "completed"
)

// ValidContestStatus reports whether the value is a known lifecycle state.
func ValidContestStatus(status ContestStatus) bool {
	switch status {
	case ContestStatusPending, ContestStatusActive, ContestStatusCompleted:
		return true
	default:
		return false
	}
}

// CanTransitionContestStatus reports whether a contest may move from one
// lifecycle state to another. The lifecycle only moves forward:
// pending -> active -> completed.
func CanTransitionContestStatus(from, to ContestStatus) bool {
	switch from {
	case ContestStatusPending:
		return to == ContestStatusActive
	case ContestStatusActive:
		return to == ContestStatusCompleted
	default:
		return false
	}
}

// ContestOwner identifies the creator who posted a contest.
type ContestOwner struct {
	Name  string
	Email string
}

// ContestWinner records the participant declared as winner of a contest.
type ContestWinner struct {
	Name       string
	Email      string
	DeclaredAt time.Time
}

// Contest aggregates a posted contest shared across layers. Winner is set
// exactly when Status is ContestStatusCompleted and is never cleared.
type Contest struct {
	ID               string
	Title            string
	Description      string
	Category         string
	Banner           string
	Price            int64
	Owner            ContestOwner
	Status           ContestStatus
	ParticipantCount int64
	Winner           *ContestWinner
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UserRole enumerates the platform roles.
type UserRole string

const (
	// RoleUser is the default role for registered accounts.
	RoleUser UserRole = "user"
	// RoleCreator may post contests.
	RoleCreator UserRole = "creator"
	// RoleAdmin may moderate contests, manage roles and declare winners.
	RoleAdmin UserRole = "admin"
)

// ValidUserRole reports whether the value is an assignable role.
func ValidUserRole(role UserRole) bool {
	switch role {
	case RoleUser, RoleCreator, RoleAdmin:
		return true
	default:
		return false
	}
}

// User represents a registered account keyed by its unique email.
type User struct {
	ID        string
	Name      string
	Email     string
	PhotoURL  string
	Role      UserRole
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Payment is the immutable record written when a checkout session settles.
// TransactionID carries the gateway payment intent and doubles as the
// uniqueness key that makes reconciliation idempotent.
type Payment struct {
	ID               string
	ContestID        string
	TransactionID    string
	Participant      string
	ParticipantName  string
	Status           string
	Owner            ContestOwner
	Title            string
	Category         string
	Image            string
	Price            int64
	ParticipantCount int64
	CreatedAt        time.Time
}

// PaymentStatusPending marks a settled payment awaiting contest resolution.
const PaymentStatusPending = "pending"
