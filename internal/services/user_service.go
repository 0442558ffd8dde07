package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/creativia/api/internal/domain"
	"github.com/creativia/api/internal/platform/auth"
	"github.com/creativia/api/internal/repositories"
)

var (
	errUserEmailRequired = errors.New("user: email is required")
	errUserIDRequired    = errors.New("user: user id is required")
	errUserNotFound      = errors.New("user: user not found")
	errInvalidUserRole   = errors.New("user: invalid role value")
)

var (
	// ErrUserNotFound indicates the requested account does not exist.
	ErrUserNotFound = errUserNotFound
	// ErrUserInvalidRole indicates the supplied role is not a known role.
	ErrUserInvalidRole = errInvalidUserRole
	// ErrUserValidation wraps field-level validation failures on user input.
	ErrUserValidation = errors.New("user: validation failed")
)

// UserServiceDeps bundles the dependencies required to construct a user service.
type UserServiceDeps struct {
	Users repositories.UserRepository
	Clock func() time.Time
	IDGen func() string
}

type userService struct {
	users     repositories.UserRepository
	clock     func() time.Time
	idGen     func() string
	sanitizer *bluemonday.Policy
}

var _ auth.RoleResolver = (*userService)(nil)

// NewUserService wires dependencies into a concrete UserService implementation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &userService{
		users: deps.Users,
		clock: func() time.Time {
			return clock().UTC()
		},
		idGen:     idGen,
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

// RegisterUser stores a new account keyed by email. Re-registration of an
// existing email returns the stored record with created=false.
func (s *userService) RegisterUser(ctx context.Context, cmd RegisterUserCommand) (User, bool, error) {
	email := normaliseEmail(cmd.Email)
	if email == "" {
		return User{}, false, errors.Join(ErrUserValidation, errUserEmailRequired)
	}

	now := s.clock()
	user := User{
		ID:        s.idGen(),
		Name:      strings.TrimSpace(s.sanitizer.Sanitize(cmd.Name)),
		Email:     email,
		PhotoURL:  strings.TrimSpace(cmd.PhotoURL),
		Role:      domain.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}

	stored, created, err := s.users.Insert(ctx, user)
	if err != nil {
		return User{}, false, fmt.Errorf("register user: %w", err)
	}
	return stored, created, nil
}

func (s *userService) GetByEmail(ctx context.Context, email string) (User, error) {
	email = normaliseEmail(email)
	if email == "" {
		return User{}, errors.Join(ErrUserValidation, errUserEmailRequired)
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return User{}, errUserNotFound
		}
		return User{}, err
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context) ([]User, error) {
	return s.users.List(ctx)
}

func (s *userService) UpdateRole(ctx context.Context, cmd UpdateUserRoleCommand) (User, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return User{}, errors.Join(ErrUserValidation, errUserIDRequired)
	}
	role := domain.UserRole(strings.ToLower(strings.TrimSpace(cmd.Role)))
	if !domain.ValidUserRole(role) {
		return User{}, errors.Join(ErrUserValidation, errInvalidUserRole)
	}

	updated, err := s.users.UpdateRole(ctx, userID, role)
	if err != nil {
		if isNotFound(err) {
			return User{}, errUserNotFound
		}
		return User{}, err
	}
	return updated, nil
}

// RoleForEmail resolves the authoritative role for a verified email. Unknown
// accounts resolve to an empty role so the caller can apply its fallback.
func (s *userService) RoleForEmail(ctx context.Context, email string) (string, error) {
	email = normaliseEmail(email)
	if email == "" {
		return "", errors.Join(ErrUserValidation, errUserEmailRequired)
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return string(user.Role), nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

func isConflict(err error) bool {
	if err == nil {
		return false
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsConflict()
	}
	return false
}
