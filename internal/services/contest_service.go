package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/creativia/api/internal/domain"
	"github.com/creativia/api/internal/repositories"
)

var (
	errContestIDRequired      = errors.New("contest: contest id is required")
	errContestNotFound        = errors.New("contest: contest not found")
	errInvalidContestTitle    = errors.New("contest: invalid title")
	errInvalidContestCategory = errors.New("contest: invalid category")
	errInvalidContestPrice    = errors.New("contest: price must be positive")
	errInvalidContestBanner   = errors.New("contest: invalid banner url")
	errInvalidOwnerEmail      = errors.New("contest: invalid owner email")
	errInvalidContestStatus   = errors.New("contest: invalid status value")
	errIllegalTransition      = errors.New("contest: illegal status transition")
	errWinnerRequiresActive   = errors.New("contest: winner can only be declared on an active contest")
	errInvalidWinner          = errors.New("contest: winner name and email are required")
	errContestCompleted       = errors.New("contest: completed contests cannot be deleted")
)

var (
	// ErrContestNotFound indicates the requested contest does not exist.
	ErrContestNotFound = errContestNotFound
	// ErrContestInvalidStatus indicates the supplied status is not a known lifecycle state.
	ErrContestInvalidStatus = errInvalidContestStatus
	// ErrContestIllegalTransition indicates the requested transition violates the forward-only lifecycle.
	ErrContestIllegalTransition = errIllegalTransition
	// ErrContestWinnerRequiresActive indicates winner declaration was attempted outside the active state.
	ErrContestWinnerRequiresActive = errWinnerRequiresActive
	// ErrContestCompleted indicates deletion was attempted on a completed contest.
	ErrContestCompleted = errContestCompleted
	// ErrContestValidation wraps field-level validation failures on contest input.
	ErrContestValidation = errors.New("contest: validation failed")
)

// ContestServiceDeps bundles the dependencies required to construct a contest service.
type ContestServiceDeps struct {
	Contests repositories.ContestRepository
	Clock    func() time.Time
	IDGen    func() string
}

type contestService struct {
	contests  repositories.ContestRepository
	clock     func() time.Time
	idGen     func() string
	sanitizer *bluemonday.Policy
}

// NewContestService wires dependencies into a concrete ContestService implementation.
func NewContestService(deps ContestServiceDeps) (ContestService, error) {
	if deps.Contests == nil {
		return nil, errors.New("contest service: contest repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &contestService{
		contests: deps.Contests,
		clock: func() time.Time {
			return clock().UTC()
		},
		idGen:     idGen,
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

func (s *contestService) CreateContest(ctx context.Context, cmd CreateContestCommand) (Contest, error) {
	title := s.sanitizeText(cmd.Title)
	if title == "" || utf8.RuneCountInString(title) > 200 {
		return Contest{}, errors.Join(ErrContestValidation, errInvalidContestTitle)
	}
	category := s.sanitizeText(cmd.Category)
	if category == "" {
		return Contest{}, errors.Join(ErrContestValidation, errInvalidContestCategory)
	}
	if cmd.Price <= 0 {
		return Contest{}, errors.Join(ErrContestValidation, errInvalidContestPrice)
	}
	ownerEmail := normaliseEmail(cmd.OwnerEmail)
	if ownerEmail == "" {
		return Contest{}, errors.Join(ErrContestValidation, errInvalidOwnerEmail)
	}
	banner := strings.TrimSpace(cmd.Banner)
	if banner != "" {
		parsed, err := url.Parse(banner)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return Contest{}, errors.Join(ErrContestValidation, errInvalidContestBanner)
		}
	}

	now := s.clock()
	contest := Contest{
		ID:          s.idGen(),
		Title:       title,
		Description: s.sanitizeText(cmd.Description),
		Category:    category,
		Banner:      banner,
		Price:       cmd.Price,
		Owner: ContestOwner{
			Name:  s.sanitizeText(cmd.OwnerName),
			Email: ownerEmail,
		},
		Status:           domain.ContestStatusPending,
		ParticipantCount: 0,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.contests.Insert(ctx, contest); err != nil {
		return Contest{}, fmt.Errorf("insert contest: %w", err)
	}
	return contest, nil
}

func (s *contestService) GetContest(ctx context.Context, contestID string) (Contest, error) {
	contestID = strings.TrimSpace(contestID)
	if contestID == "" {
		return Contest{}, errors.Join(ErrContestValidation, errContestIDRequired)
	}
	contest, err := s.contests.FindByID(ctx, contestID)
	if err != nil {
		if isNotFound(err) {
			return Contest{}, errContestNotFound
		}
		return Contest{}, err
	}
	return contest, nil
}

func (s *contestService) ListContests(ctx context.Context, filter ContestListFilter) ([]Contest, error) {
	if owner := normaliseEmail(filter.OwnerEmail); owner != "" {
		return s.contests.ListByOwnerEmail(ctx, owner)
	}
	if contestStatus := domain.ContestStatus(strings.ToLower(strings.TrimSpace(filter.Status))); contestStatus != "" {
		if !domain.ValidContestStatus(contestStatus) {
			return nil, errors.Join(ErrContestValidation, errInvalidContestStatus)
		}
		return s.contests.ListByStatus(ctx, contestStatus)
	}
	return s.contests.ListAll(ctx)
}

func (s *contestService) UpdateStatus(ctx context.Context, cmd UpdateContestStatusCommand) (Contest, error) {
	contestID := strings.TrimSpace(cmd.ContestID)
	if contestID == "" {
		return Contest{}, errors.Join(ErrContestValidation, errContestIDRequired)
	}
	target := domain.ContestStatus(strings.ToLower(strings.TrimSpace(cmd.Status)))
	if !domain.ValidContestStatus(target) {
		return Contest{}, errors.Join(ErrContestValidation, errInvalidContestStatus)
	}

	contest, err := s.GetContest(ctx, contestID)
	if err != nil {
		return Contest{}, err
	}
	if contest.Status == target {
		return contest, nil
	}
	if !domain.CanTransitionContestStatus(contest.Status, target) {
		return Contest{}, fmt.Errorf("%w: %s to %s", errIllegalTransition, contest.Status, target)
	}

	updated, err := s.contests.UpdateStatus(ctx, contestID, contest.Status, target)
	if err != nil {
		if isNotFound(err) {
			return Contest{}, errContestNotFound
		}
		if isConflict(err) {
			return Contest{}, fmt.Errorf("%w: %s to %s", errIllegalTransition, contest.Status, target)
		}
		return Contest{}, err
	}
	return updated, nil
}

func (s *contestService) DeclareWinner(ctx context.Context, cmd DeclareWinnerCommand) (Contest, error) {
	contestID := strings.TrimSpace(cmd.ContestID)
	if contestID == "" {
		return Contest{}, errors.Join(ErrContestValidation, errContestIDRequired)
	}
	name := s.sanitizeText(cmd.WinnerName)
	email := normaliseEmail(cmd.WinnerEmail)
	if name == "" || email == "" {
		return Contest{}, errors.Join(ErrContestValidation, errInvalidWinner)
	}

	contest, err := s.GetContest(ctx, contestID)
	if err != nil {
		return Contest{}, err
	}
	if contest.Status != domain.ContestStatusActive {
		return Contest{}, errWinnerRequiresActive
	}

	winner := ContestWinner{
		Name:       name,
		Email:      email,
		DeclaredAt: s.clock(),
	}
	updated, err := s.contests.DeclareWinner(ctx, contestID, winner)
	if err != nil {
		if isNotFound(err) {
			return Contest{}, errContestNotFound
		}
		if isConflict(err) {
			return Contest{}, errWinnerRequiresActive
		}
		return Contest{}, err
	}
	return updated, nil
}

func (s *contestService) DeleteContest(ctx context.Context, contestID string) error {
	contestID = strings.TrimSpace(contestID)
	if contestID == "" {
		return errors.Join(ErrContestValidation, errContestIDRequired)
	}

	contest, err := s.GetContest(ctx, contestID)
	if err != nil {
		return err
	}
	if contest.Status == domain.ContestStatusCompleted {
		return errContestCompleted
	}

	if err := s.contests.Delete(ctx, contestID); err != nil {
		if isNotFound(err) {
			return errContestNotFound
		}
		if isConflict(err) {
			return errContestCompleted
		}
		return err
	}
	return nil
}

func (s *contestService) sanitizeText(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

func normaliseEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return ""
	}
	return email
}
