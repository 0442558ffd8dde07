package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	domain "github.com/creativia/api/internal/domain"
	pfirestore "github.com/creativia/api/internal/platform/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const contestCollection = "contests"

// ContestRepository persists contests in Firestore and enforces lifecycle
// guards at the store boundary.
type ContestRepository struct {
	base     *pfirestore.BaseRepository[contestDocument]
	provider *pfirestore.Provider
}

// NewContestRepository constructs a Firestore-backed contest repository.
func NewContestRepository(provider *pfirestore.Provider) (*ContestRepository, error) {
	if provider == nil {
		return nil, errors.New("contest repository requires firestore provider")
	}

	base := pfirestore.NewBaseRepository[contestDocument](provider, contestCollection, nil, nil)
	return &ContestRepository{base: base, provider: provider}, nil
}

// Insert creates the contest document. The contest id must be unused.
func (r *ContestRepository) Insert(ctx context.Context, contest domain.Contest) error {
	if r == nil || r.base == nil {
		return errors.New("contest repository not initialised")
	}
	if strings.TrimSpace(contest.ID) == "" {
		return errors.New("contest id is required")
	}

	doc := fromDomainContest(contest)

	if err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, contest.ID)
		if err != nil {
			return err
		}
		return tx.Create(ref, doc)
	}); err != nil {
		return err
	}
	return nil
}

// FindByID loads a contest by its identifier.
func (r *ContestRepository) FindByID(ctx context.Context, contestID string) (domain.Contest, error) {
	if r == nil || r.base == nil {
		return domain.Contest{}, errors.New("contest repository not initialised")
	}
	if strings.TrimSpace(contestID) == "" {
		return domain.Contest{}, errors.New("contest id is required")
	}

	doc, err := r.base.Get(ctx, contestID)
	if err != nil {
		return domain.Contest{}, err
	}
	return toDomainContest(doc.ID, doc.Data), nil
}

// ListByStatus returns contests in the given lifecycle state, newest first.
func (r *ContestRepository) ListByStatus(ctx context.Context, contestStatus domain.ContestStatus) ([]domain.Contest, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("contest repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("status", "==", string(contestStatus)).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	return contestsFromDocs(docs), nil
}

// ListAll returns every contest regardless of state, newest first.
func (r *ContestRepository) ListAll(ctx context.Context) ([]domain.Contest, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("contest repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	return contestsFromDocs(docs), nil
}

// ListByOwnerEmail returns contests posted by the given creator email.
func (r *ContestRepository) ListByOwnerEmail(ctx context.Context, email string) ([]domain.Contest, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("contest repository not initialised")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("owner email is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("owner.email", "==", email)
	})
	if err != nil {
		return nil, err
	}
	return contestsFromDocs(docs), nil
}

// UpdateStatus moves the contest from expectedFrom to to. The write aborts
// when the stored status no longer matches expectedFrom, so concurrent
// transitions cannot skip states.
func (r *ContestRepository) UpdateStatus(ctx context.Context, contestID string, expectedFrom, to domain.ContestStatus) (domain.Contest, error) {
	if r == nil || r.base == nil {
		return domain.Contest{}, errors.New("contest repository not initialised")
	}
	if strings.TrimSpace(contestID) == "" {
		return domain.Contest{}, errors.New("contest id is required")
	}

	if err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, contestID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc contestDocument
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if doc.Status != string(expectedFrom) {
			return status.Errorf(codes.FailedPrecondition, "contest %s is %s, expected %s", contestID, doc.Status, expectedFrom)
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(to)},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		})
	}); err != nil {
		return domain.Contest{}, err
	}

	return r.FindByID(ctx, contestID)
}

// DeclareWinner closes an active contest: status and winner change in the
// same write so readers never observe one without the other.
func (r *ContestRepository) DeclareWinner(ctx context.Context, contestID string, winner domain.ContestWinner) (domain.Contest, error) {
	if r == nil || r.base == nil {
		return domain.Contest{}, errors.New("contest repository not initialised")
	}
	if strings.TrimSpace(contestID) == "" {
		return domain.Contest{}, errors.New("contest id is required")
	}

	if err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, contestID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc contestDocument
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if doc.Status != string(domain.ContestStatusActive) {
			return status.Errorf(codes.FailedPrecondition, "contest %s is %s, winner requires active", contestID, doc.Status)
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(domain.ContestStatusCompleted)},
			{Path: "winner", Value: winnerDocument{
				Name:       strings.TrimSpace(winner.Name),
				Email:      strings.ToLower(strings.TrimSpace(winner.Email)),
				DeclaredAt: winner.DeclaredAt,
			}},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		})
	}); err != nil {
		return domain.Contest{}, err
	}

	return r.FindByID(ctx, contestID)
}

// Delete removes the contest unless it has already completed.
func (r *ContestRepository) Delete(ctx context.Context, contestID string) error {
	if r == nil || r.base == nil {
		return errors.New("contest repository not initialised")
	}
	if strings.TrimSpace(contestID) == "" {
		return errors.New("contest id is required")
	}

	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, contestID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc contestDocument
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if doc.Status == string(domain.ContestStatusCompleted) {
			return status.Errorf(codes.FailedPrecondition, "contest %s already completed", contestID)
		}
		return tx.Delete(ref)
	})
}

type contestDocument struct {
	Title            string          `firestore:"title"`
	Description      string          `firestore:"description"`
	Category         string          `firestore:"category"`
	Banner           string          `firestore:"banner"`
	Price            int64           `firestore:"price"`
	Owner            ownerDocument   `firestore:"owner"`
	Status           string          `firestore:"status"`
	ParticipantCount int64           `firestore:"participantCount"`
	Winner           *winnerDocument `firestore:"winner,omitempty"`
	CreatedAt        time.Time       `firestore:"createdAt"`
	UpdatedAt        time.Time       `firestore:"updatedAt"`
}

type ownerDocument struct {
	Name  string `firestore:"name"`
	Email string `firestore:"email"`
}

type winnerDocument struct {
	Name       string    `firestore:"name"`
	Email      string    `firestore:"email"`
	DeclaredAt time.Time `firestore:"declaredAt"`
}

func toDomainContest(id string, doc contestDocument) domain.Contest {
	contest := domain.Contest{
		ID:          id,
		Title:       doc.Title,
		Description: doc.Description,
		Category:    doc.Category,
		Banner:      doc.Banner,
		Price:       doc.Price,
		Owner: domain.ContestOwner{
			Name:  doc.Owner.Name,
			Email: strings.TrimSpace(doc.Owner.Email),
		},
		Status:           domain.ContestStatus(doc.Status),
		ParticipantCount: doc.ParticipantCount,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
	if doc.Winner != nil {
		contest.Winner = &domain.ContestWinner{
			Name:       doc.Winner.Name,
			Email:      doc.Winner.Email,
			DeclaredAt: doc.Winner.DeclaredAt,
		}
	}
	return contest
}

func fromDomainContest(contest domain.Contest) contestDocument {
	doc := contestDocument{
		Title:       strings.TrimSpace(contest.Title),
		Description: contest.Description,
		Category:    strings.TrimSpace(contest.Category),
		Banner:      strings.TrimSpace(contest.Banner),
		Price:       contest.Price,
		Owner: ownerDocument{
			Name:  strings.TrimSpace(contest.Owner.Name),
			Email: strings.ToLower(strings.TrimSpace(contest.Owner.Email)),
		},
		Status:           string(contest.Status),
		ParticipantCount: contest.ParticipantCount,
		CreatedAt:        contest.CreatedAt,
		UpdatedAt:        contest.UpdatedAt,
	}
	if contest.Winner != nil {
		doc.Winner = &winnerDocument{
			Name:       strings.TrimSpace(contest.Winner.Name),
			Email:      strings.ToLower(strings.TrimSpace(contest.Winner.Email)),
			DeclaredAt: contest.Winner.DeclaredAt,
		}
	}
	return doc
}

func contestsFromDocs(docs []pfirestore.Document[contestDocument]) []domain.Contest {
	contests := make([]domain.Contest, 0, len(docs))
	for _, doc := range docs {
		contests = append(contests, toDomainContest(doc.ID, doc.Data))
	}
	return contests
}

// CollectionName exposes the Firestore collection for migration tooling.
func (r *ContestRepository) CollectionName() string {
	return contestCollection
}

// DocumentPath constructs the document path for the provided contest id.
func (r *ContestRepository) DocumentPath(contestID string) string {
	return fmt.Sprintf("%s/%s", contestCollection, strings.TrimSpace(contestID))
}
