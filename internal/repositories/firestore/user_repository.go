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
	"google.golang.org/api/iterator"
)

const userCollection = "users"

// UserRepository persists accounts in Firestore. Emails are unique: inserts
// run in a transaction that first queries for the email, so a concurrent
// duplicate registration serialises into a single stored account.
type UserRepository struct {
	base     *pfirestore.BaseRepository[userDocument]
	provider *pfirestore.Provider
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}

	base := pfirestore.NewBaseRepository[userDocument](provider, userCollection, nil, nil)
	return &UserRepository{base: base, provider: provider}, nil
}

// Insert stores the user unless the email is already registered. The stored
// account is returned either way; created reports whether a write happened.
func (r *UserRepository) Insert(ctx context.Context, user domain.User) (domain.User, bool, error) {
	if r == nil || r.base == nil {
		return domain.User{}, false, errors.New("user repository not initialised")
	}
	if strings.TrimSpace(user.ID) == "" {
		return domain.User{}, false, errors.New("user id is required")
	}
	email := strings.ToLower(strings.TrimSpace(user.Email))
	if email == "" {
		return domain.User{}, false, errors.New("user email is required")
	}

	var (
		stored  domain.User
		created bool
	)

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		stored = domain.User{}
		created = false

		client, err := r.provider.Client(ctx)
		if err != nil {
			return err
		}

		query := client.Collection(userCollection).Where("email", "==", email).Limit(1)
		iter := tx.Documents(query)
		defer iter.Stop()

		snap, err := iter.Next()
		if err == nil {
			var doc userDocument
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			stored = toDomainUser(snap.Ref.ID, doc)
			return nil
		}
		if !errors.Is(err, iterator.Done) {
			return pfirestore.WrapError("users.insert", err)
		}

		ref := client.Collection(userCollection).Doc(user.ID)
		doc := fromDomainUser(user)
		if err := tx.Create(ref, doc); err != nil {
			return pfirestore.WrapError("users.insert", err)
		}
		stored = toDomainUser(user.ID, doc)
		created = true
		return nil
	})
	if err != nil {
		return domain.User{}, false, err
	}
	return stored, created, nil
}

// FindByEmail resolves the account registered for the given email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	if r == nil || r.base == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.User{}, errors.New("user email is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("email", "==", email).Limit(1)
	})
	if err != nil {
		return domain.User{}, err
	}
	if len(docs) == 0 {
		return domain.User{}, &notFoundError{op: "users.find_by_email", email: email}
	}
	return toDomainUser(docs[0].ID, docs[0].Data), nil
}

// List returns every registered account.
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("user repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, toDomainUser(doc.ID, doc.Data))
	}
	return users, nil
}

// UpdateRole sets the role stored for the account.
func (r *UserRepository) UpdateRole(ctx context.Context, userID string, role domain.UserRole) (domain.User, error) {
	if r == nil || r.base == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	if strings.TrimSpace(userID) == "" {
		return domain.User{}, errors.New("user id is required")
	}

	if _, err := r.base.Update(ctx, userID, []firestore.Update{
		{Path: "role", Value: string(role)},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}); err != nil {
		return domain.User{}, err
	}

	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	return toDomainUser(doc.ID, doc.Data), nil
}

// notFoundError satisfies repositories.RepositoryError for query misses that
// do not surface a gRPC NotFound status.
type notFoundError struct {
	op    string
	email string
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("%s: no account for %s", e.op, e.email)
}

func (e *notFoundError) IsNotFound() bool    { return true }
func (e *notFoundError) IsConflict() bool    { return false }
func (e *notFoundError) IsUnavailable() bool { return false }

type userDocument struct {
	Name      string    `firestore:"name"`
	Email     string    `firestore:"email"`
	PhotoURL  string    `firestore:"photoURL"`
	Role      string    `firestore:"role"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func toDomainUser(id string, doc userDocument) domain.User {
	return domain.User{
		ID:        id,
		Name:      doc.Name,
		Email:     strings.TrimSpace(doc.Email),
		PhotoURL:  strings.TrimSpace(doc.PhotoURL),
		Role:      domain.UserRole(doc.Role),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func fromDomainUser(user domain.User) userDocument {
	doc := userDocument{
		Name:      strings.TrimSpace(user.Name),
		Email:     strings.ToLower(strings.TrimSpace(user.Email)),
		PhotoURL:  strings.TrimSpace(user.PhotoURL),
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
	if doc.Role == "" {
		doc.Role = string(domain.RoleUser)
	}
	return doc
}

// CollectionName exposes the Firestore collection for migration tooling.
func (r *UserRepository) CollectionName() string {
	return userCollection
}

// DocumentPath constructs the document path for the provided user id.
func (r *UserRepository) DocumentPath(userID string) string {
	return fmt.Sprintf("%s/%s", userCollection, strings.TrimSpace(userID))
}
