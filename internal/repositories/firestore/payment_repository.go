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

const paymentCollection = "payments"

// PaymentRepository stores settled payments in Firestore. Documents are keyed
// by the gateway transaction id, which is what makes reconciliation
// idempotent: the second write of the same settlement hits an existing key.
type PaymentRepository struct {
	base     *pfirestore.BaseRepository[paymentDocument]
	contests *ContestRepository
	provider *pfirestore.Provider
}

// NewPaymentRepository constructs a Firestore-backed payment repository.
// The contest repository supplies document references for the participant
// count increment that lands in the same transaction.
func NewPaymentRepository(provider *pfirestore.Provider, contests *ContestRepository) (*PaymentRepository, error) {
	if provider == nil {
		return nil, errors.New("payment repository requires firestore provider")
	}
	if contests == nil {
		return nil, errors.New("payment repository requires contest repository")
	}

	base := pfirestore.NewBaseRepository[paymentDocument](provider, paymentCollection, nil, nil)
	return &PaymentRepository{base: base, contests: contests, provider: provider}, nil
}

// RecordSettlement writes the payment and bumps the contest's participant
// count in one transaction. A transaction id that was already recorded
// returns the stored payment with recorded=false and leaves the count alone.
// A missing contest fails the whole transaction, so neither write survives.
func (r *PaymentRepository) RecordSettlement(ctx context.Context, payment domain.Payment) (domain.Payment, bool, error) {
	if r == nil || r.base == nil {
		return domain.Payment{}, false, errors.New("payment repository not initialised")
	}
	txID := strings.TrimSpace(payment.TransactionID)
	if txID == "" {
		return domain.Payment{}, false, errors.New("payment transaction id is required")
	}
	if strings.TrimSpace(payment.ContestID) == "" {
		return domain.Payment{}, false, errors.New("payment contest id is required")
	}

	var (
		stored   domain.Payment
		recorded bool
	)

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		stored = domain.Payment{}
		recorded = false

		contestRef, err := r.contests.base.DocumentRef(ctx, payment.ContestID)
		if err != nil {
			return err
		}
		contestSnap, err := tx.Get(contestRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return status.Errorf(codes.NotFound, "contest %s not found", payment.ContestID)
			}
			return pfirestore.WrapError("payments.record", err)
		}
		var contest contestDocument
		if err := contestSnap.DataTo(&contest); err != nil {
			return err
		}

		paymentRef, err := r.base.DocumentRef(ctx, txID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(paymentRef)
		switch {
		case err == nil:
			var doc paymentDocument
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			stored = toDomainPayment(snap.Ref.ID, doc)
			return nil
		case status.Code(err) == codes.NotFound:
			// first settlement of this transaction id
		default:
			return pfirestore.WrapError("payments.record", err)
		}

		doc := fromDomainPayment(payment)
		doc.Owner = contest.Owner
		doc.Title = contest.Title
		doc.Category = contest.Category
		doc.Image = contest.Banner
		if err := tx.Create(paymentRef, doc); err != nil {
			return pfirestore.WrapError("payments.record", err)
		}
		if err := tx.Update(contestRef, []firestore.Update{
			{Path: "participantCount", Value: firestore.Increment(1)},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		}); err != nil {
			return pfirestore.WrapError("payments.record", err)
		}

		stored = toDomainPayment(txID, doc)
		recorded = true
		return nil
	})
	if err != nil {
		return domain.Payment{}, false, err
	}
	return stored, recorded, nil
}

// FindByTransactionID loads a payment by its gateway transaction id.
func (r *PaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (domain.Payment, error) {
	if r == nil || r.base == nil {
		return domain.Payment{}, errors.New("payment repository not initialised")
	}
	if strings.TrimSpace(transactionID) == "" {
		return domain.Payment{}, errors.New("payment transaction id is required")
	}

	doc, err := r.base.Get(ctx, transactionID)
	if err != nil {
		return domain.Payment{}, err
	}
	return toDomainPayment(doc.ID, doc.Data), nil
}

// ListByContest returns every settled payment recorded for a contest.
func (r *PaymentRepository) ListByContest(ctx context.Context, contestID string) ([]domain.Payment, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("payment repository not initialised")
	}
	contestID = strings.TrimSpace(contestID)
	if contestID == "" {
		return nil, errors.New("contest id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("contestId", "==", contestID)
	})
	if err != nil {
		return nil, err
	}
	return paymentsFromDocs(docs), nil
}

// ListByParticipant returns the payments made by a participant email.
func (r *PaymentRepository) ListByParticipant(ctx context.Context, email string) ([]domain.Payment, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("payment repository not initialised")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("participant email is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("participant", "==", email)
	})
	if err != nil {
		return nil, err
	}
	return paymentsFromDocs(docs), nil
}

type paymentDocument struct {
	ContestID        string        `firestore:"contestId"`
	TransactionID    string        `firestore:"transactionId"`
	Participant      string        `firestore:"participant"`
	ParticipantName  string        `firestore:"participantName"`
	Status           string        `firestore:"status"`
	Owner            ownerDocument `firestore:"owner"`
	Title            string        `firestore:"title"`
	Category         string        `firestore:"category"`
	Image            string        `firestore:"image"`
	Price            int64         `firestore:"price"`
	ParticipantCount int64         `firestore:"participantCount"`
	CreatedAt        time.Time     `firestore:"createdAt"`
}

func toDomainPayment(id string, doc paymentDocument) domain.Payment {
	return domain.Payment{
		ID:              id,
		ContestID:       doc.ContestID,
		TransactionID:   doc.TransactionID,
		Participant:     strings.TrimSpace(doc.Participant),
		ParticipantName: doc.ParticipantName,
		Status:          doc.Status,
		Owner: domain.ContestOwner{
			Name:  doc.Owner.Name,
			Email: strings.TrimSpace(doc.Owner.Email),
		},
		Title:            doc.Title,
		Category:         doc.Category,
		Image:            doc.Image,
		Price:            doc.Price,
		ParticipantCount: doc.ParticipantCount,
		CreatedAt:        doc.CreatedAt,
	}
}

func fromDomainPayment(payment domain.Payment) paymentDocument {
	doc := paymentDocument{
		ContestID:       strings.TrimSpace(payment.ContestID),
		TransactionID:   strings.TrimSpace(payment.TransactionID),
		Participant:     strings.ToLower(strings.TrimSpace(payment.Participant)),
		ParticipantName: strings.TrimSpace(payment.ParticipantName),
		Status:          payment.Status,
		Owner: ownerDocument{
			Name:  strings.TrimSpace(payment.Owner.Name),
			Email: strings.ToLower(strings.TrimSpace(payment.Owner.Email)),
		},
		Title:            payment.Title,
		Category:         payment.Category,
		Image:            payment.Image,
		Price:            payment.Price,
		ParticipantCount: payment.ParticipantCount,
		CreatedAt:        payment.CreatedAt,
	}
	if doc.Status == "" {
		doc.Status = domain.PaymentStatusPending
	}
	if doc.ParticipantCount == 0 {
		doc.ParticipantCount = 1
	}
	return doc
}

func paymentsFromDocs(docs []pfirestore.Document[paymentDocument]) []domain.Payment {
	payments := make([]domain.Payment, 0, len(docs))
	for _, doc := range docs {
		payments = append(payments, toDomainPayment(doc.ID, doc.Data))
	}
	return payments
}

// CollectionName exposes the Firestore collection for migration tooling.
func (r *PaymentRepository) CollectionName() string {
	return paymentCollection
}

// DocumentPath constructs the document path for the provided transaction id.
func (r *PaymentRepository) DocumentPath(transactionID string) string {
	return fmt.Sprintf("%s/%s", paymentCollection, strings.TrimSpace(transactionID))
}
