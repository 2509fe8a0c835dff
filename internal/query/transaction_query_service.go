package query

import (
	"context"
	"log"

	"github.com/tradepost/transaction-service/internal/repository"
	"github.com/tradepost/transaction-service/shared/cqrs"
	"github.com/tradepost/transaction-service/shared/events"
	"github.com/tradepost/transaction-service/shared/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// referenceEvents change data embedded in transaction views.
var referenceEvents = map[string]bool{
	events.AccountUpdated: true,
	events.AccountDeleted: true,
	events.UserCreated:    true,
	events.UserUpdated:    true,
	events.UserDeleted:    true,
	events.PostUpdated:    true,
	events.PostDeleted:    true,
}

// TransactionQueryService serves enriched transaction reads. An empty result
// is reported as ErrTransactionNotFound for single and bulk reads alike.
type TransactionQueryService struct {
	readRepo *repository.TransactionReadRepository
}

func NewTransactionQueryService(readRepo *repository.TransactionReadRepository) *TransactionQueryService {
	return &TransactionQueryService{readRepo: readRepo}
}

func (s *TransactionQueryService) GetTransaction(ctx context.Context, q cqrs.GetTransactionQuery) ([]models.TransactionView, error) {
	id, err := primitive.ObjectIDFromHex(q.TransactionID)
	if err != nil {
		return nil, models.ErrTransactionNotFound
	}
	view, err := s.readRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return []models.TransactionView{*view}, nil
}

func (s *TransactionQueryService) ListTransactions(ctx context.Context, _ cqrs.ListTransactionsQuery) ([]models.TransactionView, error) {
	views, err := s.readRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, models.ErrTransactionNotFound
	}
	return views, nil
}

// HandleReferenceEvent flushes cached views when an account, user or post
// they embed changes. Other events are ignored.
func (s *TransactionQueryService) HandleReferenceEvent(ctx context.Context, event events.Event) error {
	if !referenceEvents[event.Type] {
		return nil
	}
	log.Printf("Received %s event, flushing transaction views", event.Type)
	s.readRepo.InvalidateAllViews(ctx)
	return nil
}
