package command

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/tradepost/transaction-service/internal/repository"
	"github.com/tradepost/transaction-service/shared/cqrs"
	"github.com/tradepost/transaction-service/shared/events"
	"github.com/tradepost/transaction-service/shared/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventPublisher is satisfied by *events.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// TransactionCommandService creates, updates and deletes transactions. The
// store enforces (client, post) uniqueness and conditional writes; this
// service checks the referenced account and post first.
type TransactionCommandService struct {
	writeRepo   *repository.TransactionWriteRepository
	readRepo    *repository.TransactionReadRepository
	accountRepo *repository.AccountRepository
	postRepo    *repository.PostRepository
	publisher   EventPublisher
	now         func() time.Time
}

// NewTransactionCommandService accepts a nil publisher, which disables events.
func NewTransactionCommandService(
	writeRepo *repository.TransactionWriteRepository,
	readRepo *repository.TransactionReadRepository,
	accountRepo *repository.AccountRepository,
	postRepo *repository.PostRepository,
	publisher EventPublisher,
) *TransactionCommandService {
	return &TransactionCommandService{
		writeRepo:   writeRepo,
		readRepo:    readRepo,
		accountRepo: accountRepo,
		postRepo:    postRepo,
		publisher:   publisher,
		now:         func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func (s *TransactionCommandService) CreateTransaction(ctx context.Context, cmd cqrs.CreateTransactionCommand) (*models.Transaction, error) {
	accountID, err := s.requireAccount(ctx, cmd.AccountID)
	if err != nil {
		return nil, err
	}
	postID, err := s.requirePost(ctx, cmd.PostID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	transaction := &models.Transaction{
		ID:        primitive.NewObjectID(),
		Client:    accountID,
		Post:      postID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.writeRepo.Create(ctx, transaction); err != nil {
		return nil, err
	}
	s.publish(ctx, events.TransactionCreated, events.TransactionCreatedEvent{
		TransactionID: transaction.ID.Hex(),
		AccountID:     accountID.Hex(),
		PostID:        postID.Hex(),
	})
	return transaction, nil
}

// UpdateTransaction applies the allow-listed fields of cmd.Fields. Nothing is
// written unless every field is valid and every referenced post exists.
func (s *TransactionCommandService) UpdateTransaction(ctx context.Context, cmd cqrs.UpdateTransactionCommand) error {
	if _, err := s.requireAccount(ctx, cmd.AccountID); err != nil {
		return err
	}
	transactionID, err := primitive.ObjectIDFromHex(cmd.TransactionID)
	if err != nil {
		return models.ErrTransactionNotFound
	}
	set, err := s.buildUpdate(ctx, cmd.Fields)
	if err != nil {
		return err
	}

	fields := make([]string, 0, len(set))
	for k := range set {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	set["updated_at"] = s.now()

	if err := s.writeRepo.Update(ctx, transactionID, set); err != nil {
		return err
	}
	s.readRepo.InvalidateTransactionView(ctx, transactionID)
	s.publish(ctx, events.TransactionUpdated, events.TransactionUpdatedEvent{
		TransactionID: transactionID.Hex(),
		AccountID:     cmd.AccountID,
		Fields:        fields,
	})
	return nil
}

func (s *TransactionCommandService) DeleteTransaction(ctx context.Context, cmd cqrs.DeleteTransactionCommand) error {
	transactionID, err := primitive.ObjectIDFromHex(cmd.TransactionID)
	if err != nil {
		return models.ErrTransactionNotFound
	}
	if err := s.writeRepo.Delete(ctx, transactionID); err != nil {
		return err
	}
	s.readRepo.InvalidateTransactionView(ctx, transactionID)
	s.publish(ctx, events.TransactionDeleted, events.TransactionDeletedEvent{
		TransactionID: transactionID.Hex(),
		AccountID:     cmd.AccountID,
	})
	return nil
}

// buildUpdate validates the whole field map before resolving references, so
// a request mixing bad fields with a missing post reports the bad fields.
func (s *TransactionCommandService) buildUpdate(ctx context.Context, fields map[string]any) (bson.M, error) {
	if len(fields) == 0 {
		return nil, &models.ValidationError{Fields: []models.FieldError{
			{Field: "body", Message: "At least one updatable field is required", Type: "required"},
		}}
	}

	var invalid []models.FieldError
	for name, value := range fields {
		rule, ok := mutableFields[name]
		if !ok {
			invalid = append(invalid, models.FieldError{Field: name, Message: "Field cannot be updated", Type: "unknown"})
			continue
		}
		if fe := rule.validate(name, value); fe != nil {
			invalid = append(invalid, *fe)
		}
	}
	if len(invalid) > 0 {
		sort.Slice(invalid, func(i, j int) bool { return invalid[i].Field < invalid[j].Field })
		return nil, &models.ValidationError{Fields: invalid}
	}

	set := bson.M{}
	for name, value := range fields {
		resolved, err := mutableFields[name].resolve(ctx, s, value)
		if err != nil {
			return nil, err
		}
		set[name] = resolved
	}
	return set, nil
}

func (s *TransactionCommandService) requireAccount(ctx context.Context, id string) (primitive.ObjectID, error) {
	accountID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, models.ErrAccountNotFound
	}
	ok, err := s.accountRepo.Exists(ctx, accountID)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if !ok {
		return primitive.NilObjectID, models.ErrAccountNotFound
	}
	return accountID, nil
}

func (s *TransactionCommandService) requirePost(ctx context.Context, id string) (primitive.ObjectID, error) {
	postID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, models.ErrPostNotFound
	}
	ok, err := s.postRepo.Exists(ctx, postID)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if !ok {
		return primitive.NilObjectID, models.ErrPostNotFound
	}
	return postID, nil
}

func (s *TransactionCommandService) publish(ctx context.Context, eventType string, data any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.TransactionEventsStream, eventType, data); err != nil {
		log.Printf("Failed to publish %s event: %v", eventType, err)
	}
}
