package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/tradepost/transaction-service/internal/store"
	"github.com/tradepost/transaction-service/shared/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TransactionWriteRepository handles all state-mutating operations for transactions.
// Uniqueness of (client, post) is left to the store's unique index, and
// updates and deletes are conditional on _id, so no read precedes a write.
type TransactionWriteRepository struct {
	transactions store.Collection
}

func NewTransactionWriteRepository(db store.Database) *TransactionWriteRepository {
	return &TransactionWriteRepository{transactions: db.Collection(store.Transactions)}
}

func (r *TransactionWriteRepository) Create(ctx context.Context, transaction *models.Transaction) error {
	err := r.transactions.InsertOne(ctx, transaction.Document())
	if errors.Is(err, store.ErrDuplicateKey) {
		return models.ErrTransactionExists
	}
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *TransactionWriteRepository) Update(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	matched, err := r.transactions.UpdateOne(ctx, bson.M{"_id": id}, set)
	if errors.Is(err, store.ErrDuplicateKey) {
		return models.ErrTransactionExists
	}
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if matched == 0 {
		return models.ErrTransactionNotFound
	}
	return nil
}

func (r *TransactionWriteRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	deleted, err := r.transactions.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if deleted == 0 {
		return models.ErrTransactionNotFound
	}
	return nil
}
