package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/tradepost/transaction-service/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccountRepository checks accounts owned by the account service. Only
// existence matters here; account fields reach clients through the read model.
type AccountRepository struct {
	accounts store.Collection
}

func NewAccountRepository(db store.Database) *AccountRepository {
	return &AccountRepository{accounts: db.Collection(store.Accounts)}
}

func (r *AccountRepository) Exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	return exists(ctx, r.accounts, id)
}

func exists(ctx context.Context, coll store.Collection, id primitive.ObjectID) (bool, error) {
	_, err := coll.FindOne(ctx, bson.M{"_id": id})
	if errors.Is(err, store.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", id.Hex(), err)
	}
	return true, nil
}
