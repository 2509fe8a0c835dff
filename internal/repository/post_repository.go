package repository

import (
	"context"

	"github.com/tradepost/transaction-service/internal/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostRepository checks posts owned by the post service.
type PostRepository struct {
	posts store.Collection
}

func NewPostRepository(db store.Database) *PostRepository {
	return &PostRepository{posts: db.Collection(store.Posts)}
}

func (r *PostRepository) Exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	return exists(ctx, r.posts, id)
}
