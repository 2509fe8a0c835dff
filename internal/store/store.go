// Package store is the document-store facade shared by the MongoDB,
// PostgreSQL and in-memory backends. Documents and filters are bson.M so the
// same values flow through every backend; filters are top-level equality only.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

// Collection names.
const (
	Accounts     = "accounts"
	Users        = "users"
	Posts        = "posts"
	Transactions = "transactions"
)

var (
	ErrNoDocuments  = errors.New("no documents in result")
	ErrDuplicateKey = errors.New("duplicate key")
)

type Collection interface {
	// FindOne returns ErrNoDocuments when nothing matches.
	FindOne(ctx context.Context, filter bson.M) (bson.M, error)
	Find(ctx context.Context, filter bson.M) ([]bson.M, error)
	// InsertOne returns ErrDuplicateKey on a unique index violation.
	InsertOne(ctx context.Context, doc bson.M) error
	// UpdateOne merges set into the first match and reports the number of
	// documents matched.
	UpdateOne(ctx context.Context, filter, set bson.M) (int64, error)
	DeleteOne(ctx context.Context, filter bson.M) (int64, error)
}

type Database interface {
	Collection(name string) Collection
}
