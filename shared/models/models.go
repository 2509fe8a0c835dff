package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Transaction links a client account to a post it claims.
type Transaction struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	Client    primitive.ObjectID `bson:"client" json:"client"`
	Post      primitive.ObjectID `bson:"post" json:"post"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// Document is the stored form of the transaction.
func (t *Transaction) Document() bson.M {
	return bson.M{
		"_id":        t.ID,
		"client":     t.Client,
		"post":       t.Post,
		"created_at": t.CreatedAt,
		"updated_at": t.UpdatedAt,
	}
}
