// Package readmodel describes enriched read views as data: a base collection,
// an equality filter and an ordered list of correlated joins. A View compiles
// to a MongoDB aggregation pipeline or runs through the application-level
// Joiner on backends without one.
package readmodel

import (
	"context"

	"github.com/tradepost/transaction-service/internal/store"
	"go.mongodb.org/mongo-driver/bson"
)

// Join embeds the documents of From whose ForeignField equals the joined
// document's LocalField as an array under As. Nested Joins resolve against
// each embedded document before the Exclude fields are stripped from it.
type Join struct {
	From         string
	LocalField   string
	ForeignField string
	As           string
	Exclude      []string
	Joins        []Join
}

type View struct {
	Collection string
	Filter     bson.M
	Joins      []Join
}

// Composer executes a View.
type Composer interface {
	Compose(ctx context.Context, v View) ([]bson.M, error)
}

func (v View) filter() bson.M {
	if v.Filter == nil {
		return bson.M{}
	}
	return v.Filter
}

// Transactions is the enriched transaction view: the client account with its
// user, and the post with its owner.
func Transactions(filter bson.M) View {
	return View{
		Collection: store.Transactions,
		Filter:     filter,
		Joins: []Join{
			{
				From:         store.Accounts,
				LocalField:   "client",
				ForeignField: "_id",
				As:           "client",
				Exclude:      []string{"status", "password", "created_at", "created_by", "updated_at"},
				Joins: []Join{{
					From:         store.Users,
					LocalField:   "_id",
					ForeignField: "account",
					As:           "user",
					Exclude:      []string{"_id", "created_at", "created_by"},
				}},
			},
			{
				From:         store.Posts,
				LocalField:   "post",
				ForeignField: "_id",
				As:           "post",
				Exclude:      []string{"account"},
				Joins: []Join{{
					From:         store.Users,
					LocalField:   "account",
					ForeignField: "account",
					As:           "owner",
					Exclude:      []string{"_id"},
				}},
			},
		},
	}
}
