package readmodel

import (
	"context"
	"fmt"

	"github.com/tradepost/transaction-service/internal/store"
	"go.mongodb.org/mongo-driver/bson"
)

// Joiner runs views as application-level joins: one Find for the base
// collection, then one Find per join per document. Joins apply in order on
// each document, as consecutive $lookup stages would.
type Joiner struct {
	db store.Database
}

func NewJoiner(db store.Database) *Joiner {
	return &Joiner{db: db}
}

func (j *Joiner) Compose(ctx context.Context, v View) ([]bson.M, error) {
	docs, err := j.db.Collection(v.Collection).Find(ctx, v.filter())
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", v.Collection, err)
	}
	for _, doc := range docs {
		if err := j.resolve(ctx, doc, v.Joins); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func (j *Joiner) resolve(ctx context.Context, doc bson.M, joins []Join) error {
	for _, join := range joins {
		matched := []bson.M{}
		if local, ok := doc[join.LocalField]; ok && local != nil {
			found, err := j.db.Collection(join.From).Find(ctx, bson.M{join.ForeignField: local})
			if err != nil {
				return fmt.Errorf("failed to join %s: %w", join.From, err)
			}
			for _, m := range found {
				if err := j.resolve(ctx, m, join.Joins); err != nil {
					return err
				}
				for _, f := range join.Exclude {
					delete(m, f)
				}
			}
			matched = found
		}
		doc[join.As] = matched
	}
	return nil
}
