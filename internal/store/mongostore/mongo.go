// Package mongostore backs store.Database with MongoDB and runs read views
// as native aggregation pipelines.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tradepost/transaction-service/internal/readmodel"
	"github.com/tradepost/transaction-service/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Database struct {
	client *mongo.Client
	db     *mongo.Database
}

func Connect(ctx context.Context, uri, name string) (*Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return &Database{client: client, db: client.Database(name)}, nil
}

func (d *Database) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

func (d *Database) Collection(name string) store.Collection {
	return &Collection{coll: d.db.Collection(name)}
}

// EnsureUniqueIndex creates an ascending compound unique index over fields.
func (d *Database) EnsureUniqueIndex(ctx context.Context, collection string, fields ...string) error {
	keys := bson.D{}
	for _, f := range fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	_, err := d.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create index on %s: %w", collection, err)
	}
	return nil
}

// Compose runs the view as a single aggregation.
func (d *Database) Compose(ctx context.Context, v readmodel.View) ([]bson.M, error) {
	cursor, err := d.db.Collection(v.Collection).Aggregate(ctx, v.Pipeline())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate %s: %w", v.Collection, err)
	}
	docs := []bson.M{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", v.Collection, err)
	}
	return docs, nil
}

type Collection struct {
	coll *mongo.Collection
}

func (c *Collection) FindOne(ctx context.Context, filter bson.M) (bson.M, error) {
	var doc bson.M
	err := mapError(c.coll.FindOne(ctx, filter).Decode(&doc))
	if errors.Is(err, store.ErrNoDocuments) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find in %s: %w", c.coll.Name(), err)
	}
	return doc, nil
}

func (c *Collection) Find(ctx context.Context, filter bson.M) ([]bson.M, error) {
	cursor, err := c.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find in %s: %w", c.coll.Name(), err)
	}
	docs := []bson.M{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", c.coll.Name(), err)
	}
	return docs, nil
}

func (c *Collection) InsertOne(ctx context.Context, doc bson.M) error {
	_, err := c.coll.InsertOne(ctx, doc)
	if err = mapError(err); errors.Is(err, store.ErrDuplicateKey) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", c.coll.Name(), err)
	}
	return nil
}

func (c *Collection) UpdateOne(ctx context.Context, filter, set bson.M) (int64, error) {
	res, err := c.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err = mapError(err); errors.Is(err, store.ErrDuplicateKey) {
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update %s: %w", c.coll.Name(), err)
	}
	return res.MatchedCount, nil
}

func (c *Collection) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	res, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", c.coll.Name(), err)
	}
	return res.DeletedCount, nil
}

// mapError translates driver errors into the store sentinels. Other errors
// pass through unchanged.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNoDocuments
	case mongo.IsDuplicateKeyError(err):
		return store.ErrDuplicateKey
	}
	return err
}
