// Package memstore is an in-process store.Database used by tests and by
// STORE_DRIVER=memory. Documents keep insertion order.
package memstore

import (
	"context"
	"maps"
	"reflect"
	"sync"

	"github.com/tradepost/transaction-service/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Database struct {
	mu          sync.RWMutex
	collections map[string]*Collection
}

func NewDatabase() *Database {
	return &Database{collections: make(map[string]*Collection)}
}

func (d *Database) Collection(name string) store.Collection {
	return d.collection(name)
}

func (d *Database) collection(name string) *Collection {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.collections[name]
	if !ok {
		c = &Collection{}
		d.collections[name] = c
	}
	return c
}

// EnsureUniqueIndex rejects inserts and updates that would leave two
// documents of the collection with equal values for all fields.
func (d *Database) EnsureUniqueIndex(_ context.Context, collection string, fields ...string) error {
	c := d.collection(collection)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unique = append(c.unique, fields)
	return nil
}

// Seed inserts documents without any index checks.
func (d *Database) Seed(collection string, docs ...bson.M) {
	c := d.collection(collection)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range docs {
		c.docs = append(c.docs, maps.Clone(doc))
	}
}

type Collection struct {
	mu     sync.RWMutex
	docs   []bson.M
	unique [][]string
}

func (c *Collection) FindOne(_ context.Context, filter bson.M) (bson.M, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, doc := range c.docs {
		if matches(doc, filter) {
			return maps.Clone(doc), nil
		}
	}
	return nil, store.ErrNoDocuments
}

func (c *Collection) Find(_ context.Context, filter bson.M) ([]bson.M, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := []bson.M{}
	for _, doc := range c.docs {
		if matches(doc, filter) {
			out = append(out, maps.Clone(doc))
		}
	}
	return out, nil
}

func (c *Collection) InsertOne(_ context.Context, doc bson.M) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.violatesUnique(doc, -1) {
		return store.ErrDuplicateKey
	}
	c.docs = append(c.docs, maps.Clone(doc))
	return nil
}

func (c *Collection) UpdateOne(_ context.Context, filter, set bson.M) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, doc := range c.docs {
		if !matches(doc, filter) {
			continue
		}
		updated := maps.Clone(doc)
		maps.Copy(updated, set)
		if c.violatesUnique(updated, i) {
			return 0, store.ErrDuplicateKey
		}
		c.docs[i] = updated
		return 1, nil
	}
	return 0, nil
}

func (c *Collection) DeleteOne(_ context.Context, filter bson.M) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, doc := range c.docs {
		if matches(doc, filter) {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

// violatesUnique reports whether doc collides with any document other than
// the one at index skip.
func (c *Collection) violatesUnique(doc bson.M, skip int) bool {
	for _, fields := range c.unique {
		key := bson.M{}
		for _, f := range fields {
			v, ok := doc[f]
			if !ok {
				key = nil
				break
			}
			key[f] = v
		}
		if key == nil {
			continue
		}
		for i, other := range c.docs {
			if i != skip && matches(other, key) {
				return true
			}
		}
	}
	return false
}

func matches(doc, filter bson.M) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok || !equal(got, want) {
			return false
		}
	}
	return true
}

// equal compares ObjectIDs and their hex form as the same value, matching
// how the JSONB backend stores references.
func equal(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func normalize(v any) any {
	if oid, ok := v.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return v
}
