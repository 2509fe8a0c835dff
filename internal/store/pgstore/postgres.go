// Package pgstore backs store.Database with PostgreSQL. Every collection is a
// table of JSONB documents keyed by the document _id; filters use JSONB
// containment, so references are compared in their JSON (hex string) form.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/tradepost/transaction-service/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const uniqueViolation = "23505"

type Database struct {
	db *sql.DB
}

func New(db *sql.DB) *Database {
	return &Database{db: db}
}

// EnsureSchema creates the document tables if they are missing.
func (d *Database) EnsureSchema(ctx context.Context, collections ...string) error {
	for _, name := range collections {
		query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, doc JSONB NOT NULL)`, pq.QuoteIdentifier(name))
		if _, err := d.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table %s: %w", name, err)
		}
	}
	return nil
}

func (d *Database) EnsureUniqueIndex(ctx context.Context, collection string, fields ...string) error {
	if _, err := d.db.ExecContext(ctx, uniqueIndexStatement(collection, fields)); err != nil {
		return fmt.Errorf("failed to create index on %s: %w", collection, err)
	}
	return nil
}

func (d *Database) Collection(name string) store.Collection {
	return &Collection{db: d.db, table: pq.QuoteIdentifier(name), name: name}
}

func uniqueIndexStatement(collection string, fields []string) string {
	exprs := make([]string, len(fields))
	for i, f := range fields {
		exprs[i] = fmt.Sprintf("(doc->>%s)", pq.QuoteLiteral(f))
	}
	index := pq.QuoteIdentifier(collection + "_" + strings.Join(fields, "_") + "_key")
	return fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)",
		index, pq.QuoteIdentifier(collection), strings.Join(exprs, ", "))
}

type Collection struct {
	db    *sql.DB
	table string
	name  string
}

func (c *Collection) FindOne(ctx context.Context, filter bson.M) (bson.M, error) {
	arg, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter: %w", err)
	}
	var raw []byte
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE doc @> $1::jsonb LIMIT 1`, c.table)
	err = c.db.QueryRowContext(ctx, query, string(arg)).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, store.ErrNoDocuments
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find in %s: %w", c.name, err)
	}
	return decode(raw)
}

func (c *Collection) Find(ctx context.Context, filter bson.M) ([]bson.M, error) {
	arg, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter: %w", err)
	}
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE doc @> $1::jsonb`, c.table)
	rows, err := c.db.QueryContext(ctx, query, string(arg))
	if err != nil {
		return nil, fmt.Errorf("failed to find in %s: %w", c.name, err)
	}
	defer rows.Close()

	docs := []bson.M{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", c.name, err)
		}
		doc, err := decode(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", c.name, err)
	}
	return docs, nil
}

func (c *Collection) InsertOne(ctx context.Context, doc bson.M) error {
	id, err := documentID(doc)
	if err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2::jsonb)`, c.table)
	if _, err := c.db.ExecContext(ctx, query, id, string(data)); err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert into %s: %w", c.name, err)
	}
	return nil
}

func (c *Collection) UpdateOne(ctx context.Context, filter, set bson.M) (int64, error) {
	arg, err := json.Marshal(filter)
	if err != nil {
		return 0, fmt.Errorf("failed to encode filter: %w", err)
	}
	patch, err := json.Marshal(set)
	if err != nil {
		return 0, fmt.Errorf("failed to encode update: %w", err)
	}
	query := fmt.Sprintf(`
		UPDATE %[1]s SET doc = doc || $2::jsonb
		WHERE id = (SELECT id FROM %[1]s WHERE doc @> $1::jsonb LIMIT 1)
	`, c.table)
	result, err := c.db.ExecContext(ctx, query, string(arg), string(patch))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrDuplicateKey
		}
		return 0, fmt.Errorf("failed to update %s: %w", c.name, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rows, nil
}

func (c *Collection) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	arg, err := json.Marshal(filter)
	if err != nil {
		return 0, fmt.Errorf("failed to encode filter: %w", err)
	}
	query := fmt.Sprintf(`
		DELETE FROM %[1]s
		WHERE id = (SELECT id FROM %[1]s WHERE doc @> $1::jsonb LIMIT 1)
	`, c.table)
	result, err := c.db.ExecContext(ctx, query, string(arg))
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", c.name, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rows, nil
}

func documentID(doc bson.M) (string, error) {
	switch id := doc["_id"].(type) {
	case primitive.ObjectID:
		return id.Hex(), nil
	case string:
		if id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("document has no usable _id")
}

func decode(raw []byte) (bson.M, error) {
	doc := bson.M{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
