package events

import "time"

// Event types
const (
	TransactionCreated = "transaction.created"
	TransactionUpdated = "transaction.updated"
	TransactionDeleted = "transaction.deleted"

	// Published by the account, user and post services.
	AccountUpdated = "account.updated"
	AccountDeleted = "account.deleted"
	UserCreated    = "user.created"
	UserUpdated    = "user.updated"
	UserDeleted    = "user.deleted"
	PostUpdated    = "post.updated"
	PostDeleted    = "post.deleted"
)

// Stream names
const (
	TransactionEventsStream = "transaction.events"
	AccountEventsStream     = "account.events"
	UserEventsStream        = "user.events"
	PostEventsStream        = "post.events"
)

// Base event structure
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type TransactionCreatedEvent struct {
	TransactionID string `json:"transactionId"`
	AccountID     string `json:"accountId"`
	PostID        string `json:"postId"`
}

type TransactionUpdatedEvent struct {
	TransactionID string   `json:"transactionId"`
	AccountID     string   `json:"accountId"`
	Fields        []string `json:"fields"`
}

type TransactionDeletedEvent struct {
	TransactionID string `json:"transactionId"`
	AccountID     string `json:"accountId"`
}
