package cqrs

// CreateTransactionCommand claims PostID for the authenticated account.
type CreateTransactionCommand struct {
	AccountID string
	PostID    string
}

// UpdateTransactionCommand carries the raw field map from the request body;
// the command service decides which fields are mutable.
type UpdateTransactionCommand struct {
	AccountID     string
	TransactionID string
	Fields        map[string]any
}

type DeleteTransactionCommand struct {
	AccountID     string
	TransactionID string
}
