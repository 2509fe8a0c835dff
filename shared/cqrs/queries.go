package cqrs

// GetTransactionQuery fetches a single enriched transaction.
type GetTransactionQuery struct {
	TransactionID string
}

// ListTransactionsQuery fetches every enriched transaction.
type ListTransactionsQuery struct{}
