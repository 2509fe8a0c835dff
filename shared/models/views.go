package models

// TransactionView is the enriched read projection of a transaction: the
// stored fields plus the joined "client" and "post" arrays. Joined entities
// are owned by other services, so the view stays an open document.
type TransactionView map[string]any
