package command

import (
	"context"

	"github.com/tradepost/transaction-service/shared/models"
)

// fieldRule describes one client-mutable transaction field: validate checks
// the raw JSON value, resolve turns it into the stored value.
type fieldRule struct {
	validate func(name string, value any) *models.FieldError
	resolve  func(ctx context.Context, s *TransactionCommandService, value any) (any, error)
}

var mutableFields = map[string]fieldRule{
	"post": {
		validate: requireString,
		resolve: func(ctx context.Context, s *TransactionCommandService, value any) (any, error) {
			return s.requirePost(ctx, value.(string))
		},
	},
}

func requireString(name string, value any) *models.FieldError {
	if v, ok := value.(string); !ok || v == "" {
		return &models.FieldError{Field: name, Message: "Value must be a non-empty string", Type: "string"}
	}
	return nil
}
