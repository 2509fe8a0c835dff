package models

import (
	"errors"
	"strings"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrPostNotFound        = errors.New("post does not exist")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransactionExists   = errors.New("transaction exist")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ValidationError rejects a request body field by field.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return "invalid fields: " + strings.Join(names, ", ")
}
