package middleware

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/tradepost/transaction-service/shared/models"
)

var validate = newValidator()

// newValidator reports fields by their JSON key so error details match the
// request body.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

type BadRequestErrorResponse struct {
	Error   string              `json:"error"`
	Details []models.FieldError `json:"details"`
}

func ValidateRequest(obj any) []models.FieldError {
	err := validate.Struct(obj)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []models.FieldError{{Field: "body", Message: err.Error(), Type: "invalid"}}
	}

	var validationErrors []models.FieldError
	for _, err := range fieldErrs {
		validationErrors = append(validationErrors, models.FieldError{
			Field:   err.Field(),
			Message: getErrorMsg(err),
			Type:    err.Tag(),
		})
	}
	return validationErrors
}

func getErrorMsg(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "hexadecimal":
		return "Value must be hexadecimal"
	case "len":
		return "Value must be " + err.Param() + " characters long"
	default:
		return "Invalid value"
	}
}

func RespondWithValidationError(c *gin.Context, validationErrors []models.FieldError) {
	c.JSON(http.StatusBadRequest, BadRequestErrorResponse{
		Error:   "Invalid request data",
		Details: validationErrors,
	})
}

func RespondWithError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"error": message,
	})
}
