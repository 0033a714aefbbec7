package utils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs `validate` tags on domain event inputs before they
// reach the posting path.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}
