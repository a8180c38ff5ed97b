package utils

import (
	"github.com/go-playground/validator/v10"
)

// CounterNameTag is the validator tag for sequence counter names
const CounterNameTag = "counter_name"

// IsValidCounterName reports whether name is 1-64 characters, starts with
// an ASCII letter or digit and otherwise holds only letters, digits, '_',
// '-', '.' or ':'.
func IsValidCounterName(name string) bool {
	if len(name) == 0 || len(name) > MaxCounterNameLength {
		return false
	}
	for i := 0; i < len(name); i++ {
		ch := name[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case i > 0 && (ch == '_' || ch == '-' || ch == '.' || ch == ':'):
		default:
			return false
		}
	}
	return true
}

// NewValidator returns a validator with the application's custom tags registered
func NewValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for an empty tag or nil func
	_ = v.RegisterValidation(CounterNameTag, func(fl validator.FieldLevel) bool {
		return IsValidCounterName(fl.Field().String())
	})
	return v
}
