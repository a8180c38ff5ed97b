// Package businessflow contains the core business logic and use cases for sequence allocation
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Allocation errors
	ErrInvalidCounterName = errors.New("invalid counter name")
	ErrStorageUnavailable = errors.New("sequence storage unavailable")
	ErrAllocationConflict = errors.New("sequence allocation conflict")

	// Counter administration errors
	ErrCounterNotFound      = errors.New("counter not found")
	ErrCounterAlreadyExists = errors.New("counter already exists")
	ErrInvalidSeedValue     = errors.New("seed value must not be negative")
)

// Business error codes, surfaced verbatim in API error responses
const (
	CodeInvalidCounterName   = "INVALID_COUNTER_NAME"
	CodeStorageUnavailable   = "STORAGE_UNAVAILABLE"
	CodeAllocationConflict   = "ALLOCATION_CONFLICT"
	CodeCounterNotFound      = "COUNTER_NOT_FOUND"
	CodeCounterAlreadyExists = "COUNTER_ALREADY_EXISTS"
	CodeInvalidSeedValue     = "INVALID_SEED_VALUE"
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// BusinessErrorCode returns the code of the first BusinessError in err's chain
func BusinessErrorCode(err error) (string, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code, true
	}
	return "", false
}

func IsInvalidCounterName(err error) bool {
	return errors.Is(err, ErrInvalidCounterName)
}

func IsStorageUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

func IsAllocationConflict(err error) bool {
	return errors.Is(err, ErrAllocationConflict)
}

func IsCounterNotFound(err error) bool {
	return errors.Is(err, ErrCounterNotFound)
}

func IsCounterAlreadyExists(err error) bool {
	return errors.Is(err, ErrCounterAlreadyExists)
}

func IsInvalidSeedValue(err error) bool {
	return errors.Is(err, ErrInvalidSeedValue)
}
