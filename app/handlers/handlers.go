// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"fmt"
	"time"

	businessflow "github.com/amirphl/order-sequencer/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "counter_name":
		return err.Field() + " must be 1-64 letters, digits, '_', '-', '.' or ':' and start with a letter or digit"
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

func validationMessages(err error) []string {
	var messages []string
	if errs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range errs {
			messages = append(messages, getValidationErrorMessage(e))
		}
		return messages
	}
	return append(messages, err.Error())
}

// businessErrorStatus maps a flow error code onto an HTTP status and message
func businessErrorStatus(code string) (int, string) {
	switch code {
	case businessflow.CodeInvalidCounterName:
		return fiber.StatusBadRequest, "Invalid counter name"
	case businessflow.CodeInvalidSeedValue:
		return fiber.StatusBadRequest, "Invalid seed value"
	case businessflow.CodeCounterNotFound:
		return fiber.StatusNotFound, "Counter not found"
	case businessflow.CodeCounterAlreadyExists:
		return fiber.StatusConflict, "Counter already exists"
	case businessflow.CodeAllocationConflict:
		return fiber.StatusConflict, "Sequence allocation conflict, retry the request"
	case businessflow.CodeStorageUnavailable:
		return fiber.StatusServiceUnavailable, "Sequence storage is unavailable, retry the request"
	default:
		return fiber.StatusInternalServerError, "An internal server error occurred"
	}
}

// createRequestContext derives the flow context from the request: bounded by
// timeout and carrying request metadata for logs.
func createRequestContext(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(c.Context(), timeout)

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(requestid.FromContext(c))
	metadata.AddAdditional("endpoint", endpoint)

	return businessflow.WithClientMetadata(ctx, metadata), cancel
}
