package handlers

import (
	"time"

	"github.com/amirphl/order-sequencer/app/dto"
	businessflow "github.com/amirphl/order-sequencer/business_flow"
	"github.com/amirphl/order-sequencer/models"
	"github.com/amirphl/order-sequencer/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	fiberutils "github.com/gofiber/utils/v2"
	"github.com/samber/lo"
)

// SequenceHandlerInterface defines the contract for sequence counter handlers
type SequenceHandlerInterface interface {
	Next(c fiber.Ctx) error
	Current(c fiber.Ctx) error
	List(c fiber.Ctx) error
	Seed(c fiber.Ctx) error
}

// SequenceHandler exposes the sequence allocator over HTTP
type SequenceHandler struct {
	flow      businessflow.SequenceFlow
	validator *validator.Validate
	timeout   time.Duration
}

// NewSequenceHandler creates a new sequence handler
func NewSequenceHandler(flow businessflow.SequenceFlow, timeout time.Duration) *SequenceHandler {
	if timeout <= 0 {
		timeout = utils.DefaultRequestTimeout
	}
	return &SequenceHandler{
		flow:      flow,
		validator: utils.NewValidator(),
		timeout:   timeout,
	}
}

func (h *SequenceHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *SequenceHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Next allocates the next value of a counter
// @Summary Allocate next sequence value
// @Tags Sequences
// @Produce json
// @Param name path string true "Counter name"
// @Success 200 {object} dto.APIResponse{data=dto.NextValueResponse}
// @Failure 400 {object} dto.APIResponse "Invalid counter name"
// @Failure 503 {object} dto.APIResponse "Storage unavailable"
// @Router /api/v1/sequences/{name}/next [post]
func (h *SequenceHandler) Next(c fiber.Ctx) error {
	name := counterNameParam(c)
	if details, ok := h.validateName(name); !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid counter name", businessflow.CodeInvalidCounterName, details)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/sequences/:name/next", h.timeout)
	defer cancel()

	value, err := h.flow.NextValue(ctx, name)
	if err != nil {
		return h.flowError(c, err)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Sequence value allocated", dto.NextValueResponse{
		Name:  name,
		Value: value,
	})
}

// Current returns the last allocated value of a counter
// @Summary Read current sequence value
// @Tags Sequences
// @Produce json
// @Param name path string true "Counter name"
// @Success 200 {object} dto.APIResponse{data=dto.CurrentValueResponse}
// @Failure 404 {object} dto.APIResponse "Counter not found"
// @Router /api/v1/sequences/{name} [get]
func (h *SequenceHandler) Current(c fiber.Ctx) error {
	name := counterNameParam(c)
	if details, ok := h.validateName(name); !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid counter name", businessflow.CodeInvalidCounterName, details)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/sequences/:name", h.timeout)
	defer cancel()

	value, err := h.flow.CurrentValue(ctx, name)
	if err != nil {
		return h.flowError(c, err)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Sequence value retrieved", dto.CurrentValueResponse{
		Name:  name,
		Value: value,
	})
}

// List returns every counter ordered by name
// @Summary List sequence counters
// @Tags Sequences
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.ListSequenceCountersResponse}
// @Router /api/v1/sequences [get]
func (h *SequenceHandler) List(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/v1/sequences", h.timeout)
	defer cancel()

	counters, err := h.flow.ListCounters(ctx)
	if err != nil {
		return h.flowError(c, err)
	}

	items := lo.Map(counters, func(counter models.SequenceCounter, _ int) dto.SequenceCounterDTO {
		return businessflow.ToSequenceCounterDTO(counter)
	})

	return h.SuccessResponse(c, fiber.StatusOK, "Sequence counters retrieved", dto.ListSequenceCountersResponse{
		Counters: items,
		Total:    len(items),
	})
}

// Seed creates a counter that continues from a given value
// @Summary Seed a sequence counter
// @Tags Sequences
// @Accept json
// @Produce json
// @Param name path string true "Counter name"
// @Param request body dto.SeedCounterRequest true "Starting value"
// @Success 201 {object} dto.APIResponse{data=dto.SeedCounterResponse}
// @Failure 409 {object} dto.APIResponse "Counter already exists"
// @Router /api/v1/sequences/{name}/seed [post]
func (h *SequenceHandler) Seed(c fiber.Ctx) error {
	name := counterNameParam(c)
	if details, ok := h.validateName(name); !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid counter name", businessflow.CodeInvalidCounterName, details)
	}

	var req dto.SeedCounterRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/sequences/:name/seed", h.timeout)
	defer cancel()

	counter, err := h.flow.SeedCounter(ctx, name, *req.Value)
	if err != nil {
		return h.flowError(c, err)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Sequence counter seeded", dto.SeedCounterResponse{
		Message: "Next allocation continues after the seeded value",
		Counter: businessflow.ToSequenceCounterDTO(*counter),
	})
}

// counterNameParam copies :name out of the request buffer, which fasthttp
// reuses once the handler returns; the flow keeps the name in stores and
// metric labels.
func counterNameParam(c fiber.Ctx) string {
	return fiberutils.CopyString(c.Params("name"))
}

// validateName checks the :name path parameter before any store access
func (h *SequenceHandler) validateName(name string) ([]string, bool) {
	params := dto.CounterNameParams{Name: name}
	if err := h.validator.Struct(&params); err != nil {
		return validationMessages(err), false
	}
	return nil, true
}

func (h *SequenceHandler) flowError(c fiber.Ctx, err error) error {
	code, ok := businessflow.BusinessErrorCode(err)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "An internal server error occurred", "INTERNAL_ERROR", nil)
	}
	status, message := businessErrorStatus(code)
	return h.ErrorResponse(c, status, message, code, nil)
}
