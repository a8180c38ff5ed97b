package handlers

import (
	"time"

	"github.com/amirphl/order-sequencer/app/dto"
	businessflow "github.com/amirphl/order-sequencer/business_flow"
	"github.com/amirphl/order-sequencer/utils"
	"github.com/gofiber/fiber/v3"
)

// OrderNumberHandlerInterface defines the contract for order number handlers
type OrderNumberHandlerInterface interface {
	Next(c fiber.Ctx) error
}

// OrderNumberHandler mints order numbers for order creation services
type OrderNumberHandler struct {
	flow    businessflow.OrderNumberFlow
	timeout time.Duration
}

// NewOrderNumberHandler creates a new order number handler
func NewOrderNumberHandler(flow businessflow.OrderNumberFlow, timeout time.Duration) *OrderNumberHandler {
	if timeout <= 0 {
		timeout = utils.DefaultRequestTimeout
	}
	return &OrderNumberHandler{flow: flow, timeout: timeout}
}

func (h *OrderNumberHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *OrderNumberHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Next allocates one order number
// @Summary Allocate an order number
// @Tags Orders
// @Produce json
// @Success 201 {object} dto.APIResponse{data=dto.OrderNumberResponse}
// @Failure 503 {object} dto.APIResponse "Storage unavailable, order creation must abort"
// @Router /api/v1/orders/number [post]
func (h *OrderNumberHandler) Next(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/v1/orders/number", h.timeout)
	defer cancel()

	res, err := h.flow.NextOrderNumber(ctx)
	if err != nil {
		code, ok := businessflow.BusinessErrorCode(err)
		if !ok {
			return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to allocate order number", "ORDER_NUMBER_FAILED", nil)
		}
		status, message := businessErrorStatus(code)
		return h.ErrorResponse(c, status, message, code, nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Order number allocated", res)
}
