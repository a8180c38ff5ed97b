package handlers

import (
	"context"
	"time"

	"github.com/amirphl/order-sequencer/app/dto"
	"github.com/amirphl/order-sequencer/utils"
	"github.com/gofiber/fiber/v3"
)

// PingFunc checks the sequence store is reachable
type PingFunc func(ctx context.Context) error

// HealthHandler reports liveness and store reachability
type HealthHandler struct {
	backend string
	version string
	ping    PingFunc
}

// NewHealthHandler creates a health handler; ping may be nil
func NewHealthHandler(backend, version string, ping PingFunc) *HealthHandler {
	return &HealthHandler{backend: backend, version: version, ping: ping}
}

// Check answers 200 when the store responds and 503 otherwise
func (h *HealthHandler) Check(c fiber.Ctx) error {
	res := dto.HealthResponse{
		Status:    "ok",
		Backend:   h.backend,
		Version:   h.version,
		Timestamp: utils.UTCNowRFC3339(),
	}

	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			res.Status = "unavailable"
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
				Success: false,
				Message: "Sequence storage is unavailable",
				Data:    res,
				Error: dto.ErrorDetail{
					Code:    "STORAGE_UNAVAILABLE",
					Details: err.Error(),
				},
			})
		}
	}

	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data:    res,
	})
}
