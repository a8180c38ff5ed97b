package middleware

import (
	"crypto/subtle"
	"slices"

	"github.com/amirphl/order-sequencer/app/dto"
	"github.com/gofiber/fiber/v3"
)

// APIKeyConfig configures APIKey
type APIKeyConfig struct {
	Header string
	Keys   []string
	// Next skips the check when it returns true
	Next func(c fiber.Ctx) bool
}

// APIKey rejects requests without one of the configured keys in the header
func APIKey(cfg APIKeyConfig) fiber.Handler {
	if cfg.Header == "" {
		cfg.Header = "X-API-Key"
	}
	keys := make([][]byte, 0, len(cfg.Keys))
	for _, k := range cfg.Keys {
		keys = append(keys, []byte(k))
	}

	return func(c fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}

		apiKey := c.Get(cfg.Header)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "API key is required",
				Error: dto.ErrorDetail{
					Code: "MISSING_API_KEY",
				},
			})
		}

		presented := []byte(apiKey)
		valid := slices.ContainsFunc(keys, func(k []byte) bool {
			return subtle.ConstantTimeCompare(presented, k) == 1
		})
		if !valid {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Invalid API key",
				Error: dto.ErrorDetail{
					Code: "INVALID_API_KEY",
				},
			})
		}

		return c.Next()
	}
}

// IPBlacklist rejects requests from the listed client IPs
func IPBlacklist(blocked []string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if slices.Contains(blocked, c.IP()) {
			return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
				Success: false,
				Message: "Access denied from this IP address",
				Error: dto.ErrorDetail{
					Code: "ACCESS_DENIED",
				},
			})
		}
		return c.Next()
	}
}
