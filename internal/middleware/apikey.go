package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"dispatchboard/internal/config"
)

// maskKey shortens a key for logs.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:8] + "***"
}

func keyIn(key string, keys []string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// ReadOnlyAPIKey validates the X-API-Key header against both admin and
// readonly keys. Query endpoints accept either.
func ReadOnlyAPIKey(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := c.Get("X-API-Key")
		if apiKey == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Missing API key. Include X-API-Key header.",
			})
		}

		switch {
		case keyIn(apiKey, cfg.APIKeys):
			c.Locals("auth_role", "admin")
		case keyIn(apiKey, cfg.ReadonlyAPIKeys):
			c.Locals("auth_role", "readonly")
		default:
			log.Printf("❌ [APIKEY-AUTH] Invalid key attempt: %s", maskKey(apiKey))
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Invalid API key",
			})
		}

		return c.Next()
	}
}

// AdminAPIKey validates the X-API-Key header against admin keys only.
// Mutating endpoints (manual sync) require it.
func AdminAPIKey(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := c.Get("X-API-Key")
		if apiKey == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Missing API key. Include X-API-Key header.",
			})
		}

		if !keyIn(apiKey, cfg.APIKeys) {
			log.Printf("❌ [APIKEY-AUTH] Non-admin key on admin endpoint: %s", maskKey(apiKey))
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Admin API key required",
			})
		}

		c.Locals("auth_role", "admin")
		return c.Next()
	}
}
