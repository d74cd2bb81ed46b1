package middleware

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Global limits (per IP)
	GlobalAPIMax        int
	GlobalAPIExpiration time.Duration

	// Public endpoint limits (per IP) - read-only, cacheable
	PublicReadMax        int
	PublicReadExpiration time.Duration

	// Keyed endpoint limits (per API key)
	KeyedMax        int
	KeyedExpiration time.Duration
}

// DefaultRateLimitConfig returns production-safe defaults
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		// Global: 200/min = ~3.3 req/sec - very generous for normal use
		GlobalAPIMax:        200,
		GlobalAPIExpiration: 1 * time.Minute,

		// Public read endpoints: 120/min = 2 req/sec
		PublicReadMax:        120,
		PublicReadExpiration: 1 * time.Minute,

		// Keyed operations: 60/min = 1 req/sec average
		KeyedMax:        60,
		KeyedExpiration: 1 * time.Minute,
	}
}

// LoadRateLimitConfig loads config from environment variables with defaults
func LoadRateLimitConfig() *RateLimitConfig {
	config := DefaultRateLimitConfig()

	if v := os.Getenv("RATE_LIMIT_GLOBAL_API"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.GlobalAPIMax = n
		}
	}

	if v := os.Getenv("RATE_LIMIT_PUBLIC_READ"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.PublicReadMax = n
		}
	}

	if v := os.Getenv("RATE_LIMIT_KEYED"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.KeyedMax = n
		}
	}

	// Development mode: more lenient limits
	if os.Getenv("ENVIRONMENT") == "development" {
		config.GlobalAPIMax = 1000
		config.PublicReadMax = 600
		log.Println("⚠️  [RATE-LIMIT] Development mode: using relaxed rate limits")
	}

	return config
}

// GlobalAPIRateLimiter creates a rate limiter for all API requests
func GlobalAPIRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.GlobalAPIMax,
		Expiration: config.GlobalAPIExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "global:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] Global limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many requests. Please slow down.",
				"retry_after": int(config.GlobalAPIExpiration.Seconds()),
			})
		},
	})
}

// PublicReadRateLimiter for public read-only endpoints
func PublicReadRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.PublicReadMax,
		Expiration: config.PublicReadExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "public:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] Public endpoint limit reached for IP: %s on %s", c.IP(), c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many requests to this endpoint.",
				"retry_after": int(config.PublicReadExpiration.Seconds()),
			})
		},
	})
}

// KeyedRateLimiter for endpoints behind an API key (keys per key, falling
// back to IP for unauthenticated attempts)
func KeyedRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.KeyedMax,
		Expiration: config.KeyedExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			if apiKey := c.Get("X-API-Key"); apiKey != "" {
				return "key:" + apiKey
			}
			return "key-ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] Keyed endpoint limit reached on %s", c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many requests. Please wait before trying again.",
				"retry_after": int(config.KeyedExpiration.Seconds()),
			})
		},
	})
}
