package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// AuthHeader is the request header carrying the API key.
const AuthHeader = "X-Api-Key"

// Auth validates the API key on every request. An empty configured key
// disables the check, which is the development default.
func Auth(apiKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if apiKey == "" {
			return c.Next()
		}
		supplied := c.Get(AuthHeader)
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(apiKey)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or missing API key",
			})
		}
		return c.Next()
	}
}
