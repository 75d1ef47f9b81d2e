package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ojedapedro/colegiopay/internal/core/security"
)

// RoleKey is the fiber.Locals key holding the caller's role.
const RoleKey = "role"

// Protected lets a request through when it carries a key whose role allows
// required. A nil keyring disables the check (local development only).
func Protected(keys *security.Keyring, required security.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if keys == nil {
			c.Locals(RoleKey, security.RoleReviewer)
			return c.Next()
		}

		// 1. Get Token from Header
		authHeader := c.Get("Authorization") // "Bearer cp_live_..."
		if authHeader == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Missing API Key"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid Header Format"})
		}

		// 2. Match against the configured hashes (We never store plain text!)
		role, ok := keys.Authenticate(parts[1])
		if !ok {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid API Key"})
		}
		if !role.Allows(required) {
			return c.Status(http.StatusForbidden).JSON(fiber.Map{"error": "This key cannot perform this action"})
		}

		// 3. Save Role to Context (So handler knows who is calling)
		c.Locals(RoleKey, role)

		return c.Next()
	}
}
