package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Windi-Fikriyansyah/gudang_be/internal/utils"
)

func claimsFrom(c *fiber.Ctx) (*utils.Claims, bool) {
	raw := c.Locals("user")
	if raw == nil {
		return nil, false
	}

	token, ok := raw.(*jwt.Token)
	if !ok || token == nil {
		return nil, false
	}

	claims, ok := token.Claims.(*utils.Claims)
	return claims, ok
}

func AttachJWTLocals() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := claimsFrom(c)
		if !ok {
			return fiber.ErrUnauthorized
		}

		uid := strings.TrimSpace(claims.UserID)
		role := strings.ToLower(strings.TrimSpace(claims.Role))

		if uid == "" {
			return fiber.ErrUnauthorized
		}

		c.Locals("userId", uid)
		c.Locals("role", role)

		return c.Next()
	}
}
