package router

import (
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthMiddleware validates the bearer token and exposes user_id and org_id
// as locals for handlers and audit entries.
func AuthMiddleware(secret string) fiber.Handler {
	key := []byte(secret)
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "), func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return key, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid claims")
		}
		if exp, err := claims.GetExpirationTime(); err != nil || exp == nil || exp.Before(time.Now()) {
			return fiber.NewError(fiber.StatusUnauthorized, "token expired")
		}
		if sub, _ := claims["sub"].(string); sub != "" {
			c.Locals("user_id", sub)
		}
		if org, _ := claims["org_id"].(string); org != "" {
			c.Locals("org_id", org)
		}
		return c.Next()
	}
}

// AuthFromEnv builds the middleware from JWT_SECRET. An empty secret makes
// the API unusable on purpose; there is no unauthenticated fallback.
func AuthFromEnv() fiber.Handler {
	return AuthMiddleware(os.Getenv("JWT_SECRET"))
}

// RequestID tags every request with an X-Request-Id (caller supplied or
// freshly minted) so log lines can be correlated across the push goroutine.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get("X-Request-Id"))
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals("request_id", id)
		c.Set("X-Request-Id", id)
		return c.Next()
	}
}
