package auth

import (
	"strings"

	"jewelshop-backend/internal/config"
	"jewelshop-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const ctxPrincipalKey = "principal"

// Principal is the authenticated caller, taken from the token claims.
type Principal struct {
	UserID uint
	Name   string
	Email  string
	Role   models.UserRole
}

func (p *Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// Current returns the caller stored by JWTMiddleware.
func Current(c *fiber.Ctx) (*Principal, error) {
	p, ok := c.Locals(ctxPrincipalKey).(*Principal)
	if !ok || p == nil || p.UserID == 0 {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "no authenticated user")
	}
	return p, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// JWTMiddleware rejects requests without a valid token and stores the
// caller for Current. Tokens naming an unknown role are refused, so a
// role removed from the shop stops working at once.
func JWTMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing Authorization header")
		}
		raw, ok := bearerToken(header)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization must be 'Bearer <token>'")
		}

		claims, err := ParseToken(cfg.JWTSecret, raw)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}
		if claims.UserID == 0 || (claims.Role != models.RoleAdmin && claims.Role != models.RoleStaff) {
			return fiber.NewError(fiber.StatusUnauthorized, "token does not name a shop user")
		}

		c.Locals(ctxPrincipalKey, &Principal{
			UserID: claims.UserID,
			Name:   claims.Name,
			Email:  claims.Email,
			Role:   claims.Role,
		})
		return c.Next()
	}
}

func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := Current(c)
		if err != nil {
			return fiber.NewError(fiber.StatusForbidden, "role missing from token")
		}
		for _, r := range allowedRoles {
			if r == p.Role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "not allowed for your role")
	}
}
