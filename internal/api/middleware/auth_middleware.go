package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/pkg/utils"
	"github.com/rs/zerolog/log"
)

type AuthMiddleware struct {
	secretKey  string
	cookieName string
}

func NewAuthMiddleware(secretKey, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{secretKey: secretKey, cookieName: cookieName}
}

// AuthMiddleware accepts the session cookie or an Authorization bearer token
// and stores the user id in c.Locals("user_id").
func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Cookies(m.cookieName)
		fromCookie := tokenString != ""
		if !fromCookie {
			if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
				tokenString = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
			}
		}

		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing session",
			})
		}

		claims, err := utils.ValidateToken(m.secretKey, tokenString)
		if err != nil {
			if fromCookie {
				c.Cookie(&fiber.Cookie{
					Name:   m.cookieName,
					Value:  "",
					Path:   "/",
					MaxAge: -1,
				})
			}

			log.Debug().Err(err).Msg("token validation failed")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("user_id", claims.UserID)
		return c.Next()
	}
}
