package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/rs/zerolog/log"
)

// VerifySignature rejects webhook calls whose Upstash-Signature does not
// match the raw body. When no signing key is configured unsigned calls pass.
func VerifySignature(v *queue.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !v.Enabled() {
			return c.Next()
		}

		if err := v.Verify(c.Get(queue.SignatureHeader), c.Body()); err != nil {
			log.Warn().Err(err).Str("path", c.Path()).Msg("rejected webhook call")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid signature",
			})
		}
		return c.Next()
	}
}
