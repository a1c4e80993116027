package middleware

import (
	"crypto/subtle"

	"jobtrack_worker/pkg/apperr"
	"jobtrack_worker/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// SecretHeader carries the shared secret between producers and the ingestion endpoint.
const SecretHeader = "X-Sync-Secret"

// SharedSecret rejects requests whose secret header does not match. The
// comparison runs in constant time. An empty secret rejects everything.
func SharedSecret(secret string) fiber.Handler {
	expected := []byte(secret)

	return func(c *fiber.Ctx) error {
		provided := c.Get(SecretHeader)
		if len(expected) == 0 || provided == "" {
			return apperr.Unauthorized("missing sync secret")
		}
		if subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			logger.WithFields(map[string]any{
				"ip":   c.IP(),
				"path": c.Path(),
			}).Warn("rejected request with invalid sync secret")
			return apperr.Unauthorized("invalid sync secret")
		}
		return c.Next()
	}
}
