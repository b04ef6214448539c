package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// CacheControl marks successful GET responses as publicly cacheable for maxAge seconds.
// Used on the static image routes; derivatives are rewritten in place, so keep it short.
func CacheControl(maxAge int) fiber.Handler {
	value := "public, max-age=" + strconv.Itoa(maxAge)
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil && c.Method() == fiber.MethodGet && c.Response().StatusCode() == fiber.StatusOK {
			c.Set(fiber.HeaderCacheControl, value)
		}
		return err
	}
}
