package http

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// cacheControlFor returns the default Cache-Control value for a GET path.
func cacheControlFor(path string) string {
	switch {
	case path == "/v1/health" || path == "/v1/ready":
		return "public, max-age=10"
	case path == "/metrics", strings.HasPrefix(path, "/v1/tracking"):
		return "no-cache"
	case path == "/v1/places/nearby":
		return "public, max-age=300"
	case strings.HasPrefix(path, "/v1/places"):
		return "public, max-age=3600" // registry rarely changes
	case path == "/v1/routes":
		return "public, max-age=600"
	case path == "/v1/distance":
		return "public, max-age=86400"
	case strings.HasPrefix(path, "/v1/"):
		return "public, max-age=300"
	}
	return ""
}

// CachingMiddleware sets Cache-Control on GET responses unless the handler
// already did.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet || c.Get(fiber.HeaderCacheControl) != "" {
			return err
		}
		if cc := cacheControlFor(c.Path()); cc != "" {
			c.Set(fiber.HeaderCacheControl, cc)
		}
		return err
	}
}

// ETagMiddleware adds a weak ETag to successful GET responses and answers
// If-None-Match with 304. Uncacheable responses are skipped.
func ETagMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err != nil || c.Method() != fiber.MethodGet || c.Response().StatusCode() != fiber.StatusOK {
			return err
		}
		cc := string(c.Response().Header.Peek(fiber.HeaderCacheControl))
		if strings.Contains(cc, "no-store") || strings.Contains(cc, "no-cache") {
			return nil
		}

		body := c.Response().Body()
		if len(body) == 0 {
			return nil
		}
		sum := sha256.Sum256(body)
		etag := `W/"` + hex.EncodeToString(sum[:8]) + `"`
		c.Set(fiber.HeaderETag, etag)

		if match := c.Get(fiber.HeaderIfNoneMatch); match != "" && match == etag {
			c.Status(fiber.StatusNotModified)
			c.Response().ResetBody()
		}
		return nil
	}
}
