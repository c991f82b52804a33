// Package middleware provides HTTP middleware for the API server
package middleware

import (
	"time"

	fiber "github.com/gofiber/fiber/v2"

	log "github.com/agencyos/escrow/internal/logger"
	"github.com/agencyos/escrow/pkg/api/v1/handlers"
)

// Logger returns a middleware that logs HTTP requests, including the acting
// party and the resource the route addresses when present
func Logger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Continue chain
		err := c.Next()

		// After request
		stop := time.Now()
		latency := stop.Sub(start)

		fields := map[string]interface{}{
			"timestamp": stop.Format("2006/01/02 - 15:04:05"),
			"status":    c.Response().StatusCode(),
			"latency":   latency,
			"ip":        c.IP(),
			"method":    c.Method(),
			"path":      c.Path(),
			"handler":   c.Route().Name,
		}
		if actor := c.Get(handlers.HeaderActorID); actor != "" {
			fields["actor_id"] = actor
		}
		if resourceID := c.Params("id"); resourceID != "" {
			fields["resource_id"] = resourceID
		}

		log.InfoWithFields("Request", fields)

		return err
	}
}
