package middleware

import (
	"net/http/httptest"
	"testing"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencyos/escrow/pkg/api/v1/handlers"
)

func TestLoggerPassesRequestThrough(t *testing.T) {
	app := fiber.New()
	app.Use(Logger())
	app.Get("/jobs/:id", func(c *fiber.Ctx) error {
		return c.SendString(c.Params("id"))
	}).Name("get-job")

	req := httptest.NewRequest("GET", "/jobs/42", nil)
	req.Header.Set(handlers.HeaderActorID, "7")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestLoggerHandlesAnonymousRequests(t *testing.T) {
	app := fiber.New()
	app.Use(Logger())
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
