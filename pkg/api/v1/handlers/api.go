package handlers

import (
	"strconv"

	fiber "github.com/gofiber/fiber/v2"
)

// HeaderActorID carries the id of the acting party. Authentication is handled
// upstream; this layer trusts the header and enforces party-level
// authorization in the services.
const HeaderActorID = "X-Actor-ID"

// actorID extracts the acting party's id from the request headers
func actorID(c *fiber.Ctx) (uint, error) {
	raw := c.Get(HeaderActorID)
	if raw == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, ErrMsgActorRequired)
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, ErrMsgActorRequired)
	}
	return uint(id), nil
}

// paramID parses a positive uint path parameter
func paramID(c *fiber.Ctx, name string) (uint, bool) {
	raw := c.Params(name)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
