// Package handlers provides HTTP request handling
package handlers

import (
	"errors"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/agencyos/escrow/internal/types"
)

// Common error messages
const (
	ErrMsgInvalidJobID    = "Invalid job id"
	ErrMsgInvalidAgencyID = "Invalid agency id"
	ErrMsgInvalidReqBody  = "Invalid request body"
	ErrMsgActorRequired   = "X-Actor-ID header is required"
)

// errorResponse maps a service error onto an HTTP status and a slug response.
// The lifecycle errors are conflicts: the request was well-formed but the job
// is not in a state that allows it.
func errorResponse(c *fiber.Ctx, err error) error {
	var illegalErr *types.IllegalTransitionError
	var terminalErr *types.TerminalStateError
	var processorErr *types.ProcessorError

	switch {
	case errors.Is(err, types.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(types.ErrNotFoundResponse(err.Error()))
	case errors.Is(err, types.ErrNotAuthorized):
		return c.Status(fiber.StatusForbidden).JSON(types.SlugResponse{
			Slug:  types.ErrorSlug,
			Error: err.Error(),
		})
	case errors.As(err, &illegalErr),
		errors.As(err, &terminalErr),
		errors.Is(err, types.ErrStaleStatus),
		errors.Is(err, types.ErrAlreadyFunded),
		errors.Is(err, types.ErrAlreadyPaidOut),
		errors.Is(err, types.ErrPayoutAlreadyIssued),
		errors.Is(err, types.ErrAccountNotReady),
		errors.Is(err, types.ErrNoPendingPayment):
		return c.Status(fiber.StatusConflict).JSON(types.ErrConflict(err.Error()))
	case errors.As(err, &processorErr):
		if processorErr.Transient {
			return c.Status(fiber.StatusBadGateway).JSON(types.ErrServer(err.Error()))
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(types.SlugResponse{
			Slug:  types.ErrorSlug,
			Error: err.Error(),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(types.ErrServer(err.Error()))
	}
}
