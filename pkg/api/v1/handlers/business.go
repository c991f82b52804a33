package handlers

import (
	fiber "github.com/gofiber/fiber/v2"

	"github.com/agencyos/escrow/internal/db/models"
	"github.com/agencyos/escrow/internal/db/repos"
	"github.com/agencyos/escrow/internal/types"
)

// BusinessHandler handles HTTP requests for business registration
type BusinessHandler struct {
	businessRepo *repos.BusinessRepository
}

// NewBusinessHandler creates a new business handler instance
func NewBusinessHandler(businessRepo *repos.BusinessRepository) *BusinessHandler {
	return &BusinessHandler{businessRepo: businessRepo}
}

// RegisterBusiness handles the request to create a business
func (h *BusinessHandler) RegisterBusiness(c *fiber.Ctx) error {
	var req types.RegisterBusinessRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidReqBody))
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(err.Error()))
	}

	business := &models.Business{Name: req.Name}
	if err := h.businessRepo.Create(c.Context(), business); err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(types.Success(business))
}

// GetBusiness handles the request to get a business
func (h *BusinessHandler) GetBusiness(c *fiber.Ctx) error {
	businessID, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput("Invalid business id"))
	}

	business, err := h.businessRepo.GetByID(c.Context(), businessID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(types.Success(business))
}
