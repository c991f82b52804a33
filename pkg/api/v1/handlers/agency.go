package handlers

import (
	fiber "github.com/gofiber/fiber/v2"

	"github.com/agencyos/escrow/config"
	"github.com/agencyos/escrow/internal/constants"
	"github.com/agencyos/escrow/internal/db/models"
	"github.com/agencyos/escrow/internal/services"
	"github.com/agencyos/escrow/internal/types"
)

// AgencyHandler handles HTTP requests for agency registration and onboarding
type AgencyHandler struct {
	agencyService *services.Agency
}

// NewAgencyHandler creates a new agency handler instance
func NewAgencyHandler(agencyService *services.Agency) *AgencyHandler {
	return &AgencyHandler{agencyService: agencyService}
}

// RegisterAgency handles the request to create an agency
func (h *AgencyHandler) RegisterAgency(c *fiber.Ctx) error {
	var req types.RegisterAgencyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidReqBody))
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(err.Error()))
	}

	agency, err := h.agencyService.Register(c.Context(), &models.Agency{Name: req.Name})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(types.Success(agency))
}

// GetAgency handles the request to get an agency
func (h *AgencyHandler) GetAgency(c *fiber.Ctx) error {
	agencyID, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidAgencyID))
	}

	agency, err := h.agencyService.Get(c.Context(), agencyID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(types.Success(agency))
}

// CreateAccount handles the request to create the agency's connected merchant
// account at the processor
func (h *AgencyHandler) CreateAccount(c *fiber.Ctx) error {
	agencyID, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidAgencyID))
	}

	accountID, err := h.agencyService.EnsureConnectedAccount(c.Context(), agencyID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(types.Success(fiber.Map{"merchant_account_id": accountID}))
}

// CreateOnboardingLink handles the request for a fresh onboarding URL
func (h *AgencyHandler) CreateOnboardingLink(c *fiber.Ctx) error {
	agencyID, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidAgencyID))
	}

	var req types.OnboardingLinkRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidReqBody))
		}
	}
	if req.ReturnURL == "" {
		req.ReturnURL = config.GetEnv(constants.EnvOnboardingReturnURL, "")
	}
	if req.RefreshURL == "" {
		req.RefreshURL = config.GetEnv(constants.EnvOnboardingRefreshURL, "")
	}
	if req.ReturnURL == "" || req.RefreshURL == "" {
		return c.Status(fiber.StatusBadRequest).
			JSON(types.ErrInvalidInput("return and refresh URLs must be provided or configured"))
	}

	link, err := h.agencyService.OnboardingLink(c.Context(), agencyID, req.ReturnURL, req.RefreshURL)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(types.Success(fiber.Map{"onboarding_url": link}))
}

// GetAccountStatus handles the request to check onboarding completeness
func (h *AgencyHandler) GetAccountStatus(c *fiber.Ctx) error {
	agencyID, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidAgencyID))
	}

	ready, err := h.agencyService.AccountReady(c.Context(), agencyID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(types.Success(fiber.Map{"ready": ready}))
}
