package handlers

import (
	"context"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/agencyos/escrow/internal/db/models"
	"github.com/agencyos/escrow/internal/services"
	"github.com/agencyos/escrow/internal/types"
)

// JobHandler handles HTTP requests for the job lifecycle
type JobHandler struct {
	escrowService *services.Escrow
	queryService  *services.Query
}

// NewJobHandler creates a new job handler instance
func NewJobHandler(escrowService *services.Escrow, queryService *services.Query) *JobHandler {
	return &JobHandler{
		escrowService: escrowService,
		queryService:  queryService,
	}
}

// CreateJob handles the request to create a new draft job
func (h *JobHandler) CreateJob(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgActorRequired))
	}

	var req types.CreateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidReqBody))
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(err.Error()))
	}

	job, err := h.escrowService.CreateJob(c.Context(), actor, &models.Job{
		Title:       req.Title,
		Description: req.Description,
		Amount:      req.Amount,
		PlatformFee: req.PlatformFee,
		Currency:    req.Currency,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(types.Success(job))
}

// ListJobs handles the request to list the actor's jobs. The actor sees the
// business side by default; role=agency selects the agency side.
func (h *JobHandler) ListJobs(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgActorRequired))
	}

	opts := &models.ListOptions{
		Limit:  c.QueryInt("limit", models.DefaultLimit),
		Offset: c.QueryInt("offset", 0),
	}
	if statusStr := c.Query("status"); statusStr != "" {
		status, err := models.ParseJobStatus(statusStr)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput("invalid job status"))
		}
		opts.Status = &status
	}

	var businessID, agencyID uint
	if c.Query("role") == "agency" {
		agencyID = actor
	} else {
		businessID = actor
	}

	jobs, err := h.queryService.ListJobs(c.Context(), businessID, agencyID, opts)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(types.Success(jobs))
}

// GetJob handles the request to get a job's detail view
func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgActorRequired))
	}
	jobID, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidJobID))
	}

	detail, err := h.queryService.GetJobDetail(c.Context(), jobID, actor)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(types.Success(detail))
}

// GetLedger handles the request to read a job's audit trail
func (h *JobHandler) GetLedger(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgActorRequired))
	}
	jobID, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidJobID))
	}

	entries, err := h.queryService.GetLedger(c.Context(), jobID, actor)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(types.Success(entries))
}

// GetDashboard handles the request for a business's escrow overview
func (h *JobHandler) GetDashboard(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgActorRequired))
	}

	summary, err := h.queryService.GetDashboard(c.Context(), actor)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(types.Success(summary))
}

// InviteAgency handles the request to invite an agency to a draft job
func (h *JobHandler) InviteAgency(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgActorRequired))
	}
	jobID, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidJobID))
	}

	var req types.InviteAgencyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidReqBody))
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(err.Error()))
	}

	job, err := h.escrowService.InviteAgency(c.Context(), jobID, actor, req.AgencyID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(types.Success(job))
}

// AcceptJob handles the agency's acceptance of a pending job
func (h *JobHandler) AcceptJob(c *fiber.Ctx) error {
	return h.transition(c, h.escrowService.AcceptJob)
}

// StartWork handles the request to mark work as started
func (h *JobHandler) StartWork(c *fiber.Ctx) error {
	return h.transition(c, h.escrowService.StartWork)
}

// SubmitWork handles the request to submit work for review
func (h *JobHandler) SubmitWork(c *fiber.Ctx) error {
	return h.transition(c, h.escrowService.SubmitWork)
}

// ApproveWork handles the request to approve submitted work and release the payout
func (h *JobHandler) ApproveWork(c *fiber.Ctx) error {
	return h.transition(c, h.escrowService.ApproveWork)
}

// RequestRevision handles the request to send work back for changes
func (h *JobHandler) RequestRevision(c *fiber.Ctx) error {
	return h.transition(c, h.escrowService.RequestRevision)
}

// CancelJob handles the request to cancel an unfunded job
func (h *JobHandler) CancelJob(c *fiber.Ctx) error {
	return h.transition(c, h.escrowService.CancelJob)
}

// RefundJob handles the request to refund a funded job
func (h *JobHandler) RefundJob(c *fiber.Ctx) error {
	return h.transition(c, h.escrowService.RefundJob)
}

// ConfirmFunding handles the request to confirm a pending capture
func (h *JobHandler) ConfirmFunding(c *fiber.Ctx) error {
	return h.transition(c, h.escrowService.ConfirmFunding)
}

// FundJob handles the request to create a funding intent for a job
func (h *JobHandler) FundJob(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgActorRequired))
	}
	jobID, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidJobID))
	}

	result, err := h.escrowService.FundJob(c.Context(), jobID, actor)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(types.Success(result))
}

// ReleasePayout handles the request to release escrowed funds for an approved job
func (h *JobHandler) ReleasePayout(c *fiber.Ctx) error {
	if _, err := actorID(c); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgActorRequired))
	}
	jobID, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidJobID))
	}

	payout, err := h.escrowService.ReleasePayout(c.Context(), jobID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(types.Success(payout))
}

// ReconcileJob handles the request to re-query the processor and converge
// local state after a timeout or crash
func (h *JobHandler) ReconcileJob(c *fiber.Ctx) error {
	jobID, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidJobID))
	}

	job, err := h.escrowService.Reconcile(c.Context(), jobID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(types.Success(job))
}

// transition runs the shared flow of the bodyless lifecycle endpoints
func (h *JobHandler) transition(c *fiber.Ctx, op func(ctx context.Context, jobID, actorID uint) (*models.Job, error)) error {
	actor, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgActorRequired))
	}
	jobID, ok := paramID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidJobID))
	}

	job, err := op(c.Context(), jobID, actor)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(types.Success(job))
}
