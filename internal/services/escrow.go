// Package services provides business logic for the escrow platform
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/agencyos/escrow/internal/db"
	"github.com/agencyos/escrow/internal/db/models"
	"github.com/agencyos/escrow/internal/db/repos"
	"github.com/agencyos/escrow/internal/events"
	"github.com/agencyos/escrow/internal/logger"
	"github.com/agencyos/escrow/internal/payments"
	"github.com/agencyos/escrow/internal/types"
)

// processorTimeout bounds every remote processor call. A timeout is an
// unknown outcome, not a failure: the stored external id is re-queried by
// Reconcile before any new money movement is attempted.
const processorTimeout = 15 * time.Second

// Escrow is the orchestrator for the job payment lifecycle. It is the sole
// writer of job status and the sole creator of payment, payout and ledger
// rows. Every operation runs validate → external call → persist → advance →
// log, holding the per-job lock for the validate-through-advance span.
type Escrow struct {
	db        *gorm.DB
	locks     *db.KeyedLock
	processor payments.Processor

	jobRepo     *repos.JobRepository
	paymentRepo *repos.PaymentRepository
	payoutRepo  *repos.PayoutRepository
	ledgerRepo  *repos.LedgerRepository
	agencyRepo  *repos.AgencyRepository
}

// NewEscrowService creates a new escrow orchestrator instance
func NewEscrowService(gdb *gorm.DB, processor payments.Processor) *Escrow {
	return &Escrow{
		db:          gdb,
		locks:       db.NewKeyedLock(),
		processor:   processor,
		jobRepo:     repos.NewJobRepository(gdb),
		paymentRepo: repos.NewPaymentRepository(gdb),
		payoutRepo:  repos.NewPayoutRepository(gdb),
		ledgerRepo:  repos.NewLedgerRepository(gdb),
		agencyRepo:  repos.NewAgencyRepository(gdb),
	}
}

// FundingResult is returned by FundJob: the payment row plus the client
// secret the presentation layer needs to complete the charge. ClientSecret is
// empty when an earlier attempt was short-circuited.
type FundingResult struct {
	Payment      *models.JobPayment `json:"payment"`
	ClientSecret string             `json:"client_secret,omitempty"`
}

// CreateJob creates a new job in draft status for the given business
func (s *Escrow) CreateJob(ctx context.Context, businessID uint, job *models.Job) (*models.Job, error) {
	job.BusinessID = businessID
	job.Status = models.JobStatusDraft
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// InviteAgency attaches an agency to a draft job and moves it to pending.
// Only the business that owns the job may invite.
func (s *Escrow) InviteAgency(ctx context.Context, jobID, actorID, agencyID uint) (*models.Job, error) {
	s.locks.Lock(jobID)
	defer s.locks.Unlock(jobID)

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.BusinessID != actorID {
		return nil, types.ErrNotAuthorized
	}
	if err := job.Status.CanTransitionTo(models.JobStatusPending); err != nil {
		return nil, err
	}
	if _, err := s.agencyRepo.GetByID(ctx, agencyID); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repos.NewJobRepository(tx).SetAgency(ctx, jobID, agencyID); err != nil {
			return err
		}
		if err := repos.NewJobRepository(tx).UpdateStatusIf(ctx, jobID, job.Status, models.JobStatusPending); err != nil {
			return err
		}
		return repos.NewLedgerRepository(tx).Append(ctx, jobID, actorID, models.LedgerEventAgencyInvited,
			models.LedgerDetails(map[string]interface{}{"agency_id": agencyID}))
	})
	if err != nil {
		return nil, err
	}
	return s.jobRepo.GetByID(ctx, jobID)
}

// AcceptJob records the agency's acceptance, moving pending to unfunded.
// Only the invited agency may accept.
func (s *Escrow) AcceptJob(ctx context.Context, jobID, actorID uint) (*models.Job, error) {
	return s.actorTransition(ctx, jobID, actorID, actorAgency,
		models.JobStatusUnfunded, models.LedgerEventAgencyAccepted)
}

// StartWork records that the agency started the work on a funded job
func (s *Escrow) StartWork(ctx context.Context, jobID, actorID uint) (*models.Job, error) {
	return s.actorTransition(ctx, jobID, actorID, actorAgency,
		models.JobStatusInProgress, models.LedgerEventWorkStarted)
}

// SubmitWork records a work submission, moving in_progress or revision to review
func (s *Escrow) SubmitWork(ctx context.Context, jobID, actorID uint) (*models.Job, error) {
	return s.actorTransition(ctx, jobID, actorID, actorAgency,
		models.JobStatusReview, models.LedgerEventWorkSubmitted)
}

// RequestRevision records the business's change request on a job in review.
// No money moves.
func (s *Escrow) RequestRevision(ctx context.Context, jobID, actorID uint) (*models.Job, error) {
	return s.actorTransition(ctx, jobID, actorID, actorBusiness,
		models.JobStatusRevision, models.LedgerEventRevisionRequested)
}

// CancelJob cancels a job before any funds were captured. Either side may
// cancel; the transition table restricts it to draft, pending and unfunded.
func (s *Escrow) CancelJob(ctx context.Context, jobID, actorID uint) (*models.Job, error) {
	job, err := s.actorTransition(ctx, jobID, actorID, actorEither,
		models.JobStatusCancelled, models.LedgerEventJobCancelled)
	if err != nil {
		return nil, err
	}
	events.Publish(events.Event{Type: events.EventJobCancelled, JobID: jobID, ActorID: actorID})
	return job, nil
}

// FundJob creates a destination-charge funding intent for a job in unfunded
// status. The job does not leave unfunded here: the advance to funded happens
// only when ConfirmFunding sees a confirmed capture. A pending or succeeded
// payment short-circuits the call so retried requests never create a second
// external charge.
func (s *Escrow) FundJob(ctx context.Context, jobID, actorID uint) (*FundingResult, error) {
	s.locks.Lock(jobID)
	defer s.locks.Unlock(jobID)

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.BusinessID != actorID {
		return nil, types.ErrNotAuthorized
	}

	// Idempotency guard before any validation that could race a retry
	if existing, err := s.paymentRepo.GetActiveByJobID(ctx, jobID); err != nil {
		return nil, err
	} else if existing != nil {
		return &FundingResult{Payment: existing}, nil
	}

	if err := job.Status.CanTransitionTo(models.JobStatusFunded); err != nil {
		return nil, err
	}

	agency, err := s.agencyRepo.GetByID(ctx, job.AgencyID)
	if err != nil {
		return nil, err
	}
	if !agency.Onboarded() {
		return nil, types.ErrAccountNotReady
	}

	// The key names the attempt, not the call: prior attempts are the failed
	// payment rows, so a retry after a lost response reuses the key and
	// collapses onto the intent the processor already created.
	prior, err := s.paymentRepo.ListByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, processorTimeout)
	defer cancel()
	intent, err := s.processor.CreateFundingIntent(callCtx, payments.FundingRequest{
		Amount:               job.Amount,
		PlatformFee:          job.PlatformFee,
		Currency:             job.Currency,
		DestinationAccountID: agency.MerchantAccountID,
		Reference:            fmt.Sprintf("job-%d", job.ID),
		IdempotencyKey:       fmt.Sprintf("fund-job-%d-attempt-%d", job.ID, len(prior)+1),
	})
	if err != nil {
		// Terminal rejections are still auditable
		if !types.IsProcessorTransient(err) {
			s.appendFailureEntry(ctx, jobID, actorID, err)
		}
		return nil, err
	}

	payment := &models.JobPayment{
		JobID:      jobID,
		ExternalID: intent.ExternalID,
		Amount:     job.Amount,
		Currency:   job.Currency,
		Status:     models.PaymentStatusPending,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repos.NewPaymentRepository(tx).Create(ctx, payment); err != nil {
			return err
		}
		return repos.NewLedgerRepository(tx).Append(ctx, jobID, actorID, models.LedgerEventPaymentIntentCreated,
			models.LedgerDetails(map[string]interface{}{
				"external_id": intent.ExternalID,
				"amount":      job.Amount.String(),
				"currency":    job.Currency,
			}))
	})
	if err != nil {
		return nil, fmt.Errorf("funding intent %s created but not recorded, reconcile required: %w", intent.ExternalID, err)
	}

	return &FundingResult{Payment: payment, ClientSecret: intent.ClientSecret}, nil
}

// ConfirmFunding queries the processor for the pending payment's capture
// state and, when captured, marks the payment succeeded and advances the job
// to funded. Safe to call repeatedly: a payment already confirmed is a no-op.
func (s *Escrow) ConfirmFunding(ctx context.Context, jobID, actorID uint) (*models.Job, error) {
	s.locks.Lock(jobID)
	defer s.locks.Unlock(jobID)
	return s.confirmFundingLocked(ctx, jobID, actorID)
}

// Reconcile re-queries the processor by the stored external id and drives
// local state to match. It is the recovery path after a timeout or a crash
// between the processor call and the local commit.
func (s *Escrow) Reconcile(ctx context.Context, jobID uint) (*models.Job, error) {
	s.locks.Lock(jobID)
	defer s.locks.Unlock(jobID)
	return s.confirmFundingLocked(ctx, jobID, 0)
}

func (s *Escrow) confirmFundingLocked(ctx context.Context, jobID, actorID uint) (*models.Job, error) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	payment, err := s.paymentRepo.GetActiveByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, types.ErrNoPendingPayment
	}

	if payment.Status == models.PaymentStatusSucceeded {
		// Capture already recorded; make sure the status caught up
		if job.Status == models.JobStatusUnfunded {
			if err := s.jobRepo.UpdateStatusIf(ctx, jobID, models.JobStatusUnfunded, models.JobStatusFunded); err != nil {
				return nil, err
			}
		}
		return s.jobRepo.GetByID(ctx, jobID)
	}

	confirmation, err := s.confirmWithRetry(ctx, payment.ExternalID)
	if err != nil {
		return nil, err
	}

	if confirmation.Failed {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := repos.NewPaymentRepository(tx).MarkFailed(ctx, payment.ID); err != nil {
				return err
			}
			return repos.NewLedgerRepository(tx).Append(ctx, jobID, actorID, models.LedgerEventPaymentFailed,
				models.LedgerDetails(map[string]interface{}{"external_id": payment.ExternalID}))
		})
		if err != nil {
			return nil, err
		}
		return nil, types.NewProcessorRejected("payment_failed", "payment was not captured")
	}

	if !confirmation.Captured {
		// Still pending on the processor side; nothing to advance
		return job, nil
	}

	// Record the capture first: it is the money truth and must survive even
	// if the status advance below loses a race with a concurrent cancel.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repos.NewPaymentRepository(tx).MarkSucceeded(ctx, payment.ID, confirmation.ChargeID); err != nil {
			return err
		}
		return repos.NewLedgerRepository(tx).Append(ctx, jobID, actorID, models.LedgerEventPaymentSucceeded,
			models.LedgerDetails(map[string]interface{}{
				"external_id": payment.ExternalID,
				"charge_id":   confirmation.ChargeID,
				"amount":      payment.Amount.String(),
				"currency":    payment.Currency,
			}))
	})
	if err != nil {
		return nil, err
	}

	if err := s.jobRepo.UpdateStatusIf(ctx, jobID, models.JobStatusUnfunded, models.JobStatusFunded); err != nil {
		if errors.Is(err, types.ErrStaleStatus) {
			return nil, fmt.Errorf("payment %s captured but job %d left unfunded status concurrently, refund required: %w",
				payment.ExternalID, jobID, err)
		}
		return nil, err
	}

	events.Publish(events.Event{
		Type:       events.EventPaymentSucceeded,
		JobID:      jobID,
		ActorID:    actorID,
		ExternalID: payment.ExternalID,
		Amount:     payment.Amount.String(),
		Currency:   payment.Currency,
	})
	return s.jobRepo.GetByID(ctx, jobID)
}

// ApproveWork records the business's approval of submitted work and then
// attempts the payout. Approved means "payment release authorized", not
// "payment released": a payout failure leaves the job approved and the payout
// is retried via ReleasePayout.
func (s *Escrow) ApproveWork(ctx context.Context, jobID, actorID uint) (*models.Job, error) {
	s.locks.Lock(jobID)
	defer s.locks.Unlock(jobID)

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.BusinessID != actorID {
		return nil, types.ErrNotAuthorized
	}
	if err := job.Status.CanTransitionTo(models.JobStatusApproved); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repos.NewJobRepository(tx).UpdateStatusIf(ctx, jobID, job.Status, models.JobStatusApproved); err != nil {
			return err
		}
		return repos.NewLedgerRepository(tx).Append(ctx, jobID, actorID, models.LedgerEventJobApproved, nil)
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.releasePayoutLocked(ctx, jobID, actorID); err != nil {
		logger.WarnWithFields("Payout after approval failed, job stays approved for retry", map[string]interface{}{
			"job_id": jobID,
			"error":  err.Error(),
		})
	}

	return s.jobRepo.GetByID(ctx, jobID)
}

// ReleasePayout releases the escrowed funds to the agency for an approved
// job. Re-invocation after a prior success returns the existing payout and
// moves no money.
func (s *Escrow) ReleasePayout(ctx context.Context, jobID uint) (*models.JobPayout, error) {
	s.locks.Lock(jobID)
	defer s.locks.Unlock(jobID)
	return s.releasePayoutLocked(ctx, jobID, 0)
}

func (s *Escrow) releasePayoutLocked(ctx context.Context, jobID, actorID uint) (*models.JobPayout, error) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	// Idempotency guard: one payout per job, ever
	if existing, err := s.payoutRepo.GetByJobID(ctx, jobID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	if err := job.Status.CanTransitionTo(models.JobStatusPaidOut); err != nil {
		return nil, err
	}

	payment, err := s.paymentRepo.GetSucceededByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	agency, err := s.agencyRepo.GetByID(ctx, job.AgencyID)
	if err != nil {
		return nil, err
	}

	amount := job.PayoutAmount()
	callCtx, cancel := context.WithTimeout(ctx, processorTimeout)
	defer cancel()
	// At most one payout exists per job, so the key is stable: a retry after
	// a lost response reaches the processor with the same key and returns the
	// transfer that already ran instead of issuing a second one.
	transferID, err := s.processor.CreateTransfer(callCtx, payments.TransferRequest{
		Amount:               amount,
		Currency:             job.Currency,
		DestinationAccountID: agency.MerchantAccountID,
		Reference:            fmt.Sprintf("job-%d", job.ID),
		IdempotencyKey:       fmt.Sprintf("payout-job-%d", job.ID),
	})
	if err != nil {
		return nil, err
	}

	payout := &models.JobPayout{
		JobID:      jobID,
		ExternalID: transferID,
		Amount:     amount,
		Currency:   job.Currency,
		Status:     models.PayoutStatusPaid,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repos.NewPayoutRepository(tx).Create(ctx, payout); err != nil {
			return err
		}
		if err := repos.NewJobRepository(tx).UpdateStatusIf(ctx, jobID, models.JobStatusApproved, models.JobStatusPaidOut); err != nil {
			return err
		}
		return repos.NewLedgerRepository(tx).Append(ctx, jobID, actorID, models.LedgerEventPayoutCompleted,
			models.LedgerDetails(map[string]interface{}{
				"external_id": transferID,
				"amount":      amount.String(),
				"currency":    job.Currency,
				"payment_id":  payment.ExternalID,
			}))
	})
	if err != nil {
		return nil, fmt.Errorf("transfer %s issued but not recorded, reconcile required: %w", transferID, err)
	}

	events.Publish(events.Event{
		Type:       events.EventPayoutCompleted,
		JobID:      jobID,
		ActorID:    actorID,
		ExternalID: transferID,
		Amount:     amount.String(),
		Currency:   job.Currency,
	})
	return payout, nil
}

// RefundJob returns the full captured amount to the business for a job that
// was funded but never paid out. Once a payout exists the refund is rejected:
// money already sent to the agency cannot be silently clawed back.
func (s *Escrow) RefundJob(ctx context.Context, jobID, actorID uint) (*models.Job, error) {
	s.locks.Lock(jobID)
	defer s.locks.Unlock(jobID)

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.BusinessID != actorID {
		return nil, types.ErrNotAuthorized
	}
	if err := job.Status.CanTransitionTo(models.JobStatusRefunded); err != nil {
		return nil, err
	}

	if payout, err := s.payoutRepo.GetByJobID(ctx, jobID); err != nil {
		return nil, err
	} else if payout != nil {
		return nil, types.ErrPayoutAlreadyIssued
	}

	payment, err := s.paymentRepo.GetSucceededByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, processorTimeout)
	defer cancel()
	refundID, err := s.processor.Refund(callCtx, payment.ExternalID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repos.NewJobRepository(tx).UpdateStatusIf(ctx, jobID, job.Status, models.JobStatusRefunded); err != nil {
			return err
		}
		return repos.NewLedgerRepository(tx).Append(ctx, jobID, actorID, models.LedgerEventJobRefunded,
			models.LedgerDetails(map[string]interface{}{
				"external_id": refundID,
				"payment_id":  payment.ExternalID,
				"amount":      payment.Amount.String(),
				"currency":    payment.Currency,
			}))
	})
	if err != nil {
		return nil, fmt.Errorf("refund %s issued but not recorded, reconcile required: %w", refundID, err)
	}

	events.Publish(events.Event{
		Type:       events.EventJobRefunded,
		JobID:      jobID,
		ActorID:    actorID,
		ExternalID: refundID,
		Amount:     payment.Amount.String(),
		Currency:   payment.Currency,
	})
	return s.jobRepo.GetByID(ctx, jobID)
}

// actor restriction for no-money transitions
type actorRole int

const (
	actorBusiness actorRole = iota
	actorAgency
	actorEither
)

// actorTransition performs a no-money status transition with actor
// authorization, the status CAS and the ledger append in one transaction
func (s *Escrow) actorTransition(ctx context.Context, jobID, actorID uint, role actorRole, target models.JobStatus, event models.LedgerEventType) (*models.Job, error) {
	s.locks.Lock(jobID)
	defer s.locks.Unlock(jobID)

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch role {
	case actorBusiness:
		if job.BusinessID != actorID {
			return nil, types.ErrNotAuthorized
		}
	case actorAgency:
		if job.AgencyID == 0 || job.AgencyID != actorID {
			return nil, types.ErrNotAuthorized
		}
	case actorEither:
		if job.BusinessID != actorID && (job.AgencyID == 0 || job.AgencyID != actorID) {
			return nil, types.ErrNotAuthorized
		}
	}

	if err := job.Status.CanTransitionTo(target); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repos.NewJobRepository(tx).UpdateStatusIf(ctx, jobID, job.Status, target); err != nil {
			return err
		}
		return repos.NewLedgerRepository(tx).Append(ctx, jobID, actorID, event, nil)
	})
	if err != nil {
		return nil, err
	}
	return s.jobRepo.GetByID(ctx, jobID)
}

// confirmWithRetry queries a payment intent, retrying once with a short
// backoff on transient failures. ConfirmPayment is a read, so the retry is
// safe.
func (s *Escrow) confirmWithRetry(ctx context.Context, externalID string) (*payments.Confirmation, error) {
	callCtx, cancel := context.WithTimeout(ctx, processorTimeout)
	confirmation, err := s.processor.ConfirmPayment(callCtx, externalID)
	cancel()
	if err == nil || !types.IsProcessorTransient(err) {
		return confirmation, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(500 * time.Millisecond):
	}

	callCtx, cancel = context.WithTimeout(ctx, processorTimeout)
	defer cancel()
	return s.processor.ConfirmPayment(callCtx, externalID)
}

// appendFailureEntry records a terminal processor rejection on the ledger.
// Best effort: the rejection itself is what the caller sees.
func (s *Escrow) appendFailureEntry(ctx context.Context, jobID, actorID uint, cause error) {
	var pe *types.ProcessorError
	details := map[string]interface{}{}
	if errors.As(cause, &pe) {
		details["code"] = pe.Code
	}
	if err := s.ledgerRepo.Append(ctx, jobID, actorID, models.LedgerEventPaymentFailed, models.LedgerDetails(details)); err != nil {
		logger.Errorf("Failed to append payment_failed ledger entry for job %d: %v", jobID, err)
	}
}
