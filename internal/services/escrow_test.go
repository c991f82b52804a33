package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/agencyos/escrow/internal/db/models"
	"github.com/agencyos/escrow/internal/db/repos"
	"github.com/agencyos/escrow/internal/payments"
	"github.com/agencyos/escrow/internal/types"
)

const testBusinessID uint = 100

// EscrowServiceTestSuite exercises the orchestrator against an in-memory
// database and the mock processor
type EscrowServiceTestSuite struct {
	suite.Suite
	db        *gorm.DB
	ctx       context.Context
	processor *payments.MockProcessor
	escrow    *Escrow
	agency    *models.Agency
}

func TestEscrowService(t *testing.T) {
	suite.Run(t, new(EscrowServiceTestSuite))
}

func (s *EscrowServiceTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_json=1"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err, "Failed to create in-memory database")

	err = db.AutoMigrate(
		&models.Business{},
		&models.Agency{},
		&models.Job{},
		&models.JobPayment{},
		&models.JobPayout{},
		&models.LedgerEntry{},
	)
	require.NoError(s.T(), err, "Failed to run database migrations")

	s.db = db
	s.ctx = context.Background()
	s.processor = payments.NewMockProcessor()
	s.escrow = NewEscrowService(db, s.processor)
	s.agency = s.createOnboardedAgency()
}

func (s *EscrowServiceTestSuite) TearDownTest() {
	sqlDB, err := s.db.DB()
	if err == nil && sqlDB != nil {
		_ = sqlDB.Close()
	}
}

// createOnboardedAgency registers an agency with a ready connected account
func (s *EscrowServiceTestSuite) createOnboardedAgency() *models.Agency {
	accountID, err := s.processor.CreateAccount(s.ctx, "test agency")
	s.Require().NoError(err)

	agency := &models.Agency{Name: "test agency", MerchantAccountID: accountID}
	s.Require().NoError(repos.NewAgencyRepository(s.db).Create(s.ctx, agency))
	return agency
}

func (s *EscrowServiceTestSuite) createDraftJob() *models.Job {
	job, err := s.escrow.CreateJob(s.ctx, testBusinessID, &models.Job{
		Title:       "site redesign",
		Description: "full redesign of the marketing site",
		Amount:      decimal.RequireFromString("1000.00"),
		PlatformFee: decimal.RequireFromString("100.00"),
		Currency:    "USD",
	})
	s.Require().NoError(err)
	s.Require().Equal(models.JobStatusDraft, job.Status)
	return job
}

// advanceToFunded walks a draft job through invite, accept, fund and confirm
func (s *EscrowServiceTestSuite) advanceToFunded(job *models.Job) *models.Job {
	_, err := s.escrow.InviteAgency(s.ctx, job.ID, testBusinessID, s.agency.ID)
	s.Require().NoError(err)
	_, err = s.escrow.AcceptJob(s.ctx, job.ID, s.agency.ID)
	s.Require().NoError(err)

	result, err := s.escrow.FundJob(s.ctx, job.ID, testBusinessID)
	s.Require().NoError(err)
	s.Require().NotEmpty(result.ClientSecret)

	funded, err := s.escrow.ConfirmFunding(s.ctx, job.ID, testBusinessID)
	s.Require().NoError(err)
	s.Require().Equal(models.JobStatusFunded, funded.Status)
	return funded
}

// advanceToReview continues a funded job through start and submit
func (s *EscrowServiceTestSuite) advanceToReview(job *models.Job) {
	_, err := s.escrow.StartWork(s.ctx, job.ID, s.agency.ID)
	s.Require().NoError(err)
	_, err = s.escrow.SubmitWork(s.ctx, job.ID, s.agency.ID)
	s.Require().NoError(err)
}

func (s *EscrowServiceTestSuite) TestHappyPathToPayout() {
	job := s.createDraftJob()
	s.advanceToFunded(job)
	s.advanceToReview(job)

	approved, err := s.escrow.ApproveWork(s.ctx, job.ID, testBusinessID)
	s.NoError(err)
	s.Equal(models.JobStatusPaidOut, approved.Status)

	// The payout is the amount minus the platform fee
	payout, err := repos.NewPayoutRepository(s.db).GetByJobID(s.ctx, job.ID)
	s.NoError(err)
	s.Require().NotNil(payout)
	s.True(payout.Amount.Equal(decimal.RequireFromString("900.00")),
		"payout amount was %s", payout.Amount)
	s.Equal(models.PayoutStatusPaid, payout.Status)
	s.Equal(1, s.processor.TransferCalls)

	// The ledger records the full causal history
	entries, err := repos.NewLedgerRepository(s.db).ListByJobID(s.ctx, job.ID)
	s.NoError(err)
	var eventTypes []models.LedgerEventType
	for _, entry := range entries {
		eventTypes = append(eventTypes, entry.EventType)
	}
	s.Equal([]models.LedgerEventType{
		models.LedgerEventAgencyInvited,
		models.LedgerEventAgencyAccepted,
		models.LedgerEventPaymentIntentCreated,
		models.LedgerEventPaymentSucceeded,
		models.LedgerEventWorkStarted,
		models.LedgerEventWorkSubmitted,
		models.LedgerEventJobApproved,
		models.LedgerEventPayoutCompleted,
	}, eventTypes)
}

func (s *EscrowServiceTestSuite) TestFundFromDraftIsRejected() {
	job := s.createDraftJob()

	_, err := s.escrow.FundJob(s.ctx, job.ID, testBusinessID)
	s.Require().Error(err)
	var illegalErr *types.IllegalTransitionError
	s.ErrorAs(err, &illegalErr)

	// No payment row and no processor call
	payment, err := repos.NewPaymentRepository(s.db).GetActiveByJobID(s.ctx, job.ID)
	s.NoError(err)
	s.Nil(payment)
	s.Equal(0, s.processor.IntentCalls)
}

func (s *EscrowServiceTestSuite) TestFundRequiresOnboardedAgency() {
	bare := &models.Agency{Name: "not onboarded"}
	s.Require().NoError(repos.NewAgencyRepository(s.db).Create(s.ctx, bare))

	job := s.createDraftJob()
	_, err := s.escrow.InviteAgency(s.ctx, job.ID, testBusinessID, bare.ID)
	s.Require().NoError(err)
	_, err = s.escrow.AcceptJob(s.ctx, job.ID, bare.ID)
	s.Require().NoError(err)

	_, err = s.escrow.FundJob(s.ctx, job.ID, testBusinessID)
	s.ErrorIs(err, types.ErrAccountNotReady)
	s.Equal(0, s.processor.IntentCalls)
}

func (s *EscrowServiceTestSuite) TestFundIsIdempotent() {
	job := s.createDraftJob()
	_, err := s.escrow.InviteAgency(s.ctx, job.ID, testBusinessID, s.agency.ID)
	s.Require().NoError(err)
	_, err = s.escrow.AcceptJob(s.ctx, job.ID, s.agency.ID)
	s.Require().NoError(err)

	first, err := s.escrow.FundJob(s.ctx, job.ID, testBusinessID)
	s.Require().NoError(err)

	// The retry returns the existing payment without a second processor call
	second, err := s.escrow.FundJob(s.ctx, job.ID, testBusinessID)
	s.Require().NoError(err)
	s.Equal(first.Payment.ExternalID, second.Payment.ExternalID)
	s.Empty(second.ClientSecret)
	s.Equal(1, s.processor.IntentCalls)
}

func (s *EscrowServiceTestSuite) TestConfirmWithoutPayment() {
	job := s.createDraftJob()
	_, err := s.escrow.ConfirmFunding(s.ctx, job.ID, testBusinessID)
	s.ErrorIs(err, types.ErrNoPendingPayment)
}

func (s *EscrowServiceTestSuite) TestDeclinedCaptureKeepsJobUnfunded() {
	job := s.createDraftJob()
	_, err := s.escrow.InviteAgency(s.ctx, job.ID, testBusinessID, s.agency.ID)
	s.Require().NoError(err)
	_, err = s.escrow.AcceptJob(s.ctx, job.ID, s.agency.ID)
	s.Require().NoError(err)
	_, err = s.escrow.FundJob(s.ctx, job.ID, testBusinessID)
	s.Require().NoError(err)

	s.processor.DeclineNextConfirm = true
	_, err = s.escrow.ConfirmFunding(s.ctx, job.ID, testBusinessID)
	s.Require().Error(err)
	var processorErr *types.ProcessorError
	s.ErrorAs(err, &processorErr)

	current, err := repos.NewJobRepository(s.db).GetByID(s.ctx, job.ID)
	s.NoError(err)
	s.Equal(models.JobStatusUnfunded, current.Status)

	// The failed attempt does not block a fresh funding attempt
	retry, err := s.escrow.FundJob(s.ctx, job.ID, testBusinessID)
	s.NoError(err)
	s.NotEmpty(retry.ClientSecret)
	s.Equal(2, s.processor.IntentCalls)
}

func (s *EscrowServiceTestSuite) TestConfirmFundingIsIdempotent() {
	job := s.createDraftJob()
	s.advanceToFunded(job)

	// Confirming again is a no-op on an already funded job
	again, err := s.escrow.ConfirmFunding(s.ctx, job.ID, testBusinessID)
	s.NoError(err)
	s.Equal(models.JobStatusFunded, again.Status)
}

func (s *EscrowServiceTestSuite) TestCancelAfterPayoutIsRejected() {
	job := s.createDraftJob()
	s.advanceToFunded(job)
	s.advanceToReview(job)
	_, err := s.escrow.ApproveWork(s.ctx, job.ID, testBusinessID)
	s.Require().NoError(err)

	_, err = s.escrow.CancelJob(s.ctx, job.ID, testBusinessID)
	s.Require().Error(err)
	var terminalErr *types.TerminalStateError
	s.ErrorAs(err, &terminalErr)
}

func (s *EscrowServiceTestSuite) TestReleasePayoutIsIdempotent() {
	job := s.createDraftJob()
	s.advanceToFunded(job)
	s.advanceToReview(job)
	_, err := s.escrow.ApproveWork(s.ctx, job.ID, testBusinessID)
	s.Require().NoError(err)

	first, err := s.escrow.ReleasePayout(s.ctx, job.ID)
	s.Require().NoError(err)

	second, err := s.escrow.ReleasePayout(s.ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(first.ExternalID, second.ExternalID)
	s.Equal(1, s.processor.TransferCalls, "only one transfer may ever be issued")
}

func (s *EscrowServiceTestSuite) TestTransientPayoutFailureKeepsJobApproved() {
	job := s.createDraftJob()
	s.advanceToFunded(job)
	s.advanceToReview(job)

	// The transfer executes on the processor side but its response is lost
	s.processor.LoseNextTransfer = true
	approved, err := s.escrow.ApproveWork(s.ctx, job.ID, testBusinessID)
	s.NoError(err, "approval must survive a payout failure")
	s.Equal(models.JobStatusApproved, approved.Status)

	// The retry releases the payout
	payout, err := s.escrow.ReleasePayout(s.ctx, job.ID)
	s.NoError(err)
	s.True(payout.Amount.Equal(decimal.RequireFromString("900.00")))

	current, err := repos.NewJobRepository(s.db).GetByID(s.ctx, job.ID)
	s.NoError(err)
	s.Equal(models.JobStatusPaidOut, current.Status)

	// The retry carried the same idempotency key, so the money moved once:
	// the recorded payout is the transfer that ran before the lost response
	executed := s.processor.ExecutedTransfers()
	s.Require().Len(executed, 1, "a second transfer was issued for one payout")
	s.Equal(executed[0], payout.ExternalID)
	s.Equal(2, s.processor.TransferCalls)
}

func (s *EscrowServiceTestSuite) TestFundingRetryAfterLostResponseReusesIntent() {
	job := s.createDraftJob()
	_, err := s.escrow.InviteAgency(s.ctx, job.ID, testBusinessID, s.agency.ID)
	s.Require().NoError(err)
	_, err = s.escrow.AcceptJob(s.ctx, job.ID, s.agency.ID)
	s.Require().NoError(err)

	// The intent is created on the processor side but no payment row was
	// recorded, so the retry must not charge the business twice
	s.processor.LoseNextIntent = true
	_, err = s.escrow.FundJob(s.ctx, job.ID, testBusinessID)
	s.Require().Error(err)
	s.True(types.IsProcessorTransient(err))

	result, err := s.escrow.FundJob(s.ctx, job.ID, testBusinessID)
	s.Require().NoError(err)

	confirmed, err := s.escrow.ConfirmFunding(s.ctx, job.ID, testBusinessID)
	s.NoError(err)
	s.Equal(models.JobStatusFunded, confirmed.Status)

	// Both calls reached the processor with the same attempt key and
	// collapsed onto one intent
	s.Equal(2, s.processor.IntentCalls)
	rows, err := repos.NewPaymentRepository(s.db).ListByJobID(s.ctx, job.ID)
	s.NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(result.Payment.ExternalID, rows[0].ExternalID)
}

func (s *EscrowServiceTestSuite) TestConcurrentFundingCreatesOnePayment() {
	job := s.createDraftJob()
	_, err := s.escrow.InviteAgency(s.ctx, job.ID, testBusinessID, s.agency.ID)
	s.Require().NoError(err)
	_, err = s.escrow.AcceptJob(s.ctx, job.ID, s.agency.ID)
	s.Require().NoError(err)

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.escrow.FundJob(s.ctx, job.ID, testBusinessID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	// One caller created the intent, the rest were short-circuited onto it
	rows, err := repos.NewPaymentRepository(s.db).ListByJobID(s.ctx, job.ID)
	s.NoError(err)
	s.Len(rows, 1)
	s.Equal(1, s.processor.IntentCalls)
}

func (s *EscrowServiceTestSuite) TestRevisionCycle() {
	job := s.createDraftJob()
	s.advanceToFunded(job)
	s.advanceToReview(job)

	revised, err := s.escrow.RequestRevision(s.ctx, job.ID, testBusinessID)
	s.NoError(err)
	s.Equal(models.JobStatusRevision, revised.Status)

	resubmitted, err := s.escrow.SubmitWork(s.ctx, job.ID, s.agency.ID)
	s.NoError(err)
	s.Equal(models.JobStatusReview, resubmitted.Status)
}

func (s *EscrowServiceTestSuite) TestRefundFundedJob() {
	job := s.createDraftJob()
	s.advanceToFunded(job)

	refunded, err := s.escrow.RefundJob(s.ctx, job.ID, testBusinessID)
	s.NoError(err)
	s.Equal(models.JobStatusRefunded, refunded.Status)
	s.Equal(1, s.processor.RefundCalls)

	entries, err := repos.NewLedgerRepository(s.db).ListByJobID(s.ctx, job.ID)
	s.NoError(err)
	s.Equal(models.LedgerEventJobRefunded, entries[len(entries)-1].EventType)
}

func (s *EscrowServiceTestSuite) TestRefundAfterPayoutIsRejected() {
	job := s.createDraftJob()
	s.advanceToFunded(job)
	s.advanceToReview(job)
	_, err := s.escrow.ApproveWork(s.ctx, job.ID, testBusinessID)
	s.Require().NoError(err)

	_, err = s.escrow.RefundJob(s.ctx, job.ID, testBusinessID)
	s.Require().Error(err)

	// approved -> paid_out already happened, so the transition check fires
	// before the payout guard; either way no refund is issued
	s.Equal(0, s.processor.RefundCalls)
}

func (s *EscrowServiceTestSuite) TestActorAuthorization() {
	job := s.createDraftJob()
	_, err := s.escrow.InviteAgency(s.ctx, job.ID, testBusinessID, s.agency.ID)
	s.Require().NoError(err)

	// The business cannot accept on the agency's behalf
	_, err = s.escrow.AcceptJob(s.ctx, job.ID, testBusinessID)
	s.ErrorIs(err, types.ErrNotAuthorized)

	_, err = s.escrow.AcceptJob(s.ctx, job.ID, s.agency.ID)
	s.Require().NoError(err)
	_, err = s.escrow.FundJob(s.ctx, job.ID, testBusinessID)
	s.Require().NoError(err)
	_, err = s.escrow.ConfirmFunding(s.ctx, job.ID, testBusinessID)
	s.Require().NoError(err)
	s.advanceToReview(job)

	// The agency cannot approve its own work
	_, err = s.escrow.ApproveWork(s.ctx, job.ID, s.agency.ID)
	s.ErrorIs(err, types.ErrNotAuthorized)

	// A stranger cannot fund
	_, err = s.escrow.FundJob(s.ctx, job.ID, 555)
	s.ErrorIs(err, types.ErrNotAuthorized)
}

func (s *EscrowServiceTestSuite) TestReconcileConvergesAfterLostConfirmation() {
	job := s.createDraftJob()
	_, err := s.escrow.InviteAgency(s.ctx, job.ID, testBusinessID, s.agency.ID)
	s.Require().NoError(err)
	_, err = s.escrow.AcceptJob(s.ctx, job.ID, s.agency.ID)
	s.Require().NoError(err)
	_, err = s.escrow.FundJob(s.ctx, job.ID, testBusinessID)
	s.Require().NoError(err)

	// Reconcile plays the role of the recovery path: it re-queries the
	// processor by the stored external id and advances the job
	reconciled, err := s.escrow.Reconcile(s.ctx, job.ID)
	s.NoError(err)
	s.Equal(models.JobStatusFunded, reconciled.Status)
}

func (s *EscrowServiceTestSuite) TestCancelUnfundedJob() {
	job := s.createDraftJob()
	_, err := s.escrow.InviteAgency(s.ctx, job.ID, testBusinessID, s.agency.ID)
	s.Require().NoError(err)
	_, err = s.escrow.AcceptJob(s.ctx, job.ID, s.agency.ID)
	s.Require().NoError(err)

	// The agency may walk away before funding
	cancelled, err := s.escrow.CancelJob(s.ctx, job.ID, s.agency.ID)
	s.NoError(err)
	s.Equal(models.JobStatusCancelled, cancelled.Status)

	// Terminal: funding is no longer possible
	_, err = s.escrow.FundJob(s.ctx, job.ID, testBusinessID)
	s.Require().Error(err)
	var terminalErr *types.TerminalStateError
	s.ErrorAs(err, &terminalErr)
}

func (s *EscrowServiceTestSuite) TestProcessorRejectionSurfacesCleanly() {
	job := s.createDraftJob()
	_, err := s.escrow.InviteAgency(s.ctx, job.ID, testBusinessID, s.agency.ID)
	s.Require().NoError(err)
	_, err = s.escrow.AcceptJob(s.ctx, job.ID, s.agency.ID)
	s.Require().NoError(err)

	s.processor.FailNextIntent = true
	_, err = s.escrow.FundJob(s.ctx, job.ID, testBusinessID)
	s.Require().Error(err)

	var processorErr *types.ProcessorError
	s.Require().True(errors.As(err, &processorErr))
	s.False(processorErr.Transient)

	// No payment row was written for the rejected attempt
	payment, err := repos.NewPaymentRepository(s.db).GetActiveByJobID(s.ctx, job.ID)
	s.NoError(err)
	s.Nil(payment)
}
