package services

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agencyos/escrow/internal/db/models"
	"github.com/agencyos/escrow/internal/db/repos"
	"github.com/agencyos/escrow/internal/types"
)

// authorizeRead permits reads only for the two parties of the job
func authorizeRead(job *models.Job, actorID uint) error {
	if job.BusinessID == actorID || (job.AgencyID != 0 && job.AgencyID == actorID) {
		return nil
	}
	return types.ErrNotAuthorized
}

// Query is the read side of the escrow platform. It composes repository reads
// into the views the API serves and never writes.
type Query struct {
	db          *gorm.DB
	jobRepo     *repos.JobRepository
	paymentRepo *repos.PaymentRepository
	payoutRepo  *repos.PayoutRepository
	ledgerRepo  *repos.LedgerRepository
	agencyRepo  *repos.AgencyRepository
}

// NewQueryService creates a new query service instance
func NewQueryService(gdb *gorm.DB) *Query {
	return &Query{
		db:          gdb,
		jobRepo:     repos.NewJobRepository(gdb),
		paymentRepo: repos.NewPaymentRepository(gdb),
		payoutRepo:  repos.NewPayoutRepository(gdb),
		ledgerRepo:  repos.NewLedgerRepository(gdb),
		agencyRepo:  repos.NewAgencyRepository(gdb),
	}
}

// JobDetail is the full view of one job: the job row plus its payment
// attempts, payout and the attached agency summary
type JobDetail struct {
	Job      *models.Job         `json:"job"`
	Payments []models.JobPayment `json:"payments"`
	Payout   *models.JobPayout   `json:"payout,omitempty"`
	Agency   *AgencySummary      `json:"agency,omitempty"`
}

// AgencySummary is the public slice of an agency exposed on job views
type AgencySummary struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Onboarded bool   `json:"onboarded"`
}

// Escrowed are the statuses in which captured funds are held by the platform
var escrowedStatuses = []models.JobStatus{
	models.JobStatusFunded,
	models.JobStatusInProgress,
	models.JobStatusReview,
	models.JobStatusRevision,
	models.JobStatusApproved,
}

// DashboardSummary aggregates a business's jobs for the overview screen
type DashboardSummary struct {
	ActiveJobs    int64           `json:"active_jobs"`
	EscrowedTotal decimal.Decimal `json:"escrowed_total"`
	Currency      string          `json:"currency,omitempty"`
}

// GetJob returns one job if the actor is a party to it
func (s *Query) GetJob(ctx context.Context, jobID, actorID uint) (*models.Job, error) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(job, actorID); err != nil {
		return nil, err
	}
	return job, nil
}

// GetJobDetail returns the job with its payment attempts, payout and agency
func (s *Query) GetJobDetail(ctx context.Context, jobID, actorID uint) (*JobDetail, error) {
	job, err := s.GetJob(ctx, jobID, actorID)
	if err != nil {
		return nil, err
	}

	detail := &JobDetail{Job: job}

	if detail.Payments, err = s.paymentRepo.ListByJobID(ctx, jobID); err != nil {
		return nil, err
	}
	if detail.Payout, err = s.payoutRepo.GetByJobID(ctx, jobID); err != nil {
		return nil, err
	}
	if job.AgencyID != 0 {
		agency, err := s.agencyRepo.GetByID(ctx, job.AgencyID)
		if err != nil {
			return nil, err
		}
		detail.Agency = &AgencySummary{
			ID:        agency.ID,
			Name:      agency.Name,
			Onboarded: agency.Onboarded(),
		}
	}
	return detail, nil
}

// ListJobs returns a page of jobs visible to the actor, newest first
func (s *Query) ListJobs(ctx context.Context, businessID, agencyID uint, opts *models.ListOptions) ([]models.Job, error) {
	return s.jobRepo.List(ctx, businessID, agencyID, opts)
}

// GetLedger returns the append-only event history of a job in causal order
func (s *Query) GetLedger(ctx context.Context, jobID, actorID uint) ([]models.LedgerEntry, error) {
	if _, err := s.GetJob(ctx, jobID, actorID); err != nil {
		return nil, err
	}
	return s.ledgerRepo.ListByJobID(ctx, jobID)
}

// GetDashboard returns the active-job count and the total amount currently
// held in escrow across the business's jobs. The sum runs over job rows, so it
// reflects captured amounts only for jobs at or past funded.
func (s *Query) GetDashboard(ctx context.Context, businessID uint) (*DashboardSummary, error) {
	count, err := s.jobRepo.CountByStatuses(ctx, businessID, escrowedStatuses)
	if err != nil {
		return nil, err
	}

	var jobs []models.Job
	db := s.db.WithContext(ctx).Model(&models.Job{}).Where("status IN ?", escrowedStatuses)
	if businessID != 0 {
		db = db.Where("business_id = ?", businessID)
	}
	if err := db.Find(&jobs).Error; err != nil {
		return nil, err
	}

	total := decimal.Zero
	currency := ""
	for _, job := range jobs {
		total = total.Add(job.Amount)
		currency = job.Currency
	}
	return &DashboardSummary{
		ActiveJobs:    count,
		EscrowedTotal: total,
		Currency:      currency,
	}, nil
}
