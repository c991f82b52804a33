package repos

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/agencyos/escrow/internal/db/models"
)

// DBRepositoryTestSuite provides a base test suite for repository tests
type DBRepositoryTestSuite struct {
	suite.Suite
	db          *gorm.DB
	ctx         context.Context
	jobRepo     *JobRepository
	paymentRepo *PaymentRepository
	payoutRepo  *PayoutRepository
	ledgerRepo  *LedgerRepository
	agencyRepo  *AgencyRepository
}

func (s *DBRepositoryTestSuite) SetupTest() {
	// Create new in-memory database with JSON support
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_json=1"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err, "Failed to create in-memory database")

	// Run migrations
	err = db.AutoMigrate(
		&models.Business{},
		&models.Agency{},
		&models.Job{},
		&models.JobPayment{},
		&models.JobPayout{},
		&models.LedgerEntry{},
	)
	require.NoError(s.T(), err, "Failed to run database migrations")

	// Initialize repositories
	s.db = db
	s.jobRepo = NewJobRepository(s.db)
	s.paymentRepo = NewPaymentRepository(s.db)
	s.payoutRepo = NewPayoutRepository(s.db)
	s.ledgerRepo = NewLedgerRepository(s.db)
	s.agencyRepo = NewAgencyRepository(s.db)
	s.ctx = context.Background()
}

func (s *DBRepositoryTestSuite) TearDownTest() {
	sqlDB, err := s.db.DB()
	if err == nil && sqlDB != nil {
		_ = sqlDB.Close()
	}
}

// Helper methods for creating test data

func (s *DBRepositoryTestSuite) createTestAgency() *models.Agency {
	agency := &models.Agency{
		Name:              "test-agency",
		MerchantAccountID: "acct_test_123",
	}
	err := s.agencyRepo.Create(s.ctx, agency)
	s.Require().NoError(err)
	return agency
}

func (s *DBRepositoryTestSuite) createTestJob() *models.Job {
	return s.createTestJobWithStatus(models.JobStatusDraft)
}

func (s *DBRepositoryTestSuite) createTestJobWithStatus(status models.JobStatus) *models.Job {
	job := &models.Job{
		BusinessID:  1,
		Title:       "test-job",
		Description: "a test job",
		Amount:      decimal.RequireFromString("1000.00"),
		PlatformFee: decimal.RequireFromString("100.00"),
		Currency:    "USD",
		Status:      status,
	}
	err := s.jobRepo.Create(s.ctx, job)
	s.Require().NoError(err)
	return job
}

func (s *DBRepositoryTestSuite) createTestPayment(jobID uint, status models.PaymentStatus) *models.JobPayment {
	payment := &models.JobPayment{
		JobID:      jobID,
		ExternalID: fmt.Sprintf("pi_test_%d_%s", jobID, status),
		Amount:     decimal.RequireFromString("1000.00"),
		Currency:   "USD",
		Status:     status,
	}
	err := s.paymentRepo.Create(s.ctx, payment)
	s.Require().NoError(err)
	return payment
}
