package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/agencyos/escrow/internal/db/models"
	"github.com/agencyos/escrow/internal/payments"
)

type AgencyServiceTestSuite struct {
	suite.Suite
	db        *gorm.DB
	ctx       context.Context
	processor *payments.MockProcessor
	service   *Agency
}

func TestAgencyService(t *testing.T) {
	suite.Run(t, new(AgencyServiceTestSuite))
}

func (s *AgencyServiceTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_json=1"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err, "Failed to create in-memory database")
	require.NoError(s.T(), db.AutoMigrate(&models.Agency{}))

	s.db = db
	s.ctx = context.Background()
	s.processor = payments.NewMockProcessor()
	s.service = NewAgencyService(db, s.processor)
}

func (s *AgencyServiceTestSuite) TearDownTest() {
	sqlDB, err := s.db.DB()
	if err == nil && sqlDB != nil {
		_ = sqlDB.Close()
	}
}

func (s *AgencyServiceTestSuite) TestEnsureConnectedAccountIsIdempotent() {
	agency, err := s.service.Register(s.ctx, &models.Agency{Name: "studio"})
	s.Require().NoError(err)
	s.Empty(agency.MerchantAccountID)

	first, err := s.service.EnsureConnectedAccount(s.ctx, agency.ID)
	s.Require().NoError(err)
	s.NotEmpty(first)

	// The persisted mapping is reused, no second account is created
	second, err := s.service.EnsureConnectedAccount(s.ctx, agency.ID)
	s.Require().NoError(err)
	s.Equal(first, second)

	stored, err := s.service.Get(s.ctx, agency.ID)
	s.Require().NoError(err)
	s.Equal(first, stored.MerchantAccountID)
}

func (s *AgencyServiceTestSuite) TestOnboardingLinkCreatesAccountWhenMissing() {
	agency, err := s.service.Register(s.ctx, &models.Agency{Name: "studio"})
	s.Require().NoError(err)

	link, err := s.service.OnboardingLink(s.ctx, agency.ID, "https://example.com/return", "https://example.com/refresh")
	s.Require().NoError(err)
	s.NotEmpty(link)

	stored, err := s.service.Get(s.ctx, agency.ID)
	s.Require().NoError(err)
	s.True(stored.Onboarded())
}

func (s *AgencyServiceTestSuite) TestAccountReady() {
	agency, err := s.service.Register(s.ctx, &models.Agency{Name: "studio"})
	s.Require().NoError(err)

	// Without a connected account there is nothing to query
	ready, err := s.service.AccountReady(s.ctx, agency.ID)
	s.NoError(err)
	s.False(ready)

	accountID, err := s.service.EnsureConnectedAccount(s.ctx, agency.ID)
	s.Require().NoError(err)

	ready, err = s.service.AccountReady(s.ctx, agency.ID)
	s.NoError(err)
	s.True(ready)

	s.processor.SetAccountReady(accountID, false)
	ready, err = s.service.AccountReady(s.ctx, agency.ID)
	s.NoError(err)
	s.False(ready)
}
