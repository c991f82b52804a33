package repos

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/agencyos/escrow/internal/db/models"
	"github.com/agencyos/escrow/internal/types"
)

type JobRepositoryTestSuite struct {
	DBRepositoryTestSuite
}

func TestJobRepository(t *testing.T) {
	suite.Run(t, new(JobRepositoryTestSuite))
}

func (s *JobRepositoryTestSuite) TestCreate() {
	job := s.createTestJob()
	s.NotZero(job.ID)
}

func (s *JobRepositoryTestSuite) TestCreateRejectsInvalidAmounts() {
	job := &models.Job{
		BusinessID:  1,
		Title:       "bad-fee",
		Amount:      decimal.RequireFromString("100.00"),
		PlatformFee: decimal.RequireFromString("200.00"),
		Currency:    "USD",
	}
	err := s.jobRepo.Create(s.ctx, job)
	s.Error(err)
}

func (s *JobRepositoryTestSuite) TestGetByID() {
	original := s.createTestJob()

	found, err := s.jobRepo.GetByID(s.ctx, original.ID)
	s.NoError(err)
	s.Equal(original.ID, found.ID)
	s.Equal(original.Title, found.Title)
	s.True(original.Amount.Equal(found.Amount))

	// Non-existent ID
	_, err = s.jobRepo.GetByID(s.ctx, 9999)
	s.Error(err)
	s.True(errors.Is(err, types.ErrNotFound))
}

func (s *JobRepositoryTestSuite) TestUpdateStatusIf() {
	job := s.createTestJob()

	err := s.jobRepo.UpdateStatusIf(s.ctx, job.ID, models.JobStatusDraft, models.JobStatusPending)
	s.NoError(err)

	updated, err := s.jobRepo.GetByID(s.ctx, job.ID)
	s.NoError(err)
	s.Equal(models.JobStatusPending, updated.Status)
}

func (s *JobRepositoryTestSuite) TestUpdateStatusIfStale() {
	job := s.createTestJob()

	// The row is in draft, so a CAS expecting pending must not apply
	err := s.jobRepo.UpdateStatusIf(s.ctx, job.ID, models.JobStatusPending, models.JobStatusUnfunded)
	s.Error(err)
	s.True(errors.Is(err, types.ErrStaleStatus))

	unchanged, err := s.jobRepo.GetByID(s.ctx, job.ID)
	s.NoError(err)
	s.Equal(models.JobStatusDraft, unchanged.Status)
}

func (s *JobRepositoryTestSuite) TestSetAgency() {
	job := s.createTestJob()
	agency := s.createTestAgency()

	err := s.jobRepo.SetAgency(s.ctx, job.ID, agency.ID)
	s.NoError(err)

	updated, err := s.jobRepo.GetByID(s.ctx, job.ID)
	s.NoError(err)
	s.Equal(agency.ID, updated.AgencyID)
}

func (s *JobRepositoryTestSuite) TestList() {
	s.createTestJob()
	s.createTestJobWithStatus(models.JobStatusFunded)

	jobs, err := s.jobRepo.List(s.ctx, 1, 0, nil)
	s.NoError(err)
	s.Len(jobs, 2)

	// Status filter
	funded := models.JobStatusFunded
	jobs, err = s.jobRepo.List(s.ctx, 1, 0, &models.ListOptions{Status: &funded})
	s.NoError(err)
	s.Len(jobs, 1)
	s.Equal(models.JobStatusFunded, jobs[0].Status)

	// Another business sees nothing
	jobs, err = s.jobRepo.List(s.ctx, 42, 0, nil)
	s.NoError(err)
	s.Empty(jobs)
}

func (s *JobRepositoryTestSuite) TestCountByStatuses() {
	s.createTestJobWithStatus(models.JobStatusFunded)
	s.createTestJobWithStatus(models.JobStatusReview)
	s.createTestJobWithStatus(models.JobStatusCancelled)

	count, err := s.jobRepo.CountByStatuses(s.ctx, 1, []models.JobStatus{
		models.JobStatusFunded,
		models.JobStatusReview,
	})
	s.NoError(err)
	s.Equal(int64(2), count)
}
