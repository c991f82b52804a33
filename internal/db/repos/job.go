// Package repos provides data access for the escrow entities
package repos

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/agencyos/escrow/internal/db/models"
	"github.com/agencyos/escrow/internal/types"
)

// JobRepository provides access to job-related database operations
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new job repository instance
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create creates a new job in the database
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID retrieves a job by its ID
func (r *JobRepository) GetByID(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).First(&job, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("job %d: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// UpdateStatusIf advances a job's status only when the row still carries the
// expected current status. A zero rows-affected result means a concurrent
// writer moved the job first and surfaces as ErrStaleStatus; the caller
// re-reads and re-validates. This is the durable per-job exclusion guard.
func (r *JobRepository) UpdateStatusIf(ctx context.Context, id uint, from, to models.JobStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return fmt.Errorf("failed to update job status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("job %d: %w", id, types.ErrStaleStatus)
	}
	return nil
}

// SetAgency attaches an agency to a draft job
func (r *JobRepository) SetAgency(ctx context.Context, id uint, agencyID uint) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Update("agency_id", agencyID).Error
}

// List returns a page of jobs for the given actor. A business sees the jobs
// it created, an agency the jobs it is attached to; both filters may be zero.
func (r *JobRepository) List(ctx context.Context, businessID, agencyID uint, opts *models.ListOptions) ([]models.Job, error) {
	if opts == nil {
		opts = &models.ListOptions{Limit: models.DefaultLimit}
	}
	if opts.Limit <= 0 || opts.Limit > models.DefaultLimit {
		opts.Limit = models.DefaultLimit
	}

	db := r.db.WithContext(ctx).Model(&models.Job{})
	if businessID != 0 {
		db = db.Where("business_id = ?", businessID)
	}
	if agencyID != 0 {
		db = db.Where("agency_id = ?", agencyID)
	}
	if opts.Status != nil {
		db = db.Where("status = ?", *opts.Status)
	}

	var jobs []models.Job
	err := db.Limit(opts.Limit).Offset(opts.Offset).
		Order(models.JobCreatedAtField + " DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// CountByStatuses returns the number of jobs in any of the given statuses for a business
func (r *JobRepository) CountByStatuses(ctx context.Context, businessID uint, statuses []models.JobStatus) (int64, error) {
	var count int64
	db := r.db.WithContext(ctx).Model(&models.Job{}).Where("status IN ?", statuses)
	if businessID != 0 {
		db = db.Where("business_id = ?", businessID)
	}
	err := db.Count(&count).Error
	return count, err
}
