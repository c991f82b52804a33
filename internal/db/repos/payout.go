package repos

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/agencyos/escrow/internal/db/models"
)

// PayoutRepository provides access to job payout rows
type PayoutRepository struct {
	db *gorm.DB
}

// NewPayoutRepository creates a new payout repository instance
func NewPayoutRepository(db *gorm.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

// Create inserts a payout row. The unique index on job_id enforces the
// at-most-one-payout invariant at the storage layer as well.
func (r *PayoutRepository) Create(ctx context.Context, payout *models.JobPayout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

// GetByJobID returns the payout for a job, or nil when none exists
func (r *PayoutRepository) GetByJobID(ctx context.Context, jobID uint) (*models.JobPayout, error) {
	var payout models.JobPayout
	err := r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&payout).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payout for job %d: %w", jobID, err)
	}
	return &payout, nil
}
