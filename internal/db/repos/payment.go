package repos

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/agencyos/escrow/internal/db/models"
	"github.com/agencyos/escrow/internal/types"
)

// PaymentRepository provides access to job payment rows
type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a new payment attempt
func (r *PaymentRepository) Create(ctx context.Context, payment *models.JobPayment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// GetActiveByJobID returns the pending or succeeded payment for a job, if one
// exists. Failed attempts are ignored: they do not block a retry. This is the
// idempotency guard consulted before any processor call.
func (r *PaymentRepository) GetActiveByJobID(ctx context.Context, jobID uint) (*models.JobPayment, error) {
	var payment models.JobPayment
	err := r.db.WithContext(ctx).
		Where("job_id = ? AND status IN ?", jobID,
			[]models.PaymentStatus{models.PaymentStatusPending, models.PaymentStatusSucceeded}).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment for job %d: %w", jobID, err)
	}
	return &payment, nil
}

// GetSucceededByJobID returns the captured payment for a job
func (r *PaymentRepository) GetSucceededByJobID(ctx context.Context, jobID uint) (*models.JobPayment, error) {
	var payment models.JobPayment
	err := r.db.WithContext(ctx).
		Where("job_id = ? AND status = ?", jobID, models.PaymentStatusSucceeded).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("succeeded payment for job %d: %w", jobID, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment for job %d: %w", jobID, err)
	}
	return &payment, nil
}

// GetByExternalID returns a payment by its processor payment-intent id
func (r *PaymentRepository) GetByExternalID(ctx context.Context, externalID string) (*models.JobPayment, error) {
	var payment models.JobPayment
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("payment %s: %w", externalID, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment %s: %w", externalID, err)
	}
	return &payment, nil
}

// MarkSucceeded records a confirmed capture with its charge id
func (r *PaymentRepository) MarkSucceeded(ctx context.Context, id uint, chargeID string) error {
	return r.db.WithContext(ctx).Model(&models.JobPayment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":    models.PaymentStatusSucceeded,
			"charge_id": chargeID,
		}).Error
}

// MarkFailed records a rejected payment attempt
func (r *PaymentRepository) MarkFailed(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.JobPayment{}).
		Where("id = ?", id).
		Update("status", models.PaymentStatusFailed).Error
}

// ListByJobID returns all payment attempts for a job, oldest first
func (r *PaymentRepository) ListByJobID(ctx context.Context, jobID uint) ([]models.JobPayment, error) {
	var payments []models.JobPayment
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}
