package repos

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/agencyos/escrow/internal/db/models"
	"github.com/agencyos/escrow/internal/types"
)

// BusinessRepository provides access to business rows
type BusinessRepository struct {
	db *gorm.DB
}

// NewBusinessRepository creates a new business repository instance
func NewBusinessRepository(db *gorm.DB) *BusinessRepository {
	return &BusinessRepository{db: db}
}

// Create inserts a new business
func (r *BusinessRepository) Create(ctx context.Context, business *models.Business) error {
	return r.db.WithContext(ctx).Create(business).Error
}

// GetByID retrieves a business by its ID
func (r *BusinessRepository) GetByID(ctx context.Context, id uint) (*models.Business, error) {
	var business models.Business
	err := r.db.WithContext(ctx).First(&business, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("business %d: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get business: %w", err)
	}
	return &business, nil
}
