package repos

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/agencyos/escrow/internal/db/models"
	"github.com/agencyos/escrow/internal/types"
)

// AgencyRepository provides access to agency rows
type AgencyRepository struct {
	db *gorm.DB
}

// NewAgencyRepository creates a new agency repository instance
func NewAgencyRepository(db *gorm.DB) *AgencyRepository {
	return &AgencyRepository{db: db}
}

// Create inserts a new agency
func (r *AgencyRepository) Create(ctx context.Context, agency *models.Agency) error {
	return r.db.WithContext(ctx).Create(agency).Error
}

// GetByID retrieves an agency by its ID
func (r *AgencyRepository) GetByID(ctx context.Context, id uint) (*models.Agency, error) {
	var agency models.Agency
	err := r.db.WithContext(ctx).First(&agency, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("agency %d: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agency: %w", err)
	}
	return &agency, nil
}

// SetMerchantAccountID persists the connected-account mapping. The mapping is
// written before the account id is returned to callers so a crash cannot
// orphan a created processor account.
func (r *AgencyRepository) SetMerchantAccountID(ctx context.Context, id uint, accountID string) error {
	return r.db.WithContext(ctx).Model(&models.Agency{}).
		Where("id = ?", id).
		Update("merchant_account_id", accountID).Error
}
