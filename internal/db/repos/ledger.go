package repos

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/agencyos/escrow/internal/db/models"
)

// LedgerRepository provides append and read access to the audit ledger.
// No update or delete operation exists: entries are immutable once written.
type LedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new ledger repository instance
func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append inserts one ledger entry
func (r *LedgerRepository) Append(ctx context.Context, jobID, actorID uint, eventType models.LedgerEventType, details json.RawMessage) error {
	entry := &models.LedgerEntry{
		JobID:     jobID,
		ActorID:   actorID,
		EventType: eventType,
		Details:   details,
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append ledger entry %s for job %d: %w", eventType, jobID, err)
	}
	return nil
}

// ListByJobID returns all ledger entries for a job ordered by timestamp
// ascending, for audit and reconciliation against the processor's event log
func (r *LedgerRepository) ListByJobID(ctx context.Context, jobID uint) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries for job %d: %w", jobID, err)
	}
	return entries, nil
}
