package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/agencyos/escrow/internal/db/models"
	"github.com/agencyos/escrow/internal/db/repos"
	"github.com/agencyos/escrow/internal/logger"
	"github.com/agencyos/escrow/internal/payments"
)

// Agency handles agency registration and payment-processor onboarding
type Agency struct {
	agencyRepo *repos.AgencyRepository
	processor  payments.Processor
}

// NewAgencyService creates a new agency service instance
func NewAgencyService(gdb *gorm.DB, processor payments.Processor) *Agency {
	return &Agency{
		agencyRepo: repos.NewAgencyRepository(gdb),
		processor:  processor,
	}
}

// Register creates a new agency record
func (s *Agency) Register(ctx context.Context, agency *models.Agency) (*models.Agency, error) {
	if err := s.agencyRepo.Create(ctx, agency); err != nil {
		return nil, err
	}
	return agency, nil
}

// Get retrieves an agency by id
func (s *Agency) Get(ctx context.Context, agencyID uint) (*models.Agency, error) {
	return s.agencyRepo.GetByID(ctx, agencyID)
}

// EnsureConnectedAccount creates a processor connected account for the agency
// if it does not have one yet and returns the account id. The mapping is
// persisted before returning so a crash cannot orphan the processor account.
func (s *Agency) EnsureConnectedAccount(ctx context.Context, agencyID uint) (string, error) {
	agency, err := s.agencyRepo.GetByID(ctx, agencyID)
	if err != nil {
		return "", err
	}
	if agency.MerchantAccountID != "" {
		return agency.MerchantAccountID, nil
	}

	accountID, err := s.processor.CreateAccount(ctx, agency.Name)
	if err != nil {
		return "", err
	}

	if err := s.agencyRepo.SetMerchantAccountID(ctx, agencyID, accountID); err != nil {
		logger.Errorf("Created processor account %s for agency %d but failed to persist it: %v", accountID, agencyID, err)
		return "", err
	}
	return accountID, nil
}

// OnboardingLink returns a fresh one-time onboarding URL for the agency's
// connected account, creating the account first when needed
func (s *Agency) OnboardingLink(ctx context.Context, agencyID uint, returnURL, refreshURL string) (string, error) {
	accountID, err := s.EnsureConnectedAccount(ctx, agencyID)
	if err != nil {
		return "", err
	}
	return s.processor.CreateOnboardingLink(ctx, accountID, returnURL, refreshURL)
}

// AccountReady reports whether the agency's connected account has completed
// onboarding and can receive transfers
func (s *Agency) AccountReady(ctx context.Context, agencyID uint) (bool, error) {
	agency, err := s.agencyRepo.GetByID(ctx, agencyID)
	if err != nil {
		return false, err
	}
	if !agency.Onboarded() {
		return false, nil
	}
	return s.processor.AccountReady(ctx, agency.MerchantAccountID)
}
