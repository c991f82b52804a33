package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CreateJobRequest is the payload for creating a draft job. Amounts are
// decimal strings in major units ("1000.00"), never floats.
type CreateJobRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
	Currency    string          `json:"currency"`
}

// Validate checks the request payload before it reaches the model layer
func (r *CreateJobRequest) Validate() error {
	if r.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	if r.PlatformFee.IsNegative() {
		return fmt.Errorf("platform fee cannot be negative")
	}
	if r.PlatformFee.GreaterThan(r.Amount) {
		return fmt.Errorf("platform fee cannot exceed the amount")
	}
	if len(r.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter ISO code")
	}
	return nil
}

// InviteAgencyRequest attaches an agency to a draft job
type InviteAgencyRequest struct {
	AgencyID uint `json:"agency_id"`
}

// Validate checks the invite payload
func (r *InviteAgencyRequest) Validate() error {
	if r.AgencyID == 0 {
		return fmt.Errorf("agency_id is required")
	}
	return nil
}

// RegisterAgencyRequest creates an agency record
type RegisterAgencyRequest struct {
	Name string `json:"name"`
}

// Validate checks the agency payload
func (r *RegisterAgencyRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// RegisterBusinessRequest creates a business record
type RegisterBusinessRequest struct {
	Name string `json:"name"`
}

// Validate checks the business payload
func (r *RegisterBusinessRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// OnboardingLinkRequest optionally overrides the configured redirect URLs
type OnboardingLinkRequest struct {
	ReturnURL  string `json:"return_url,omitempty"`
	RefreshURL string `json:"refresh_url,omitempty"`
}
