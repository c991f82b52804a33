package models

import (
	"gorm.io/gorm"
)

// Agency represents the service-provider side of the marketplace. The escrow
// core only needs the mapping to the external merchant account: a job cannot
// be funded while MerchantAccountID is empty.
type Agency struct {
	gorm.Model
	Name string `json:"name" gorm:"not null"`

	// MerchantAccountID is the processor connected-account id, empty until
	// the agency completes onboarding
	MerchantAccountID string `json:"merchant_account_id,omitempty" gorm:"index"`
}

// Onboarded reports whether the agency can receive transfers
func (a *Agency) Onboarded() bool {
	return a.MerchantAccountID != ""
}

// Business represents the paying side of the marketplace
type Business struct {
	gorm.Model
	Name string `json:"name" gorm:"not null"`
}
