// Package payments wraps the external payment processor behind a narrow
// adapter interface. The adapter holds no business state: amounts arrive in
// the job's currency major unit and are converted to the processor's
// minor-unit integers only at this boundary.
package payments

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// FundingIntent is the processor-side handle for a destination-charge payment
type FundingIntent struct {
	// ExternalID is the processor payment-intent id, used as the idempotency
	// key for every later confirmation or reconciliation call
	ExternalID string

	// ClientSecret is handed to the presentation layer to complete the charge
	ClientSecret string
}

// Confirmation is the processor's answer to a capture query
type Confirmation struct {
	Captured bool
	Failed   bool
	ChargeID string
}

// FundingRequest describes the destination charge to create
type FundingRequest struct {
	// Amount is the full amount collected from the business, major units
	Amount decimal.Decimal
	// PlatformFee is the platform's retained share, major units
	PlatformFee decimal.Decimal
	// Currency is the ISO 4217 code
	Currency string
	// DestinationAccountID is the agency's connected merchant account
	DestinationAccountID string
	// Reference correlates the charge with the job on processor dashboards
	Reference string
	// IdempotencyKey identifies the logical attempt. Callers derive it from
	// the operation, not the call, so a retry after a lost response reaches
	// the processor with the same key and collapses onto the original charge.
	IdempotencyKey string
}

// TransferRequest describes a separate-charge transfer to a connected account
type TransferRequest struct {
	Amount               decimal.Decimal
	Currency             string
	DestinationAccountID string
	Reference            string
	// IdempotencyKey identifies the logical payout. One payout exists per
	// job, so the key is stable across retries and a duplicate transfer
	// collapses at the processor.
	IdempotencyKey string
}

// Processor is the boundary to the external payment service. All operations
// are remote calls and may fail transiently; implementations classify
// failures via types.ProcessorError.
type Processor interface {
	// CreateAccount creates a connected merchant account able to take card
	// payments and receive transfers, returning its external id
	CreateAccount(ctx context.Context, agencyName string) (string, error)

	// CreateOnboardingLink generates a one-time onboarding URL for the given
	// account. Not idempotent: each call returns a fresh link.
	CreateOnboardingLink(ctx context.Context, accountID, returnURL, refreshURL string) (string, error)

	// AccountReady reports whether the account completed onboarding and can
	// receive transfers
	AccountReady(ctx context.Context, accountID string) (bool, error)

	// CreateFundingIntent creates a destination-charge payment intent for the
	// request amount, directing amount minus platform fee to the destination
	CreateFundingIntent(ctx context.Context, req FundingRequest) (*FundingIntent, error)

	// ConfirmPayment queries whether the intent's funds were captured
	ConfirmPayment(ctx context.Context, externalID string) (*Confirmation, error)

	// CreateTransfer moves money to a connected account, returning the
	// transfer id. Used by the separate-charge payout model.
	CreateTransfer(ctx context.Context, req TransferRequest) (string, error)

	// Refund returns the full captured amount of the intent to the payer,
	// returning the refund id
	Refund(ctx context.Context, externalID string) (string, error)
}

// minorUnits converts a major-unit decimal amount to the processor's
// minor-unit integer representation (×100, round half-up). This conversion
// never happens upstream of the adapter.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// validateAmounts rejects malformed money before any remote call
func validateAmounts(amount, fee decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", amount)
	}
	if fee.IsNegative() {
		return fmt.Errorf("platform fee must not be negative, got %s", fee)
	}
	if fee.GreaterThan(amount) {
		return fmt.Errorf("platform fee %s exceeds amount %s", fee, amount)
	}
	return nil
}
