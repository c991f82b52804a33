package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/agencyos/escrow/internal/types"
)

// StripeProcessor implements Processor against the Stripe API using
// destination charges onto express connected accounts. The API client is
// injected at construction and never mutated afterwards.
type StripeProcessor struct {
	api *client.API
}

var _ Processor = &StripeProcessor{}

// NewStripeProcessor creates a processor adapter bound to the given secret key
func NewStripeProcessor(secretKey string) (*StripeProcessor, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("processor secret key is required")
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProcessor{api: api}, nil
}

// CreateAccount creates an express connected account with card payments and
// transfers capabilities
func (p *StripeProcessor) CreateAccount(_ context.Context, agencyName string) (string, error) {
	params := &stripe.AccountParams{
		Type: stripe.String(string(stripe.AccountTypeExpress)),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{
				Requested: stripe.Bool(true),
			},
			Transfers: &stripe.AccountCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
		BusinessProfile: &stripe.AccountBusinessProfileParams{
			Name: stripe.String(agencyName),
		},
	}

	account, err := p.api.Accounts.New(params)
	if err != nil {
		return "", classifyStripeError(err)
	}
	return account.ID, nil
}

// CreateOnboardingLink generates a fresh one-time onboarding URL
func (p *StripeProcessor) CreateOnboardingLink(_ context.Context, accountID, returnURL, refreshURL string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		ReturnURL:  stripe.String(returnURL),
		RefreshURL: stripe.String(refreshURL),
		Type:       stripe.String(string(stripe.AccountLinkTypeAccountOnboarding)),
	}

	link, err := p.api.AccountLinks.New(params)
	if err != nil {
		return "", classifyStripeError(err)
	}
	return link.URL, nil
}

// AccountReady reports whether the connected account can receive transfers
func (p *StripeProcessor) AccountReady(_ context.Context, accountID string) (bool, error) {
	account, err := p.api.Accounts.GetByID(accountID, nil)
	if err != nil {
		return false, classifyStripeError(err)
	}
	if account.Capabilities == nil {
		return false, nil
	}
	return account.Capabilities.Transfers == stripe.AccountCapabilityStatusActive, nil
}

// CreateFundingIntent creates a destination-charge payment intent. The
// platform fee stays with the platform via application_fee_amount; the
// remainder flows to the destination account at capture.
func (p *StripeProcessor) CreateFundingIntent(_ context.Context, req FundingRequest) (*FundingIntent, error) {
	if err := validateAmounts(req.Amount, req.PlatformFee); err != nil {
		return nil, types.NewProcessorRejected("invalid_amount", err.Error())
	}
	if req.DestinationAccountID == "" {
		return nil, types.NewProcessorRejected("invalid_destination", "destination account id is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:               stripe.Int64(minorUnits(req.Amount)),
		Currency:             stripe.String(strings.ToLower(req.Currency)),
		ApplicationFeeAmount: stripe.Int64(minorUnits(req.PlatformFee)),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(req.DestinationAccountID),
		},
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String(req.Reference),
	}
	params.SetIdempotencyKey(requestKey(req.IdempotencyKey))

	intent, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, classifyStripeError(err)
	}
	return &FundingIntent{
		ExternalID:   intent.ID,
		ClientSecret: intent.ClientSecret,
	}, nil
}

// ConfirmPayment queries the intent by its external id
func (p *StripeProcessor) ConfirmPayment(_ context.Context, externalID string) (*Confirmation, error) {
	intent, err := p.api.PaymentIntents.Get(externalID, nil)
	if err != nil {
		return nil, classifyStripeError(err)
	}

	confirmation := &Confirmation{}
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		confirmation.Captured = true
		if intent.LatestCharge != nil {
			confirmation.ChargeID = intent.LatestCharge.ID
		}
	case stripe.PaymentIntentStatusCanceled:
		confirmation.Failed = true
	}
	return confirmation, nil
}

// CreateTransfer moves money to a connected account (separate-charge model)
func (p *StripeProcessor) CreateTransfer(_ context.Context, req TransferRequest) (string, error) {
	if !req.Amount.IsPositive() {
		return "", types.NewProcessorRejected("invalid_amount", fmt.Sprintf("transfer amount must be positive, got %s", req.Amount))
	}

	params := &stripe.TransferParams{
		Amount:        stripe.Int64(minorUnits(req.Amount)),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		Destination:   stripe.String(req.DestinationAccountID),
		TransferGroup: stripe.String(req.Reference),
	}
	params.SetIdempotencyKey(requestKey(req.IdempotencyKey))

	transfer, err := p.api.Transfers.New(params)
	if err != nil {
		return "", classifyStripeError(err)
	}
	return transfer.ID, nil
}

// Refund returns the full captured amount of the intent to the payer
func (p *StripeProcessor) Refund(_ context.Context, externalID string) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(externalID),
	}
	// One full refund per intent, so the key derives from the intent id and a
	// retried refund collapses onto the original.
	params.SetIdempotencyKey("refund-" + externalID)

	refund, err := p.api.Refunds.New(params)
	if err != nil {
		return "", classifyStripeError(err)
	}
	return refund.ID, nil
}

// requestKey returns the caller's idempotency key, or a random one when the
// caller did not supply one. Money-moving calls always supply a key derived
// from the logical operation so a retry after a lost response cannot run the
// operation twice.
func requestKey(key string) string {
	if key != "" {
		return key
	}
	return uuid.NewString()
}

// classifyStripeError maps Stripe failures onto the processor error taxonomy:
// card declines and validation failures are terminal for the attempt, API and
// connection-level failures are retryable. Processor-internal error text is
// kept out of rejected messages.
func classifyStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= 500 {
			return types.NewProcessorTransient(string(stripeErr.Code), "processor temporarily unavailable")
		}
		switch stripeErr.Type {
		case stripe.ErrorTypeCard:
			return types.NewProcessorRejected(string(stripeErr.Code), "payment was declined")
		case stripe.ErrorTypeInvalidRequest, stripe.ErrorTypeIdempotency:
			return types.NewProcessorRejected(string(stripeErr.Code), "processor rejected the request")
		default:
			return types.NewProcessorTransient(string(stripeErr.Code), "processor error, retry later")
		}
	}
	// Non-API errors are network-level: outcome unknown, reconcile later
	return types.NewProcessorTransient("network", err.Error())
}
