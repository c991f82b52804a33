package payments

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencyos/escrow/internal/types"
)

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"1000.00", 100000},
		{"900.00", 90000},
		{"0.01", 1},
		{"0.10", 10},
		{"19.99", 1999},
		{"0.005", 1},   // round half-up
		{"33.335", 3334},
	}
	for _, tc := range tests {
		got := minorUnits(decimal.RequireFromString(tc.amount))
		assert.Equal(t, tc.want, got, "amount %s", tc.amount)
	}
}

func TestValidateAmounts(t *testing.T) {
	ok := func(amount, fee string) error {
		return validateAmounts(decimal.RequireFromString(amount), decimal.RequireFromString(fee))
	}

	assert.NoError(t, ok("1000.00", "100.00"))
	assert.NoError(t, ok("0.01", "0"))
	assert.Error(t, ok("0", "0"))
	assert.Error(t, ok("-5", "0"))
	assert.Error(t, ok("100.00", "-1"))
	assert.Error(t, ok("100.00", "100.01"))
}

func TestMockProcessorHappyPath(t *testing.T) {
	ctx := context.Background()
	mock := NewMockProcessor()

	accountID, err := mock.CreateAccount(ctx, "test agency")
	require.NoError(t, err)

	ready, err := mock.AccountReady(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, ready)

	intent, err := mock.CreateFundingIntent(ctx, FundingRequest{
		Amount:               decimal.RequireFromString("1000.00"),
		PlatformFee:          decimal.RequireFromString("100.00"),
		Currency:             "USD",
		DestinationAccountID: accountID,
		Reference:            "job-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, intent.ExternalID)
	assert.NotEmpty(t, intent.ClientSecret)

	confirmation, err := mock.ConfirmPayment(ctx, intent.ExternalID)
	require.NoError(t, err)
	assert.True(t, confirmation.Captured)
	assert.False(t, confirmation.Failed)
	assert.NotEmpty(t, confirmation.ChargeID)

	transferID, err := mock.CreateTransfer(ctx, TransferRequest{
		Amount:               decimal.RequireFromString("900.00"),
		Currency:             "USD",
		DestinationAccountID: accountID,
		Reference:            "job-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, transferID)
}

func TestMockProcessorDecline(t *testing.T) {
	ctx := context.Background()
	mock := NewMockProcessor()
	accountID, err := mock.CreateAccount(ctx, "test agency")
	require.NoError(t, err)

	mock.FailNextIntent = true
	_, err = mock.CreateFundingIntent(ctx, FundingRequest{
		Amount:               decimal.RequireFromString("100.00"),
		PlatformFee:          decimal.Zero,
		Currency:             "USD",
		DestinationAccountID: accountID,
	})
	require.Error(t, err)
	assert.False(t, types.IsProcessorTransient(err))
}

func TestMockProcessorFailedCapture(t *testing.T) {
	ctx := context.Background()
	mock := NewMockProcessor()
	accountID, err := mock.CreateAccount(ctx, "test agency")
	require.NoError(t, err)

	intent, err := mock.CreateFundingIntent(ctx, FundingRequest{
		Amount:               decimal.RequireFromString("100.00"),
		PlatformFee:          decimal.Zero,
		Currency:             "USD",
		DestinationAccountID: accountID,
	})
	require.NoError(t, err)

	mock.DeclineNextConfirm = true
	confirmation, err := mock.ConfirmPayment(ctx, intent.ExternalID)
	require.NoError(t, err)
	assert.False(t, confirmation.Captured)
	assert.True(t, confirmation.Failed)
}

func TestMockProcessorCollapsesRepeatedKeys(t *testing.T) {
	ctx := context.Background()
	mock := NewMockProcessor()
	accountID, err := mock.CreateAccount(ctx, "test agency")
	require.NoError(t, err)

	// A transfer whose response is lost still executes; the retry with the
	// same key returns that transfer instead of moving money again
	mock.LoseNextTransfer = true
	req := TransferRequest{
		Amount:               decimal.RequireFromString("900.00"),
		Currency:             "USD",
		DestinationAccountID: accountID,
		Reference:            "job-1",
		IdempotencyKey:       "payout-job-1",
	}
	_, err = mock.CreateTransfer(ctx, req)
	require.Error(t, err)
	assert.True(t, types.IsProcessorTransient(err))

	retried, err := mock.CreateTransfer(ctx, req)
	require.NoError(t, err)
	executed := mock.ExecutedTransfers()
	require.Len(t, executed, 1)
	assert.Equal(t, executed[0], retried)

	// A different key is a different logical payout
	other := req
	other.IdempotencyKey = "payout-job-2"
	otherID, err := mock.CreateTransfer(ctx, other)
	require.NoError(t, err)
	assert.NotEqual(t, retried, otherID)

	// Funding intents collapse the same way
	intentReq := FundingRequest{
		Amount:               decimal.RequireFromString("1000.00"),
		PlatformFee:          decimal.RequireFromString("100.00"),
		Currency:             "USD",
		DestinationAccountID: accountID,
		Reference:            "job-1",
		IdempotencyKey:       "fund-job-1-attempt-1",
	}
	first, err := mock.CreateFundingIntent(ctx, intentReq)
	require.NoError(t, err)
	second, err := mock.CreateFundingIntent(ctx, intentReq)
	require.NoError(t, err)
	assert.Equal(t, first.ExternalID, second.ExternalID)
}

func TestMockProcessorRefundIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mock := NewMockProcessor()
	accountID, err := mock.CreateAccount(ctx, "test agency")
	require.NoError(t, err)

	intent, err := mock.CreateFundingIntent(ctx, FundingRequest{
		Amount:               decimal.RequireFromString("100.00"),
		PlatformFee:          decimal.Zero,
		Currency:             "USD",
		DestinationAccountID: accountID,
	})
	require.NoError(t, err)

	// Refund before capture is rejected
	_, err = mock.Refund(ctx, intent.ExternalID)
	require.Error(t, err)

	_, err = mock.ConfirmPayment(ctx, intent.ExternalID)
	require.NoError(t, err)

	first, err := mock.Refund(ctx, intent.ExternalID)
	require.NoError(t, err)
	second, err := mock.Refund(ctx, intent.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
