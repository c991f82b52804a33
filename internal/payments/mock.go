package payments

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/agencyos/escrow/internal/types"
)

// MockProcessor is an in-memory Processor implementation for tests and local
// development. Captures are simulated: a created intent reports captured on
// the next confirmation unless a failure is injected.
type MockProcessor struct {
	mu sync.Mutex

	accounts     map[string]bool // account id -> onboarding complete
	intents      map[string]*mockIntent
	refunds      map[string]string // intent id -> refund id
	intentKeys   map[string]string // idempotency key -> intent id
	transferKeys map[string]string // idempotency key -> transfer id

	// transfers that actually executed, in creation order
	executedTransfers []string

	// FailNextIntent injects a terminal rejection on the next CreateFundingIntent
	FailNextIntent bool
	// LoseNextIntent makes the next CreateFundingIntent execute remotely but
	// return a transient error, as if the response was lost on the wire
	LoseNextIntent bool
	// LoseNextTransfer makes the next CreateTransfer execute remotely but
	// return a transient error, as if the response was lost on the wire
	LoseNextTransfer bool
	// DeclineNextConfirm makes the next ConfirmPayment report a failed capture
	DeclineNextConfirm bool

	// Counters for asserting call volumes in tests
	IntentCalls   int
	TransferCalls int
	RefundCalls   int
}

var _ Processor = &MockProcessor{}

// NewMockProcessor creates an empty mock processor
func NewMockProcessor() *MockProcessor {
	return &MockProcessor{
		accounts:     make(map[string]bool),
		intents:      make(map[string]*mockIntent),
		refunds:      make(map[string]string),
		intentKeys:   make(map[string]string),
		transferKeys: make(map[string]string),
	}
}

type mockIntent struct {
	captured bool
	failed   bool
	chargeID string
}

// CreateAccount mocks connected-account creation; accounts start onboarded
func (m *MockProcessor) CreateAccount(_ context.Context, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := "acct_mock_" + uuid.NewString()[:8]
	m.accounts[id] = true
	return id, nil
}

// SetAccountReady toggles onboarding completeness for an account
func (m *MockProcessor) SetAccountReady(accountID string, ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[accountID] = ready
}

// CreateOnboardingLink mocks a fresh onboarding URL per call
func (m *MockProcessor) CreateOnboardingLink(_ context.Context, accountID, _, _ string) (string, error) {
	return fmt.Sprintf("https://onboarding.example.com/%s/%s", accountID, uuid.NewString()[:8]), nil
}

// AccountReady reports the mocked onboarding state
func (m *MockProcessor) AccountReady(_ context.Context, accountID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[accountID], nil
}

// CreateFundingIntent mocks a destination-charge intent
func (m *MockProcessor) CreateFundingIntent(_ context.Context, req FundingRequest) (*FundingIntent, error) {
	if err := validateAmounts(req.Amount, req.PlatformFee); err != nil {
		return nil, types.NewProcessorRejected("invalid_amount", err.Error())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.IntentCalls++

	if m.FailNextIntent {
		m.FailNextIntent = false
		return nil, types.NewProcessorRejected("card_declined", "payment was declined")
	}
	if !m.accounts[req.DestinationAccountID] {
		return nil, types.NewProcessorRejected("account_not_ready", "destination account cannot receive transfers")
	}

	// A repeated idempotency key collapses onto the original intent
	id, ok := m.intentKeys[req.IdempotencyKey]
	if !ok || req.IdempotencyKey == "" {
		id = "pi_mock_" + uuid.NewString()[:8]
		m.intents[id] = &mockIntent{chargeID: "ch_mock_" + uuid.NewString()[:8]}
		if req.IdempotencyKey != "" {
			m.intentKeys[req.IdempotencyKey] = id
		}
	}

	if m.LoseNextIntent {
		m.LoseNextIntent = false
		return nil, types.NewProcessorTransient("network", "connection reset")
	}
	return &FundingIntent{
		ExternalID:   id,
		ClientSecret: id + "_secret",
	}, nil
}

// ConfirmPayment mocks a capture confirmation
func (m *MockProcessor) ConfirmPayment(_ context.Context, externalID string) (*Confirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[externalID]
	if !ok {
		return nil, types.NewProcessorRejected("resource_missing", "no such payment intent")
	}
	if m.DeclineNextConfirm {
		m.DeclineNextConfirm = false
		intent.failed = true
	} else if !intent.failed {
		intent.captured = true
	}

	return &Confirmation{
		Captured: intent.captured,
		Failed:   intent.failed,
		ChargeID: intent.chargeID,
	}, nil
}

// CreateTransfer mocks a separate-charge transfer
func (m *MockProcessor) CreateTransfer(_ context.Context, req TransferRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransferCalls++

	if !req.Amount.IsPositive() {
		return "", types.NewProcessorRejected("invalid_amount", "transfer amount must be positive")
	}

	// A repeated idempotency key collapses onto the original transfer and
	// moves no more money
	id, ok := m.transferKeys[req.IdempotencyKey]
	if !ok || req.IdempotencyKey == "" {
		id = "tr_mock_" + uuid.NewString()[:8]
		if req.IdempotencyKey != "" {
			m.transferKeys[req.IdempotencyKey] = id
		}
		m.executedTransfers = append(m.executedTransfers, id)
	}

	if m.LoseNextTransfer {
		m.LoseNextTransfer = false
		return "", types.NewProcessorTransient("network", "connection reset")
	}
	return id, nil
}

// ExecutedTransfers returns the ids of transfers that actually moved money,
// including ones whose response was lost
func (m *MockProcessor) ExecutedTransfers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.executedTransfers...)
}

// Refund mocks a full refund of a captured intent
func (m *MockProcessor) Refund(_ context.Context, externalID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RefundCalls++

	intent, ok := m.intents[externalID]
	if !ok || !intent.captured {
		return "", types.NewProcessorRejected("charge_not_captured", "nothing to refund")
	}
	if id, ok := m.refunds[externalID]; ok {
		return id, nil
	}
	id := "re_mock_" + uuid.NewString()[:8]
	m.refunds[externalID] = id
	return id, nil
}
