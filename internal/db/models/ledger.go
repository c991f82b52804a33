package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// LedgerEventType identifies the kind of money- or status-affecting event a
// ledger entry records
type LedgerEventType string

// Ledger event types
const (
	// LedgerEventPaymentIntentCreated is appended when a funding intent is created at the processor
	LedgerEventPaymentIntentCreated LedgerEventType = "payment_intent_created"
	// LedgerEventPaymentSucceeded is appended when a capture is confirmed
	LedgerEventPaymentSucceeded LedgerEventType = "payment_succeeded"
	// LedgerEventPaymentFailed is appended when the processor rejects a payment attempt
	LedgerEventPaymentFailed LedgerEventType = "payment_failed"
	// LedgerEventPayoutCompleted is appended when escrowed funds are released to the agency
	LedgerEventPayoutCompleted LedgerEventType = "payout_completed"
	// LedgerEventJobApproved is appended when the business approves submitted work
	LedgerEventJobApproved LedgerEventType = "job_approved"
	// LedgerEventRevisionRequested is appended when the business requests changes
	LedgerEventRevisionRequested LedgerEventType = "revision_requested"
	// LedgerEventJobCancelled is appended when a job is cancelled before funding
	LedgerEventJobCancelled LedgerEventType = "job_cancelled"
	// LedgerEventJobRefunded is appended when captured funds are returned to the business
	LedgerEventJobRefunded LedgerEventType = "job_refunded"
	// LedgerEventAgencyInvited is appended when a business invites an agency to a draft job
	LedgerEventAgencyInvited LedgerEventType = "agency_invited"
	// LedgerEventAgencyAccepted is appended when the agency accepts a pending job
	LedgerEventAgencyAccepted LedgerEventType = "agency_accepted"
	// LedgerEventWorkStarted is appended when the agency starts work on a funded job
	LedgerEventWorkStarted LedgerEventType = "work_started"
	// LedgerEventWorkSubmitted is appended when the agency submits or resubmits work for review
	LedgerEventWorkSubmitted LedgerEventType = "work_submitted"
)

// LedgerEntry is an append-only audit record. Entries are never updated or
// deleted; the repository exposes no operation that could do either. Ordering
// by CreatedAt for a job reflects the causal order of the events recorded.
type LedgerEntry struct {
	gorm.Model
	JobID     uint            `json:"job_id" gorm:"not null;index"`
	ActorID   uint            `json:"actor_id"`
	EventType LedgerEventType `json:"event_type" gorm:"not null;index"`
	Details   json.RawMessage `json:"details,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time       `json:"created_at" gorm:"index"`
}

// LedgerDetails marshals a detail map for a ledger entry. Marshal failures
// degrade to an empty object rather than blocking the append.
func LedgerDetails(fields map[string]interface{}) json.RawMessage {
	raw, err := json.Marshal(fields)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}
