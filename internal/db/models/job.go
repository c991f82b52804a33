package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agencyos/escrow/internal/types"
)

// Database field names used by repositories for ordering
const (
	// JobCreatedAtField is the database field name for the job creation timestamp
	JobCreatedAtField = "created_at"
	// JobUpdatedAtField is the database field name for the job update timestamp
	JobUpdatedAtField = "updated_at"
)

// JobStatus represents the current state of a job in the escrow lifecycle
type JobStatus int

// Job status constants
const (
	// JobStatusUnknown represents an unknown or invalid job status
	JobStatusUnknown JobStatus = iota
	// JobStatusDraft indicates the job was created by a business and no agency is attached yet
	JobStatusDraft
	// JobStatusPending indicates an agency has been invited and a decision is outstanding
	JobStatusPending
	// JobStatusUnfunded indicates the agency accepted and the job is waiting for escrow funding
	JobStatusUnfunded
	// JobStatusFunded indicates the business's payment was captured and is held in escrow
	JobStatusFunded
	// JobStatusInProgress indicates the agency started the work
	JobStatusInProgress
	// JobStatusReview indicates the agency submitted work for business review
	JobStatusReview
	// JobStatusRevision indicates the business requested changes
	JobStatusRevision
	// JobStatusApproved indicates the business approved the work and payout is authorized
	JobStatusApproved
	// JobStatusPaidOut indicates the escrowed funds were released to the agency
	JobStatusPaidOut
	// JobStatusCancelled indicates the job was cancelled before any funds were captured
	JobStatusCancelled
	// JobStatusRefunded indicates captured funds were returned to the business
	JobStatusRefunded
)

var jobStatusNames = []string{
	"unknown",
	"draft",
	"pending",
	"unfunded",
	"funded",
	"in_progress",
	"review",
	"revision",
	"approved",
	"paid_out",
	"cancelled",
	"refunded",
}

// Job represents a unit of paid work between one business and one agency.
// Amount and Currency are immutable after creation; Status only changes
// through the transition table below, driven by the escrow orchestrator.
type Job struct {
	gorm.Model
	BusinessID  uint            `json:"business_id" gorm:"not null;index"`
	AgencyID    uint            `json:"agency_id" gorm:"index"`
	Title       string          `json:"title" gorm:"not null"`
	Description string          `json:"description" gorm:"type:text"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	PlatformFee decimal.Decimal `json:"platform_fee" gorm:"type:numeric(12,2);not null"`
	Currency    string          `json:"currency" gorm:"size:3;not null"`
	Status      JobStatus       `json:"status" gorm:"index"`
	CreatedAt   time.Time       `json:"created_at" gorm:"index"`
}

// Validate checks the creation-time invariants of a job
func (j *Job) Validate() error {
	if j.BusinessID == 0 {
		return fmt.Errorf("business_id is required")
	}
	if j.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(j.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter ISO code")
	}
	if !j.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	if j.PlatformFee.IsNegative() {
		return fmt.Errorf("platform_fee must not be negative")
	}
	if j.PlatformFee.GreaterThan(j.Amount) {
		return fmt.Errorf("platform_fee must not exceed amount")
	}
	return nil
}

// PayoutAmount returns the amount released to the agency on payout,
// computed with exact decimal arithmetic
func (j *Job) PayoutAmount() decimal.Decimal {
	return j.Amount.Sub(j.PlatformFee)
}

// jobTransitions is the canonical transition table. A status change is legal
// iff the target appears in the source's entry. Terminal states have no entry.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusDraft:      {JobStatusPending, JobStatusCancelled},
	JobStatusPending:    {JobStatusUnfunded, JobStatusCancelled},
	JobStatusUnfunded:   {JobStatusFunded, JobStatusCancelled},
	JobStatusFunded:     {JobStatusInProgress, JobStatusRefunded},
	JobStatusInProgress: {JobStatusReview, JobStatusRefunded},
	JobStatusReview:     {JobStatusApproved, JobStatusRevision, JobStatusRefunded},
	JobStatusRevision:   {JobStatusReview, JobStatusRefunded},
	JobStatusApproved:   {JobStatusPaidOut, JobStatusRefunded},
}

// IsTerminal reports whether the status accepts no further transitions
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusPaidOut, JobStatusCancelled, JobStatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo is the pure decision function for status changes: given the
// current status and a requested target it returns nil when the transition is
// an edge in the table, a TerminalStateError when the current status is
// terminal, and an IllegalTransitionError otherwise. It performs no I/O.
func (s JobStatus) CanTransitionTo(target JobStatus) error {
	if s.IsTerminal() {
		return &types.TerminalStateError{Current: s.String()}
	}
	for _, allowed := range jobTransitions[s] {
		if allowed == target {
			return nil
		}
	}
	return &types.IllegalTransitionError{Current: s.String(), Requested: target.String()}
}

// ParseJobStatus converts a string representation of a job status to JobStatus type
func ParseJobStatus(str string) (JobStatus, error) {
	for i, status := range jobStatusNames {
		if status == str {
			return JobStatus(i), nil
		}
	}
	return JobStatusUnknown, fmt.Errorf("invalid job status: %s", str)
}

// MarshalJSON implements the json.Marshaler interface for JobStatus
func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for JobStatus
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	status, err := ParseJobStatus(str)
	if err != nil {
		return err
	}

	*s = status
	return nil
}

func (s JobStatus) String() string {
	if int(s) < 0 || int(s) >= len(jobStatusNames) {
		return jobStatusNames[JobStatusUnknown]
	}
	return jobStatusNames[s]
}
