package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentStatus represents the state of one attempt to collect money from the business
type PaymentStatus int

// Payment status constants
const (
	// PaymentStatusPending indicates a funding intent exists but capture is not confirmed
	PaymentStatusPending PaymentStatus = iota
	// PaymentStatusSucceeded indicates funds were captured and are held in escrow
	PaymentStatusSucceeded
	// PaymentStatusFailed indicates the attempt was rejected by the processor
	PaymentStatusFailed
)

var paymentStatusNames = []string{
	"pending",
	"succeeded",
	"failed",
}

// JobPayment is one attempt to collect money from the business for a job.
// At most one succeeded payment exists per job; the external id is the
// idempotency key against the processor.
type JobPayment struct {
	gorm.Model
	JobID      uint            `json:"job_id" gorm:"not null;index"`
	ExternalID string          `json:"external_id" gorm:"not null;uniqueIndex"` // processor payment-intent id
	ChargeID   string          `json:"charge_id,omitempty"`                     // set once captured
	Amount     decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Currency   string          `json:"currency" gorm:"size:3;not null"`
	Status     PaymentStatus   `json:"status" gorm:"index"`
	CreatedAt  time.Time       `json:"created_at" gorm:"index"`
}

// ParsePaymentStatus converts a string representation of a payment status to PaymentStatus type
func ParsePaymentStatus(str string) (PaymentStatus, error) {
	for i, status := range paymentStatusNames {
		if status == str {
			return PaymentStatus(i), nil
		}
	}
	return PaymentStatusPending, fmt.Errorf("invalid payment status: %s", str)
}

// MarshalJSON implements the json.Marshaler interface for PaymentStatus
func (s PaymentStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for PaymentStatus
func (s *PaymentStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status, err := ParsePaymentStatus(str)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

func (s PaymentStatus) String() string {
	if int(s) < 0 || int(s) >= len(paymentStatusNames) {
		return "pending"
	}
	return paymentStatusNames[s]
}
