package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PayoutStatus represents the state of a release of escrowed money to the agency
type PayoutStatus int

// Payout status constants
const (
	// PayoutStatusPending indicates the payout transfer was requested but not confirmed
	PayoutStatusPending PayoutStatus = iota
	// PayoutStatusPaid indicates the transfer to the agency completed
	PayoutStatusPaid
)

var payoutStatusNames = []string{
	"pending",
	"paid",
}

// JobPayout is one release of escrowed money to the agency. At most one
// payout exists per job, created only from approved jobs with a succeeded
// payment. Amount is job amount minus platform fee.
type JobPayout struct {
	gorm.Model
	JobID      uint            `json:"job_id" gorm:"not null;uniqueIndex"`
	ExternalID string          `json:"external_id" gorm:"not null"` // processor transfer id
	Amount     decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Currency   string          `json:"currency" gorm:"size:3;not null"`
	Status     PayoutStatus    `json:"status" gorm:"index"`
	CreatedAt  time.Time       `json:"created_at" gorm:"index"`
}

// ParsePayoutStatus converts a string representation of a payout status to PayoutStatus type
func ParsePayoutStatus(str string) (PayoutStatus, error) {
	for i, status := range payoutStatusNames {
		if status == str {
			return PayoutStatus(i), nil
		}
	}
	return PayoutStatusPending, fmt.Errorf("invalid payout status: %s", str)
}

// MarshalJSON implements the json.Marshaler interface for PayoutStatus
func (s PayoutStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for PayoutStatus
func (s *PayoutStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status, err := ParsePayoutStatus(str)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

func (s PayoutStatus) String() string {
	if int(s) < 0 || int(s) >= len(payoutStatusNames) {
		return "pending"
	}
	return payoutStatusNames[s]
}
