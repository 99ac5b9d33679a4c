// Package payment records payments against gap claims and settles the gap.
package payment

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// GapPayment is money the practice took from the customer toward a gap claim.
type GapPayment struct {
	ID         snowflake.ID  `json:"id" gorm:"primaryKey"`
	ClaimID    snowflake.ID  `json:"claim_id" gorm:"not null;index"`
	Amount     int64         `json:"amount" gorm:"not null"`
	PaidBefore int64         `json:"paid_before" gorm:"not null;default:0"`
	Outcome    Outcome       `json:"outcome" gorm:"type:text;not null"`
	LocationID snowflake.ID  `json:"location_id" gorm:"not null"`
	UserID     *snowflake.ID `json:"user_id,omitempty"`
	Notes      string        `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt  time.Time     `json:"created_at" gorm:"not null"`
}

func (GapPayment) TableName() string { return "gap_payments" }

// Outcome classifies what a payment did to the claim.
type Outcome string

const (
	OutcomeFullyPaid Outcome = "FULLY_PAID"
	OutcomeGapPaid   Outcome = "GAP_PAID"
	OutcomePartial   Outcome = "PARTIAL"
)
