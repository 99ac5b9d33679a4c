// Package domain defines the claim audit trail.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ActorType string

const (
	ActorTypeSystem  ActorType = "system"
	ActorTypeUser    ActorType = "user"
	ActorTypeInsurer ActorType = "insurer"
)

const (
	ActionClaimSubmitted     = "claim.submitted"
	ActionClaimPosted        = "claim.posted"
	ActionClaimStatusChanged = "claim.status_changed"
	ActionClaimCancelled     = "claim.cancelled"
	ActionClaimPrinted       = "claim.printed"
	ActionBenefitReceived    = "gap.benefit_received"
	ActionGapPayment         = "gap.payment"
	ActionPaymentNotified    = "gap.payment_notified"
)

var (
	ErrInvalidAction = errors.New("invalid_action")
	ErrInvalidClaim  = errors.New("invalid_claim")
)

// AuditLog is one entry in a claim's history of changes.
type AuditLog struct {
	ID        snowflake.ID      `json:"id" gorm:"primaryKey"`
	ClaimID   snowflake.ID      `json:"claim_id" gorm:"not null;index"`
	ActorType ActorType         `json:"actor_type" gorm:"type:text;not null"`
	ActorID   *string           `json:"actor_id,omitempty" gorm:"type:text"`
	Action    string            `json:"action" gorm:"type:text;not null"`
	Message   string            `json:"message,omitempty" gorm:"type:text"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time         `json:"created_at" gorm:"not null"`
}

func (AuditLog) TableName() string { return "claim_audit_logs" }

// Entry is what callers record. Actor defaults to system.
type Entry struct {
	ClaimID  snowflake.ID
	Actor    ActorType
	ActorID  string
	Action   string
	Message  string
	Metadata map[string]any
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, log *AuditLog) error
	ListByClaim(ctx context.Context, db *gorm.DB, claimID snowflake.ID, limit int) ([]*AuditLog, error)
}
