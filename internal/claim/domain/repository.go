package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists claim aggregates. Save is version-checked and returns ErrStaleClaim on conflict.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, claim *Claim) error
	Save(ctx context.Context, db *gorm.DB, claim *Claim) error
	Load(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Claim, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindActiveClaimForCharge(ctx context.Context, db *gorm.DB, invoiceItemID snowflake.ID, excludeClaimID snowflake.ID) (*Claim, error)
	ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]*Claim, error)
	ListByPolicy(ctx context.Context, db *gorm.DB, policyID snowflake.ID) ([]*Claim, error)
	InsertAdjustment(ctx context.Context, db *gorm.DB, adj *ClaimAdjustment) error
}
