package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/claimflow/internal/claim/domain"
	dbpkg "github.com/smallbiznis/claimflow/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, claim *domain.Claim) error {
	if claim == nil {
		return nil
	}
	now := time.Now().UTC()
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = now
	}
	claim.UpdatedAt = now

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(claim).Error; err != nil {
			return err
		}
		return insertChildren(tx, claim)
	})
}

// Save writes the claim and replaces its children, provided nobody saved it since it was loaded.
func (r *repo) Save(ctx context.Context, db *gorm.DB, claim *domain.Claim) error {
	if claim == nil {
		return nil
	}
	now := time.Now().UTC()

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Claim{}).
			Where("id = ? AND version = ?", claim.ID, claim.Version).
			Updates(map[string]any{
				"version":          claim.Version + 1,
				"status":           claim.Status,
				"amount":           claim.Amount,
				"tax":              claim.Tax,
				"policy_id":        claim.PolicyID,
				"customer_id":      claim.CustomerID,
				"patient_id":       claim.PatientID,
				"location_id":      claim.LocationID,
				"clinician_id":     claim.ClinicianID,
				"user_id":          claim.UserID,
				"insurer_claim_id": claim.InsurerClaimID,
				"message":          claim.Message,
				"is_gap_claim":     claim.IsGapClaim,
				"benefit_amount":   claim.BenefitAmount,
				"benefit_notes":    claim.BenefitNotes,
				"gap_status":       claim.GapStatus,
				"paid_amount":      claim.PaidAmount,
				"start_time":       claim.StartTime,
				"end_time":         claim.EndTime,
				"updated_at":       now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&domain.Claim{}).Where("id = ?", claim.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.ErrClaimNotFound
			}
			return domain.ErrStaleClaim
		}

		if err := deleteChildren(tx, claim.ID); err != nil {
			return err
		}
		return insertChildren(tx, claim)
	})
	if err != nil {
		return err
	}

	claim.Version++
	claim.UpdatedAt = now
	return nil
}

// Load returns a fresh copy of the claim with items, charges and attachments in stable order.
func (r *repo) Load(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Claim, error) {
	var claim domain.Claim
	err := db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("start_time ASC, id ASC") }).
		Preload("Items.Charges", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&claim, "id = ?", id).Error
	if dbpkg.IsNotFound(err) {
		return nil, domain.ErrClaimNotFound
	}
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteChildren(tx, id); err != nil {
			return err
		}
		if err := tx.Where("claim_id = ?", id).Delete(&domain.ClaimAdjustment{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Claim{}).Error
	})
}

// FindActiveClaimForCharge returns the claim other than excludeClaimID that holds the invoice item, or nil.
func (r *repo) FindActiveClaimForCharge(ctx context.Context, db *gorm.DB, invoiceItemID snowflake.ID, excludeClaimID snowflake.ID) (*domain.Claim, error) {
	var claims []domain.Claim
	err := db.WithContext(ctx).
		Model(&domain.Claim{}).
		Select("claims.*").
		Joins("JOIN claim_charges ON claim_charges.claim_id = claims.id").
		Where("claim_charges.invoice_item_id = ?", invoiceItemID).
		Where("claims.status NOT IN ?", []domain.Status{domain.StatusCancelled, domain.StatusDeclined}).
		Where("claims.id <> ?", excludeClaimID).
		Order("claims.id ASC").
		Limit(1).
		Find(&claims).Error
	if err != nil {
		return nil, err
	}
	if len(claims) == 0 {
		return nil, nil
	}
	return &claims[0], nil
}

func (r *repo) ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]*domain.Claim, error) {
	var claims []*domain.Claim
	sub := db.Model(&domain.ChargeReference{}).Select("claim_id").Where("invoice_id = ?", invoiceID)
	err := db.WithContext(ctx).
		Where("id IN (?)", sub).
		Order("id ASC").
		Find(&claims).Error
	return claims, err
}

func (r *repo) ListByPolicy(ctx context.Context, db *gorm.DB, policyID snowflake.ID) ([]*domain.Claim, error) {
	var claims []*domain.Claim
	err := db.WithContext(ctx).
		Where("policy_id = ?", policyID).
		Order("id ASC").
		Find(&claims).Error
	return claims, err
}

func (r *repo) InsertAdjustment(ctx context.Context, db *gorm.DB, adj *domain.ClaimAdjustment) error {
	if adj == nil {
		return nil
	}
	return db.WithContext(ctx).Create(adj).Error
}

func deleteChildren(tx *gorm.DB, claimID snowflake.ID) error {
	if err := tx.Where("claim_id = ?", claimID).Delete(&domain.ChargeReference{}).Error; err != nil {
		return err
	}
	if err := tx.Where("claim_id = ?", claimID).Delete(&domain.ClaimItem{}).Error; err != nil {
		return err
	}
	return tx.Where("claim_id = ?", claimID).Delete(&domain.Attachment{}).Error
}

func insertChildren(tx *gorm.DB, claim *domain.Claim) error {
	for i := range claim.Items {
		item := &claim.Items[i]
		item.ClaimID = claim.ID
		if err := tx.Omit(clause.Associations).Create(item).Error; err != nil {
			return err
		}
		for j := range item.Charges {
			charge := &item.Charges[j]
			charge.ClaimID = claim.ID
			charge.ClaimItemID = item.ID
			if err := tx.Create(charge).Error; err != nil {
				return err
			}
		}
	}
	for i := range claim.Attachments {
		attachment := &claim.Attachments[i]
		attachment.ClaimID = claim.ID
		if err := tx.Create(attachment).Error; err != nil {
			return err
		}
	}
	return nil
}
