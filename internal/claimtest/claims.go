package claimtest

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/claim/repository"
	"gorm.io/gorm"
)

// ClaimModels are the tables a stored claim aggregate needs.
func ClaimModels() []any {
	return []any{
		&claimdomain.Claim{},
		&claimdomain.ClaimItem{},
		&claimdomain.ChargeReference{},
		&claimdomain.Attachment{},
		&claimdomain.ClaimAdjustment{},
		&claimdomain.Policy{},
		&claimdomain.Insurer{},
	}
}

// NewClaim builds a claim with one item and one charge of amount cents.
func NewClaim(node *snowflake.Node, status claimdomain.Status, amount int64) *claimdomain.Claim {
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	claim := &claimdomain.Claim{
		ID:         node.Generate(),
		Status:     status,
		CustomerID: node.Generate(),
		PatientID:  node.Generate(),
		LocationID: node.Generate(),
		StartTime:  now,
		Items: []claimdomain.ClaimItem{{
			ID:        node.Generate(),
			StartTime: now,
			Charges: []claimdomain.ChargeReference{{
				ID:            node.Generate(),
				InvoiceID:     node.Generate(),
				InvoiceItemID: node.Generate(),
				Amount:        amount,
			}},
		}},
	}
	claim.RecalculateTotals()
	return claim
}

// StoreClaim inserts claim and returns it as loaded back from db.
func StoreClaim(t testing.TB, db *gorm.DB, claim *claimdomain.Claim) *claimdomain.Claim {
	t.Helper()
	repo := repository.Provide()
	if err := repo.Insert(context.Background(), db, claim); err != nil {
		t.Fatalf("insert claim: %v", err)
	}
	loaded, err := repo.Load(context.Background(), db, claim.ID)
	if err != nil {
		t.Fatalf("load claim: %v", err)
	}
	return loaded
}
