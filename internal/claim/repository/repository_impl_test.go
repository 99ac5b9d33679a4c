package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/claim/repository"
	"github.com/smallbiznis/claimflow/internal/claimtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claimModels() []any {
	return []any{
		&domain.Claim{},
		&domain.ClaimItem{},
		&domain.ChargeReference{},
		&domain.Attachment{},
		&domain.ClaimAdjustment{},
	}
}

func newClaim(node *snowflake.Node, status domain.Status, invoiceID, invoiceItemID snowflake.ID) *domain.Claim {
	now := time.Now().UTC()
	claim := &domain.Claim{
		ID:         node.Generate(),
		Status:     status,
		CustomerID: node.Generate(),
		PatientID:  node.Generate(),
		LocationID: node.Generate(),
		StartTime:  now,
		Items: []domain.ClaimItem{{
			ID:        node.Generate(),
			StartTime: now,
			Charges: []domain.ChargeReference{{
				ID:            node.Generate(),
				InvoiceID:     invoiceID,
				InvoiceItemID: invoiceItemID,
				Amount:        12000,
				Tax:           1200,
			}},
		}},
		Attachments: []domain.Attachment{{
			ID:        node.Generate(),
			Name:      domain.HistoryAttachmentName,
			Type:      domain.AttachmentTypeHistory,
			Status:    domain.AttachmentStatusPending,
			StartTime: now,
		}},
	}
	claim.RecalculateTotals()
	return claim
}

func TestSaveDetectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	db := claimtest.OpenDB(t, claimModels()...)
	node := claimtest.Node(t)
	repo := repository.Provide()

	claim := newClaim(node, domain.StatusPending, node.Generate(), node.Generate())
	require.NoError(t, repo.Insert(ctx, db, claim))

	first, err := repo.Load(ctx, db, claim.ID)
	require.NoError(t, err)
	second, err := repo.Load(ctx, db, claim.ID)
	require.NoError(t, err)

	first.Message = "edited"
	require.NoError(t, repo.Save(ctx, db, first))
	assert.Equal(t, int64(1), first.Version)

	second.Message = "late"
	err = repo.Save(ctx, db, second)
	assert.True(t, errors.Is(err, domain.ErrStaleClaim))

	reloaded, err := repo.Load(ctx, db, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", reloaded.Message)
	assert.Len(t, reloaded.Items, 1)
	assert.Len(t, reloaded.Items[0].Charges, 1)
	assert.Len(t, reloaded.Attachments, 1)
	assert.Equal(t, int64(12000), reloaded.Amount)
}

func TestSaveMissingClaim(t *testing.T) {
	ctx := context.Background()
	db := claimtest.OpenDB(t, claimModels()...)
	node := claimtest.Node(t)
	repo := repository.Provide()

	claim := newClaim(node, domain.StatusPending, node.Generate(), node.Generate())
	err := repo.Save(ctx, db, claim)
	assert.True(t, errors.Is(err, domain.ErrClaimNotFound))

	_, err = repo.Load(ctx, db, claim.ID)
	assert.True(t, errors.Is(err, domain.ErrClaimNotFound))
}

func TestFindActiveClaimForChargeIgnoresCancelled(t *testing.T) {
	ctx := context.Background()
	db := claimtest.OpenDB(t, claimModels()...)
	node := claimtest.Node(t)
	repo := repository.Provide()

	invoiceID := node.Generate()
	itemID := node.Generate()
	holder := newClaim(node, domain.StatusSubmitted, invoiceID, itemID)
	require.NoError(t, repo.Insert(ctx, db, holder))

	other := node.Generate()
	found, err := repo.FindActiveClaimForCharge(ctx, db, itemID, other)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, holder.ID, found.ID)

	found, err = repo.FindActiveClaimForCharge(ctx, db, itemID, holder.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	holder.Status = domain.StatusCancelled
	require.NoError(t, repo.Save(ctx, db, holder))

	found, err = repo.FindActiveClaimForCharge(ctx, db, itemID, other)
	require.NoError(t, err)
	assert.Nil(t, found)

	claims, err := repo.ListByInvoice(ctx, db, invoiceID)
	require.NoError(t, err)
	assert.Len(t, claims, 1)
}

func TestDeleteRemovesChildren(t *testing.T) {
	ctx := context.Background()
	db := claimtest.OpenDB(t, claimModels()...)
	node := claimtest.Node(t)
	repo := repository.Provide()

	claim := newClaim(node, domain.StatusPending, node.Generate(), node.Generate())
	require.NoError(t, repo.Insert(ctx, db, claim))
	require.NoError(t, repo.Delete(ctx, db, claim.ID))

	var count int64
	require.NoError(t, db.Model(&domain.ChargeReference{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&domain.Attachment{}).Count(&count).Error)
	assert.Zero(t, count)
}
