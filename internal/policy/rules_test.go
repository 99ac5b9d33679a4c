package policy_test

import (
	"context"
	"errors"
	"testing"
	"time"

	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	claimrepo "github.com/smallbiznis/claimflow/internal/claim/repository"
	"github.com/smallbiznis/claimflow/internal/claimtest"
	"github.com/smallbiznis/claimflow/internal/clock"
	"github.com/smallbiznis/claimflow/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResolvePolicy(t *testing.T) {
	ctx := context.Background()
	db := claimtest.OpenDB(t,
		&claimdomain.Claim{}, &claimdomain.ClaimItem{}, &claimdomain.ChargeReference{},
		&claimdomain.Attachment{}, &claimdomain.ClaimAdjustment{},
		&claimdomain.Policy{}, &claimdomain.Insurer{},
	)
	node := claimtest.Node(t)
	claims := claimrepo.Provide()
	rules := policy.NewRules(policy.Params{
		Log:    zap.NewNop(),
		Clock:  clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		GenID:  node,
		Claims: claims,
	})

	insurer := &claimdomain.Insurer{ID: node.Generate(), Name: "PetSure", Active: true}
	other := &claimdomain.Insurer{ID: node.Generate(), Name: "PawCover", Active: true}
	require.NoError(t, db.Create(insurer).Error)
	require.NoError(t, db.Create(other).Error)

	claim := &claimdomain.Claim{
		ID:         node.Generate(),
		Status:     claimdomain.StatusPending,
		CustomerID: node.Generate(),
		PatientID:  node.Generate(),
		LocationID: node.Generate(),
		StartTime:  time.Now().UTC(),
	}

	_, err := rules.ResolvePolicy(ctx, db, claim, policy.Request{InsurerID: insurer.ID, PolicyNumber: "  "})
	assert.True(t, errors.Is(err, claimdomain.ErrInvalidPolicyNumber))

	created, err := rules.ResolvePolicy(ctx, db, claim, policy.Request{InsurerID: insurer.ID, PolicyNumber: " PS-100 "})
	require.NoError(t, err)
	assert.Equal(t, "PS-100", created.PolicyNumber)
	require.NotNil(t, claim.PolicyID)
	assert.Equal(t, created.ID, *claim.PolicyID)
	require.NoError(t, claims.Insert(ctx, db, claim))

	again, err := rules.ResolvePolicy(ctx, db, claim, policy.Request{InsurerID: insurer.ID, PolicyNumber: "PS-100"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	// Only this claim uses the policy, so it is corrected in place.
	updated, err := rules.ResolvePolicy(ctx, db, claim, policy.Request{InsurerID: other.ID, PolicyNumber: "PC-7"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	loaded, err := rules.Policy(ctx, db, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "PC-7", loaded.PolicyNumber)
	require.NotNil(t, loaded.Insurer)
	assert.Equal(t, "PawCover", loaded.Insurer.Name)

	ok, err := rules.CanChangePolicyNumber(ctx, db, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	claim.Status = claimdomain.StatusSubmitted
	require.NoError(t, claims.Save(ctx, db, claim))
	ok, err = rules.CanChangePolicyNumber(ctx, db, created.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInactiveInsurerRejected(t *testing.T) {
	db := claimtest.OpenDB(t, &claimdomain.Claim{}, &claimdomain.Policy{}, &claimdomain.Insurer{})
	node := claimtest.Node(t)
	rules := policy.NewRules(policy.Params{Log: zap.NewNop(), Clock: clock.System(), GenID: node, Claims: claimrepo.Provide()})

	insurer := &claimdomain.Insurer{ID: node.Generate(), Name: "Gone", Active: true}
	require.NoError(t, db.Create(insurer).Error)
	require.NoError(t, db.Model(insurer).Update("active", false).Error)

	_, err := rules.Insurer(context.Background(), db, insurer.ID)
	assert.True(t, errors.Is(err, policy.ErrInsurerInactive))

	_, err = rules.Insurer(context.Background(), db, node.Generate())
	assert.True(t, errors.Is(err, policy.ErrInsurerNotFound))
}

func TestCurrentClaims(t *testing.T) {
	ctx := context.Background()
	db := claimtest.OpenDB(t,
		&claimdomain.Claim{}, &claimdomain.ClaimItem{}, &claimdomain.ChargeReference{},
		&claimdomain.Attachment{}, &claimdomain.ClaimAdjustment{},
	)
	node := claimtest.Node(t)
	claims := claimrepo.Provide()
	rules := policy.NewRules(policy.Params{Log: zap.NewNop(), Clock: clock.System(), GenID: node, Claims: claims})
	invoiceID := node.Generate()

	insert := func(status claimdomain.Status, gap bool, gapStatus claimdomain.GapStatus) {
		claim := &claimdomain.Claim{
			ID: node.Generate(), Status: status, IsGapClaim: gap, GapStatus: gapStatus,
			CustomerID: node.Generate(), PatientID: node.Generate(), LocationID: node.Generate(),
			StartTime: time.Now().UTC(),
			Items: []claimdomain.ClaimItem{{
				ID: node.Generate(), StartTime: time.Now().UTC(),
				Charges: []claimdomain.ChargeReference{{ID: node.Generate(), InvoiceID: invoiceID, InvoiceItemID: node.Generate(), Amount: 100}},
			}},
		}
		require.NoError(t, claims.Insert(ctx, db, claim))
	}

	claimed, err := rules.IsClaimed(ctx, db, invoiceID)
	require.NoError(t, err)
	assert.False(t, claimed)

	insert(claimdomain.StatusCancelled, false, "")
	claimed, err = rules.IsClaimed(ctx, db, invoiceID)
	require.NoError(t, err)
	assert.False(t, claimed)

	insert(claimdomain.StatusSubmitted, false, "")
	insert(claimdomain.StatusAccepted, true, claimdomain.GapStatusReceived)
	insert(claimdomain.StatusAccepted, true, claimdomain.GapStatusPaid)
	insert(claimdomain.StatusSettled, false, "")

	claimed, err = rules.IsClaimed(ctx, db, invoiceID)
	require.NoError(t, err)
	assert.True(t, claimed)

	current, err := rules.CurrentClaims(ctx, db, invoiceID)
	require.NoError(t, err)
	assert.Len(t, current, 3)

	gap, err := rules.CurrentGapClaims(ctx, db, invoiceID)
	require.NoError(t, err)
	require.Len(t, gap, 1)
	assert.Equal(t, claimdomain.GapStatusReceived, gap[0].GapStatus)
}
