package notification

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/claimflow/internal/audit"
	auditdomain "github.com/smallbiznis/claimflow/internal/audit/domain"
	auditrepo "github.com/smallbiznis/claimflow/internal/audit/repository"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/claim/lifecycle"
	"github.com/smallbiznis/claimflow/internal/claim/repository"
	"github.com/smallbiznis/claimflow/internal/claimtest"
	"github.com/smallbiznis/claimflow/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type harness struct {
	db      *gorm.DB
	node    *snowflake.Node
	claims  claimdomain.Repository
	audit   *audit.Recorder
	handler *Handler
}

func newHarness(t *testing.T, claims claimdomain.Repository) *harness {
	t.Helper()
	models := append(claimtest.ClaimModels(), &auditdomain.AuditLog{})
	db := claimtest.OpenDB(t, models...)
	node := claimtest.Node(t)
	clk := clock.NewFakeClock(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC))
	if claims == nil {
		claims = repository.Provide()
	}
	rec := audit.NewRecorder(audit.Params{Log: zap.NewNop(), Clock: clk, GenID: node, Repo: auditrepo.Provide()})
	h := NewHandler(HandlerParams{
		DB:      db,
		Log:     zap.NewNop(),
		Claims:  claims,
		Machine: lifecycle.NewMachine(lifecycle.Params{Clock: clk, GenID: node}),
		Audit:   rec,
	})
	h.initialInterval = time.Millisecond
	return &harness{db: db, node: node, claims: claims, audit: rec, handler: h}
}

func (h *harness) gapClaim(t *testing.T, status claimdomain.Status) *claimdomain.Claim {
	claim := claimtest.NewClaim(h.node, status, 20000)
	claim.IsGapClaim = true
	return claimtest.StoreClaim(t, h.db, claim)
}

func (h *harness) load(t *testing.T, id snowflake.ID) *claimdomain.Claim {
	claim, err := h.claims.Load(context.Background(), h.db, id)
	require.NoError(t, err)
	return claim
}

func encode(t *testing.T, msg Message) []byte {
	body, err := Encode(msg)
	require.NoError(t, err)
	return body
}

func TestAcceptedThenBenefit(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	claim := h.gapClaim(t, claimdomain.StatusSubmitted)

	require.NoError(t, h.handler.Handle(ctx, encode(t, Message{Kind: KindAccepted, Service: "sandbox", ClaimID: claim.ID, InsurerClaimID: "SBX-1"})))
	got := h.load(t, claim.ID)
	assert.Equal(t, claimdomain.StatusAccepted, got.Status)
	assert.Equal(t, claimdomain.GapStatusPending, got.GapStatus)
	assert.Equal(t, "SBX-1", got.InsurerClaimID)

	benefit := Message{Kind: KindBenefit, Service: "sandbox", ClaimID: claim.ID, BenefitAmount: 15000, BenefitNotes: "75% cover"}
	require.NoError(t, h.handler.Handle(ctx, encode(t, benefit)))
	got = h.load(t, claim.ID)
	assert.Equal(t, claimdomain.GapStatusReceived, got.GapStatus)
	assert.Equal(t, int64(15000), got.BenefitAmount)
	assert.Equal(t, int64(5000), got.GapAmount())

	version := got.Version
	require.NoError(t, h.handler.Handle(ctx, encode(t, benefit)))
	assert.Equal(t, version, h.load(t, claim.ID).Version)

	logs, err := h.audit.List(ctx, h.db, claim.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, auditdomain.ActionBenefitReceived, logs[0].Action)
	assert.Equal(t, auditdomain.ActorTypeInsurer, logs[0].ActorType)
}

func TestBenefitAcceptsSubmittedClaim(t *testing.T) {
	h := newHarness(t, nil)
	claim := h.gapClaim(t, claimdomain.StatusSubmitted)

	require.NoError(t, h.handler.Apply(context.Background(), Message{Kind: KindBenefit, ClaimID: claim.ID, BenefitAmount: 15000}))
	got := h.load(t, claim.ID)
	assert.Equal(t, claimdomain.StatusAccepted, got.Status)
	assert.Equal(t, claimdomain.GapStatusReceived, got.GapStatus)
	assert.Equal(t, int64(15000), got.BenefitAmount)
}

func TestLateNotificationIsDropped(t *testing.T) {
	h := newHarness(t, nil)
	claim := h.gapClaim(t, claimdomain.StatusCancelled)

	require.NoError(t, h.handler.Apply(context.Background(), Message{Kind: KindAccepted, ClaimID: claim.ID}))
	assert.Equal(t, claimdomain.StatusCancelled, h.load(t, claim.ID).Status)

	require.NoError(t, h.handler.Apply(context.Background(), Message{Kind: KindSettled, ClaimID: h.node.Generate()}))
}

func TestCancellingClaimIsCancelled(t *testing.T) {
	h := newHarness(t, nil)
	claim := h.gapClaim(t, claimdomain.StatusCancelling)

	require.NoError(t, h.handler.Apply(context.Background(), Message{Kind: KindCancelled, ClaimID: claim.ID, Message: "withdrawn by practice"}))
	got := h.load(t, claim.ID)
	assert.Equal(t, claimdomain.StatusCancelled, got.Status)
	assert.Equal(t, "withdrawn by practice", got.Message)
	assert.NotNil(t, got.EndTime)
}

func TestMalformedNotification(t *testing.T) {
	h := newHarness(t, nil)

	assert.ErrorIs(t, h.handler.Handle(context.Background(), []byte("{")), ErrMalformed)
	assert.ErrorIs(t, h.handler.Handle(context.Background(), []byte(`{"kind":"accepted"}`)), ErrMalformed)
	assert.ErrorIs(t, h.handler.Handle(context.Background(), []byte(`{"kind":"paid","claim_id":"12"}`)), ErrMalformed)
}

// staleOnce fails the first save as if another writer got there first.
type staleOnce struct {
	claimdomain.Repository
	failed bool
	saves  int
}

func (s *staleOnce) Save(ctx context.Context, db *gorm.DB, claim *claimdomain.Claim) error {
	s.saves++
	if !s.failed {
		s.failed = true
		return claimdomain.ErrStaleClaim
	}
	return s.Repository.Save(ctx, db, claim)
}

func TestConcurrentSaveIsRetried(t *testing.T) {
	repo := &staleOnce{Repository: repository.Provide()}
	h := newHarness(t, repo)
	claim := h.gapClaim(t, claimdomain.StatusSubmitted)

	require.NoError(t, h.handler.Apply(context.Background(), Message{Kind: KindAccepted, ClaimID: claim.ID}))
	assert.Equal(t, 2, repo.saves)
	assert.Equal(t, claimdomain.StatusAccepted, h.load(t, claim.ID).Status)
}

func TestDecodeRoundTripKeepsClaimID(t *testing.T) {
	msg := Message{ID: "n-1", Kind: KindDeclined, ClaimID: 1234567890123, Message: "not covered"}
	got, err := Decode(encode(t, msg))
	require.NoError(t, err)
	assert.Equal(t, msg.ClaimID, got.ClaimID)
	assert.Equal(t, "not covered", got.Message)
}
