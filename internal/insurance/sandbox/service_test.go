package sandbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/clock"
	"github.com/smallbiznis/claimflow/internal/insurance/domain"
	"github.com/smallbiznis/claimflow/internal/insurance/notification"
	"github.com/smallbiznis/claimflow/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (r *recorder) Publish(_ context.Context, msg notification.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) kinds() []notification.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notification.Kind, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Kind)
	}
	return out
}

func newService(t *testing.T, cfg Config) (*Service, *scheduler.Loop, *recorder) {
	t.Helper()
	loop := scheduler.NewLoop(scheduler.Params{Log: zap.NewNop()})
	pub := &recorder{}
	svc := New(Params{
		Log:       zap.NewNop(),
		Clock:     clock.NewFakeClock(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)),
		Loop:      loop,
		Publisher: pub,
		Config:    &cfg,
	})
	return svc, loop, pub
}

// drain runs loop work until want notifications have been published.
func drain(t *testing.T, loop *scheduler.Loop, pub *recorder, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		loop.RunPending(context.Background())
		return len(pub.kinds()) >= want
	}, time.Second, time.Millisecond)
}

func immediate() Config {
	cfg := DefaultConfig()
	cfg.AcceptDelay = 0
	cfg.BenefitDelay = time.Millisecond
	cfg.SettleDelay = time.Millisecond
	cfg.CancelDelay = 0
	return cfg
}

func TestSubmitGapClaimAcceptsThenAssessesBenefit(t *testing.T) {
	svc, loop, pub := newService(t, immediate())
	claim := &claimdomain.Claim{ID: 11, Amount: 20000, IsGapClaim: true, Status: claimdomain.StatusPosted}

	decl, err := svc.Declaration(context.Background(), claim)
	require.NoError(t, err)
	res, err := svc.Submit(context.Background(), claim, decl)
	require.NoError(t, err)
	assert.Regexp(t, `^SBX-[0-9A-F]{8}$`, res.InsurerClaimID)

	drain(t, loop, pub, 2)
	assert.Equal(t, []notification.Kind{notification.KindAccepted, notification.KindBenefit}, pub.kinds())
	assert.Equal(t, int64(15000), pub.msgs[1].BenefitAmount)
	assert.Equal(t, ServiceName, pub.msgs[1].Service)
	assert.Equal(t, res.InsurerClaimID, pub.msgs[0].InsurerClaimID)
}

func TestSubmitWithoutDeclarationFails(t *testing.T) {
	svc, _, _ := newService(t, immediate())
	_, err := svc.Submit(context.Background(), &claimdomain.Claim{ID: 1, Amount: 100}, nil)
	assert.ErrorIs(t, err, claimdomain.ErrRemoteService)
}

func TestCancelStopsPendingAdjudication(t *testing.T) {
	cfg := immediate()
	cfg.AcceptDelay = time.Hour
	svc, loop, pub := newService(t, cfg)
	claim := &claimdomain.Claim{ID: 12, Amount: 20000, IsGapClaim: true, Status: claimdomain.StatusSubmitted}

	_, err := svc.Submit(context.Background(), claim, &domain.Declaration{})
	require.NoError(t, err)

	status, err := svc.Cancel(context.Background(), claim, "entered in error")
	require.NoError(t, err)
	assert.Equal(t, claimdomain.StatusCancelling, status)

	drain(t, loop, pub, 1)
	time.Sleep(10 * time.Millisecond)
	loop.RunPending(context.Background())
	assert.Equal(t, []notification.Kind{notification.KindCancelled}, pub.kinds())
	assert.Equal(t, "entered in error", pub.msgs[0].Message)
}

func TestCannotCancelPaidGap(t *testing.T) {
	svc, _, _ := newService(t, immediate())
	claim := &claimdomain.Claim{Status: claimdomain.StatusAccepted, GapStatus: claimdomain.GapStatusPaid}
	assert.False(t, svc.CanCancel(context.Background(), claim))

	_, err := svc.Cancel(context.Background(), claim, "")
	assert.ErrorIs(t, err, domain.ErrCannotCancel)
}

func TestValidate(t *testing.T) {
	svc, _, _ := newService(t, immediate())

	status, err := svc.Validate(context.Background(), &claimdomain.Claim{Amount: 100, Items: make([]claimdomain.ClaimItem, 1)})
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityOK, status.Severity)

	status, _ = svc.Validate(context.Background(), &claimdomain.Claim{Amount: 100, Items: make([]claimdomain.ClaimItem, 2)})
	assert.Equal(t, domain.SeverityWarning, status.Severity)

	status, _ = svc.Validate(context.Background(), &claimdomain.Claim{Amount: DefaultConfig().MaxAmount + 1})
	assert.Equal(t, domain.SeverityError, status.Severity)
}

func TestGapSupportAndSubmitWindow(t *testing.T) {
	svc, _, _ := newService(t, immediate())
	ctx := context.Background()
	insurer := &claimdomain.Insurer{ID: 1, Active: true, ServiceName: ServiceName}

	ok, err := svc.SupportsGapClaims(ctx, insurer, "PS-1001", snowflake.ID(1))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = svc.SupportsGapClaims(ctx, insurer, "nogap-1001", snowflake.ID(1))
	assert.False(t, ok)

	now := time.Date(2024, 3, 4, 23, 30, 0, 0, time.UTC)
	times, err := svc.GapClaimSubmitTimes(ctx, insurer, now, snowflake.ID(1))
	require.NoError(t, err)
	assert.ErrorIs(t, times.Check(now), claimdomain.ErrSubmitWindowClosed)
	assert.NoError(t, times.Check(time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)))
	assert.ErrorIs(t, times.Check(time.Date(2024, 3, 4, 6, 59, 0, 0, time.UTC)), claimdomain.ErrSubmitWindowClosed)
}
