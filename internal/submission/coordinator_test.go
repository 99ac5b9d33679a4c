package submission_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	auditdomain "github.com/smallbiznis/claimflow/internal/audit/domain"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/claim/editor"
	"github.com/smallbiznis/claimflow/internal/claimtest"
	"github.com/smallbiznis/claimflow/internal/clock"
	"github.com/smallbiznis/claimflow/internal/config"
	"github.com/smallbiznis/claimflow/internal/gap/payment"
	"github.com/smallbiznis/claimflow/internal/gap/poller"
	"github.com/smallbiznis/claimflow/internal/insurance"
	insurancedomain "github.com/smallbiznis/claimflow/internal/insurance/domain"
	"github.com/smallbiznis/claimflow/internal/insurance/mock"
	"github.com/smallbiznis/claimflow/internal/lock"
	"github.com/smallbiznis/claimflow/internal/scheduler"
	"github.com/smallbiznis/claimflow/internal/submission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeUser answers prompts from its fields and records what it was shown.
type fakeUser struct {
	mu sync.Mutex

	decline       bool
	rejectTerms   bool
	backOutReason bool
	reason        string
	payFull       bool

	confirms []string
	informs  []string
	printed  [][]submission.PrintItem
	printMsg string
	waits    []submission.BenefitWait
}

func (u *fakeUser) Confirm(_ context.Context, _, message string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.confirms = append(u.confirms, message)
	return !u.decline
}

func (u *fakeUser) AcceptDeclaration(context.Context, *claimdomain.Claim, *insurancedomain.Declaration) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return !u.rejectTerms
}

func (u *fakeUser) PromptReason(context.Context, string, string) (string, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.reason, !u.backOutReason
}

func (u *fakeUser) Inform(_ context.Context, _, message string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.informs = append(u.informs, message)
}

func (u *fakeUser) PromptPayment(_ context.Context, claim *claimdomain.Claim, payFull bool) (submission.PaymentChoice, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	amount := claim.GapAmount() - claim.PaidAmount
	if payFull || u.payFull {
		amount = claim.Outstanding()
	}
	return submission.PaymentChoice{Amount: amount, LocationID: claim.LocationID}, true
}

func (u *fakeUser) SelectForPrint(_ context.Context, _ *claimdomain.Claim, items []submission.PrintItem, message string) ([]submission.PrintItem, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.printed = append(u.printed, items)
	u.printMsg = message
	return items, true
}

func (u *fakeUser) WaitForBenefit(_ context.Context, _ *claimdomain.Claim, wait submission.BenefitWait) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.waits = append(u.waits, wait)
}

func (u *fakeUser) waiting() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.waits)
}

type fakePrinter struct {
	mu    sync.Mutex
	items []submission.PrintItem
	err   error
}

func (p *fakePrinter) Print(_ context.Context, _ *claimdomain.Claim, items []submission.PrintItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = append(p.items, items...)
	return p.err
}

type fixture struct {
	*claimtest.Engine
	svc         *mock.MockGapInsuranceService
	user        *fakeUser
	printer     *fakePrinter
	locker      lock.Locker
	loop        *scheduler.Loop
	coordinator *submission.Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()
	ctrl := gomock.NewController(t)
	svc := mock.NewMockGapInsuranceService(ctrl)
	svc.EXPECT().Name().Return("sandbox").AnyTimes()

	e := claimtest.NewEngine(t, []insurance.Registration{{ServiceName: "sandbox", Service: svc}}, &payment.GapPayment{})
	cfg := config.NewStaticClaimsConfigHolder(config.ClaimsConfig{
		PollInterval: time.Millisecond,
		PollTick:     2 * time.Millisecond,
	})
	loop := scheduler.NewLoop(scheduler.Params{Log: log})
	locker := lock.NewLocalLocker(e.Clock)
	user := &fakeUser{reason: "Duplicate claim"}
	printer := &fakePrinter{}

	reconciler := payment.NewReconciler(payment.Params{
		DB: e.DB, Log: log, Clock: e.Clock, GenID: e.Node,
		Claims: e.Claims, Machine: e.Machine, Policies: e.Policies, Audit: e.Audit, Config: cfg,
	})
	waits := poller.New(poller.Params{DB: e.DB, Log: log, Clock: clock.System(), Loop: loop, Claims: e.Claims, Config: cfg})

	coordinator := submission.NewCoordinator(submission.Params{
		DB:          e.DB,
		Log:         log,
		Clock:       e.Clock,
		Claims:      e.Claims,
		Machine:     e.Machine,
		Editors:     e.Editors,
		Policies:    e.Policies,
		Services:    e.Services,
		Reconciler:  reconciler,
		Poller:      waits,
		Printer:     printer,
		Locker:      locker,
		Interaction: user,
		Audit:       e.Audit,
		Config:      cfg,
	})
	return &fixture{Engine: e, svc: svc, user: user, printer: printer, locker: locker, loop: loop, coordinator: coordinator}
}

// run calls op and returns what it reported. It fails the test if op never completes.
func run(t *testing.T, op func(done func(error))) error {
	t.Helper()
	result := make(chan error, 1)
	op(func(err error) { result <- err })
	select {
	case err := <-result:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("operation did not complete")
		return nil
	}
}

func (f *fixture) draft(t *testing.T, insurer *claimdomain.Insurer, gap bool) *editor.Editor {
	t.Helper()
	patientID := f.Node.Generate()
	_, items := f.Invoice(t, patientID, "INV-"+patientID.String(), !gap, 15000, 5000)
	return f.Draft(t, insurer, gap, patientID, items...)
}

// stored puts a drafted claim straight into status.
func (f *fixture) stored(t *testing.T, insurer *claimdomain.Insurer, status claimdomain.Status) *claimdomain.Claim {
	t.Helper()
	claim := f.draft(t, insurer, false).Claim()
	claim.Status = status
	require.NoError(t, f.Claims.Save(context.Background(), f.DB, claim))
	return f.load(t, claim)
}

func (f *fixture) load(t *testing.T, claim *claimdomain.Claim) *claimdomain.Claim {
	t.Helper()
	got, err := f.Claims.Load(context.Background(), f.DB, claim.ID)
	require.NoError(t, err)
	return got
}

func TestSubmitOfflineFinalisesAndPrints(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	insurer := f.Insurer(t, "Paper Mutual", "")
	ed := f.draft(t, insurer, false)

	require.NoError(t, run(t, func(done func(error)) { f.coordinator.Submit(ctx, ed, done) }))

	claim := f.load(t, ed.Claim())
	assert.Equal(t, claimdomain.StatusSubmitted, claim.Status)
	require.Len(t, claim.Attachments, 2)
	for _, a := range claim.Attachments {
		assert.Equal(t, claimdomain.AttachmentStatusComplete, a.Status, a.Name)
	}
	require.Len(t, f.user.confirms, 1)
	assert.Contains(t, f.user.confirms[0], "Paper Mutual does not accept online claims")
	assert.Len(t, f.printer.items, 3)
	assert.Empty(t, f.user.printMsg)

	logs, err := f.Audit.List(ctx, f.DB, claim.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, auditdomain.ActionClaimPrinted, logs[0].Action)
	assert.Equal(t, auditdomain.ActionClaimSubmitted, logs[1].Action)
}

func TestSubmitOnlineWithDeclaration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	insurer := f.Insurer(t, "PetSure", "sandbox")
	ed := f.draft(t, insurer, false)

	declaration := &insurancedomain.Declaration{Text: "The information is true."}
	f.svc.EXPECT().CanValidateClaims().Return(false)
	f.svc.EXPECT().Declaration(gomock.Any(), gomock.Any()).Return(declaration, nil)
	f.svc.EXPECT().Submit(gomock.Any(), gomock.Any(), declaration).
		DoAndReturn(func(_ context.Context, claim *claimdomain.Claim, _ *insurancedomain.Declaration) (insurancedomain.SubmitResult, error) {
			assert.Equal(t, claimdomain.StatusPosted, claim.Status)
			return insurancedomain.SubmitResult{InsurerClaimID: "PB-42"}, nil
		})

	require.NoError(t, run(t, func(done func(error)) { f.coordinator.Submit(ctx, ed, done) }))

	claim := f.load(t, ed.Claim())
	assert.Equal(t, claimdomain.StatusSubmitted, claim.Status)
	assert.Equal(t, "PB-42", claim.InsurerClaimID)
	assert.Equal(t, claimdomain.StatusSubmitted, ed.Claim().Status)
	assert.Contains(t, f.user.confirms[0], "using sandbox")
	assert.Empty(t, f.printer.items)
}

func TestRejectedDeclarationLeavesClaimPosted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	insurer := f.Insurer(t, "PetSure", "sandbox")
	ed := f.draft(t, insurer, false)
	declaration := &insurancedomain.Declaration{Text: "Terms"}

	f.user.rejectTerms = true
	f.svc.EXPECT().CanValidateClaims().Return(false)
	f.svc.EXPECT().Declaration(gomock.Any(), gomock.Any()).Return(declaration, nil).Times(2)
	require.NoError(t, run(t, func(done func(error)) { f.coordinator.Submit(ctx, ed, done) }))
	assert.Equal(t, claimdomain.StatusPosted, f.load(t, ed.Claim()).Status)

	f.user.rejectTerms = false
	f.svc.EXPECT().Submit(gomock.Any(), gomock.Any(), declaration).Return(insurancedomain.SubmitResult{InsurerClaimID: "PB-7"}, nil)
	require.NoError(t, run(t, func(done func(error)) { f.coordinator.SubmitPosted(ctx, ed.Claim().ID, done) }))
	assert.Equal(t, claimdomain.StatusSubmitted, f.load(t, ed.Claim()).Status)
}

func TestSubmitRefusesEmptyClaim(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	insurer := f.Insurer(t, "Paper Mutual", "")
	ed := f.Draft(t, insurer, false, f.Node.Generate())

	err := run(t, func(done func(error)) { f.coordinator.Submit(ctx, ed, done) })
	assert.ErrorIs(t, err, claimdomain.ErrInvalidAmount)
	claim := f.load(t, ed.Claim())
	assert.Equal(t, claimdomain.StatusPending, claim.Status)
	// Attachments are generated before the amount is checked.
	require.Len(t, claim.Attachments, 1)
	assert.Equal(t, claimdomain.AttachmentTypeHistory, claim.Attachments[0].Type)
	assert.Empty(t, f.user.confirms)
}

func TestSubmitPostedOfflinePrints(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	insurer := f.Insurer(t, "Paper Mutual", "")
	posted := f.stored(t, insurer, claimdomain.StatusPosted)

	require.NoError(t, run(t, func(done func(error)) { f.coordinator.SubmitPosted(ctx, posted.ID, done) }))

	claim := f.load(t, posted)
	assert.Equal(t, claimdomain.StatusSubmitted, claim.Status)
	require.Len(t, f.user.printed, 1)
	require.NotEmpty(t, f.printer.items)
	assert.Equal(t, submission.PrintClaim, f.printer.items[0].Kind)

	logs, err := f.Audit.List(ctx, f.DB, claim.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, auditdomain.ActionClaimPrinted, logs[0].Action)
}

func TestRemoteValidationErrorStopsSubmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	insurer := f.Insurer(t, "PetSure", "sandbox")
	ed := f.draft(t, insurer, false)

	f.svc.EXPECT().CanValidateClaims().Return(true)
	f.svc.EXPECT().Validate(gomock.Any(), gomock.Any()).
		Return(insurancedomain.ValidationStatus{Severity: insurancedomain.SeverityError, Message: "Policy lapsed"}, nil)

	require.NoError(t, run(t, func(done func(error)) { f.coordinator.Submit(ctx, ed, done) }))
	assert.Equal(t, []string{"Policy lapsed"}, f.user.informs)
	assert.Equal(t, claimdomain.StatusPending, f.load(t, ed.Claim()).Status)
}

func TestRemoteValidationWarningAsksUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	insurer := f.Insurer(t, "PetSure", "sandbox")
	ed := f.draft(t, insurer, false)

	f.user.decline = true
	f.svc.EXPECT().CanValidateClaims().Return(true)
	f.svc.EXPECT().Validate(gomock.Any(), gomock.Any()).
		Return(insurancedomain.ValidationStatus{Severity: insurancedomain.SeverityWarning, Message: "Two items"}, nil)

	require.NoError(t, run(t, func(done func(error)) { f.coordinator.Submit(ctx, ed, done) }))
	require.Len(t, f.user.confirms, 1)
	assert.Contains(t, f.user.confirms[0], "Two items")
	assert.Equal(t, claimdomain.StatusPending, f.load(t, ed.Claim()).Status)
}

func TestRemoteSubmitFailureIsReported(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	insurer := f.Insurer(t, "PetSure", "sandbox")
	ed := f.draft(t, insurer, false)

	f.svc.EXPECT().CanValidateClaims().Return(false)
	f.svc.EXPECT().Declaration(gomock.Any(), gomock.Any()).Return(nil, nil)
	f.svc.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Nil()).Return(insurancedomain.SubmitResult{}, errors.New("gateway timeout"))

	err := run(t, func(done func(error)) { f.coordinator.Submit(ctx, ed, done) })
	assert.ErrorIs(t, err, claimdomain.ErrRemoteService)
	var remote *claimdomain.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "submit", remote.Op)
	assert.Equal(t, claimdomain.StatusPosted, f.load(t, ed.Claim()).Status)
}

func TestLockedClaimIsNotSubmitted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	insurer := f.Insurer(t, "PetSure", "sandbox")
	claim := f.stored(t, insurer, claimdomain.StatusPosted)

	_, ok, err := f.locker.TryLock(ctx, lock.ClaimKey(claim.ID), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	err = run(t, func(done func(error)) { f.coordinator.SubmitPosted(ctx, claim.ID, done) })
	assert.ErrorIs(t, err, claimdomain.ErrClaimLocked)
}

func TestGapClaimOutsideSubmitWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	insurer := f.Insurer(t, "PetSure", "sandbox")
	ed := f.draft(t, insurer, true)

	closed := claimtest.Start.Add(-time.Hour)
	f.svc.EXPECT().SupportsGapClaims(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil).AnyTimes()
	f.svc.EXPECT().GapClaimSubmitTimes(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&insurancedomain.Times{Latest: &closed}, nil)

	err := run(t, func(done func(error)) { f.coordinator.Submit(ctx, ed, done) })
	assert.ErrorIs(t, err, claimdomain.ErrSubmitWindowClosed)
	assert.Equal(t, claimdomain.StatusPending, f.load(t, ed.Claim()).Status)
}

func TestGapClaimWaitsForBenefitThenPaysGap(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)
	go f.loop.Run(ctx)

	insurer := f.Insurer(t, "PetSure", "sandbox")
	ed := f.draft(t, insurer, true)
	claimID := ed.Claim().ID

	f.svc.EXPECT().SupportsGapClaims(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil).AnyTimes()
	f.svc.EXPECT().GapClaimSubmitTimes(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
	f.svc.EXPECT().CanValidateClaims().Return(false)
	f.svc.EXPECT().Declaration(gomock.Any(), gomock.Any()).Return(nil, nil)
	f.svc.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Nil()).Return(insurancedomain.SubmitResult{InsurerClaimID: "SBX-1"}, nil)
	f.svc.EXPECT().NotifyPayment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, claim *claimdomain.Claim) error {
			assert.Equal(t, claimdomain.GapStatusPaid, claim.GapStatus)
			return nil
		})

	result := make(chan error, 1)
	f.coordinator.Submit(ctx, ed, func(err error) { result <- err })
	require.Eventually(t, func() bool { return f.user.waiting() == 1 }, 2*time.Second, time.Millisecond)

	submitted, err := f.Claims.Load(ctx, f.DB, claimID)
	require.NoError(t, err)
	assert.Equal(t, claimdomain.StatusSubmitted, submitted.Status)
	assert.Equal(t, claimdomain.GapStatusPending, submitted.GapStatus)

	// The insurer accepts and reports its benefit.
	require.NoError(t, f.Machine.SetStatus(submitted, claimdomain.StatusAccepted, ""))
	require.NoError(t, f.Machine.SetBenefit(submitted, 15000, "75% cover"))
	require.NoError(t, f.Claims.Save(ctx, f.DB, submitted))

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("gap claim was not paid")
	}

	paid, err := f.Claims.Load(ctx, f.DB, claimID)
	require.NoError(t, err)
	assert.Equal(t, claimdomain.GapStatusNotified, paid.GapStatus)
	assert.Equal(t, int64(5000), paid.PaidAmount)

	var adjustments []claimdomain.ClaimAdjustment
	require.NoError(t, f.DB.Where("claim_id = ?", claimID).Find(&adjustments).Error)
	require.Len(t, adjustments, 1)
	assert.Equal(t, int64(15000), adjustments[0].Amount)
}

func TestPayDeclinedClaimInformsUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)
	go f.loop.Run(ctx)

	insurer := f.Insurer(t, "PetSure", "sandbox")
	claim := f.draft(t, insurer, true).Claim()
	claim.Status = claimdomain.StatusSubmitted
	claim.GapStatus = claimdomain.GapStatusPending
	require.NoError(t, f.Claims.Save(ctx, f.DB, claim))

	result := make(chan error, 1)
	f.coordinator.Pay(ctx, claim.ID, func(err error) { result <- err })
	require.Eventually(t, func() bool { return f.user.waiting() == 1 }, time.Second, time.Millisecond)

	claim = f.load(t, claim)
	require.NoError(t, f.Machine.SetStatus(claim, claimdomain.StatusDeclined, "Pre-existing condition"))
	require.NoError(t, f.Claims.Save(ctx, f.DB, claim))

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("benefit wait did not finish")
	}
	f.user.mu.Lock()
	defer f.user.mu.Unlock()
	require.Len(t, f.user.informs, 1)
	assert.Contains(t, f.user.informs[0], "declined")
}

func TestPayFullWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)
	go f.loop.Run(ctx)

	insurer := f.Insurer(t, "PetSure", "sandbox")
	claim := f.draft(t, insurer, true).Claim()
	claim.Status = claimdomain.StatusAccepted
	claim.GapStatus = claimdomain.GapStatusPending
	require.NoError(t, f.Claims.Save(ctx, f.DB, claim))

	f.svc.EXPECT().NotifyPayment(gomock.Any(), gomock.Any()).Return(nil)

	result := make(chan error, 1)
	f.coordinator.Pay(ctx, claim.ID, func(err error) { result <- err })
	require.Eventually(t, func() bool { return f.user.waiting() == 1 }, time.Second, time.Millisecond)

	f.user.mu.Lock()
	wait := f.user.waits[0]
	f.user.mu.Unlock()
	require.True(t, wait.CanPayFull())
	require.NoError(t, wait.PayFull())

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("full payment did not complete")
	}
	paid := f.load(t, claim)
	assert.Zero(t, paid.Outstanding())
	assert.Equal(t, claimdomain.GapStatusNotified, paid.GapStatus)
}

func TestCancelOnlineAsksInsurer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	insurer := f.Insurer(t, "PetSure", "sandbox")
	claim := f.stored(t, insurer, claimdomain.StatusSubmitted)

	f.svc.EXPECT().CanCancel(gomock.Any(), gomock.Any()).Return(true)
	f.svc.EXPECT().Cancel(gomock.Any(), gomock.Any(), "Duplicate claim").Return(claimdomain.StatusCancelling, nil)

	require.NoError(t, run(t, func(done func(error)) { f.coordinator.Cancel(ctx, claim.ID, done) }))
	got := f.load(t, claim)
	assert.Equal(t, claimdomain.StatusCancelling, got.Status)
	assert.Equal(t, "Duplicate claim", got.Message)
}

func TestCancelUnsupportedInformsUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	insurer := f.Insurer(t, "PetSure", "sandbox")
	claim := f.stored(t, insurer, claimdomain.StatusAccepted)

	f.svc.EXPECT().CanCancel(gomock.Any(), gomock.Any()).Return(false)

	require.NoError(t, run(t, func(done func(error)) { f.coordinator.Cancel(ctx, claim.ID, done) }))
	assert.Equal(t, claimdomain.StatusAccepted, f.load(t, claim).Status)
	require.Len(t, f.user.informs, 1)
	assert.Contains(t, f.user.informs[0], "does not support cancellation")
}

func TestCancelOfflineIsLocal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	insurer := f.Insurer(t, "Paper Mutual", "")
	claim := f.stored(t, insurer, claimdomain.StatusSubmitted)

	require.NoError(t, run(t, func(done func(error)) { f.coordinator.Cancel(ctx, claim.ID, done) }))
	got := f.load(t, claim)
	assert.Equal(t, claimdomain.StatusCancelled, got.Status)
	assert.NotNil(t, got.EndTime)

	f.user.backOutReason = true
	other := f.stored(t, insurer, claimdomain.StatusSubmitted)
	require.NoError(t, run(t, func(done func(error)) { f.coordinator.Cancel(ctx, other.ID, done) }))
	assert.Equal(t, claimdomain.StatusSubmitted, f.load(t, other).Status)
}

func TestDeclineAndSettle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	paper := f.Insurer(t, "Paper Mutual", "")
	online := f.Insurer(t, "PetSure", "sandbox")

	declined := f.stored(t, paper, claimdomain.StatusSubmitted)
	require.NoError(t, run(t, func(done func(error)) { f.coordinator.Decline(ctx, declined.ID, done) }))
	assert.Equal(t, claimdomain.StatusDeclined, f.load(t, declined).Status)

	settled := f.stored(t, paper, claimdomain.StatusAccepted)
	require.NoError(t, run(t, func(done func(error)) { f.coordinator.Settle(ctx, settled.ID, done) }))
	assert.Equal(t, claimdomain.StatusSettled, f.load(t, settled).Status)

	remote := f.stored(t, online, claimdomain.StatusAccepted)
	require.NoError(t, run(t, func(done func(error)) { f.coordinator.Settle(ctx, remote.ID, done) }))
	assert.Equal(t, claimdomain.StatusAccepted, f.load(t, remote).Status)
	require.Len(t, f.user.informs, 1)
	assert.Contains(t, f.user.informs[0], "updated by sandbox")
}

func TestPrintSkipsAttachmentsWithoutContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	insurer := f.Insurer(t, "Paper Mutual", "")
	claim := f.stored(t, insurer, claimdomain.StatusSubmitted)
	claim.Attachments = append(claim.Attachments, claimdomain.Attachment{
		ID:        f.Node.Generate(),
		ClaimID:   claim.ID,
		Name:      "Radiograph",
		Type:      claimdomain.AttachmentTypeDocument,
		Status:    claimdomain.AttachmentStatusPending,
		StartTime: claimtest.Start,
	})
	require.NoError(t, f.Claims.Save(ctx, f.DB, claim))

	require.NoError(t, run(t, func(done func(error)) { f.coordinator.Print(ctx, claim.ID, done) }))
	assert.Equal(t, "1 attachment(s) have no content and cannot be printed.", f.user.printMsg)
	require.Len(t, f.printer.items, 1)
	assert.Equal(t, submission.PrintClaim, f.printer.items[0].Kind)
}
