// Package poller waits for an insurer's benefit determination on a gap claim.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/clock"
	"github.com/smallbiznis/claimflow/internal/config"
	"github.com/smallbiznis/claimflow/internal/observability/metrics"
	"github.com/smallbiznis/claimflow/internal/scheduler"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotAccepted = errors.New("claim_not_accepted")
	ErrFinished    = errors.New("benefit_wait_finished")
)

// Outcome is why a wait finished.
type Outcome string

const (
	// OutcomeReceived means the claim is accepted and the benefit is known.
	OutcomeReceived Outcome = "RECEIVED"
	// OutcomeEnded means the insurer will not pay: the claim is cancelled or declined.
	OutcomeEnded Outcome = "ENDED"
	// OutcomePayFull means the user stopped waiting to take the full amount.
	OutcomePayFull Outcome = "PAY_FULL"
	// OutcomeStopped means the wait was cancelled.
	OutcomeStopped Outcome = "STOPPED"
	// OutcomeFailed means the claim could no longer be loaded.
	OutcomeFailed Outcome = "FAILED"
)

// Result is delivered once per wait.
type Result struct {
	Outcome Outcome
	Claim   *claimdomain.Claim
	Err     error
}

// Progress is cosmetic. Ticks only ever grows.
type Progress struct {
	Ticks      int
	CanPayFull bool
}

// Terminal reports whether a claim snapshot ends the wait, and how.
func Terminal(c *claimdomain.Claim) (Outcome, bool) {
	switch c.Status {
	case claimdomain.StatusCancelling, claimdomain.StatusCancelled, claimdomain.StatusDeclined:
		return OutcomeEnded, true
	case claimdomain.StatusAccepted:
		if c.GapStatus == claimdomain.GapStatusReceived {
			return OutcomeReceived, true
		}
	}
	return "", false
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Loop    *scheduler.Loop
	Claims  claimdomain.Repository
	Config  *config.ClaimsConfigHolder `optional:"true"`
	Metrics *metrics.ClaimMetrics      `optional:"true"`
}

// Poller starts benefit waits on the scheduler loop.
type Poller struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	loop    *scheduler.Loop
	claims  claimdomain.Repository
	config  *config.ClaimsConfigHolder
	metrics *metrics.ClaimMetrics
}

func New(p Params) *Poller {
	cfg := p.Config
	if cfg == nil {
		cfg = config.NewStaticClaimsConfigHolder(config.DefaultClaimsConfig())
	}
	return &Poller{
		db:      p.DB,
		log:     p.Log.Named("gap.poller"),
		clock:   p.Clock,
		loop:    p.Loop,
		claims:  p.Claims,
		config:  cfg,
		metrics: p.Metrics,
	}
}

// Wait watches claim until Terminal holds for a reloaded snapshot, the user pays in full, or the
// wait is cancelled. done is called exactly once. onProgress may be nil.
func (p *Poller) Wait(claim *claimdomain.Claim, onProgress func(Progress), done func(Result)) *Wait {
	w := p.newWait(claim, onProgress, done)
	if outcome, ok := Terminal(claim); ok {
		w.finish(outcome, claim, nil)
		return w
	}
	ticket := p.loop.Every(p.config.Get().PollTick, w.step)
	w.mu.Lock()
	w.ticket = ticket
	finished := w.finished
	w.mu.Unlock()
	if finished {
		ticket.Cancel()
	}
	return w
}

func (p *Poller) newWait(claim *claimdomain.Claim, onProgress func(Progress), done func(Result)) *Wait {
	return &Wait{
		poller:     p,
		claimID:    claim.ID,
		claim:      claim,
		lastReload: p.clock.Now(),
		onProgress: onProgress,
		done:       done,
		log:        p.log.With(zap.String("claim_id", claim.ID.String())),
	}
}

// Wait is one running benefit wait. Steps run on the scheduler loop, so reloads never overlap.
type Wait struct {
	poller  *Poller
	claimID snowflake.ID
	ticket  *scheduler.Ticket
	log     *zap.Logger

	mu         sync.Mutex
	claim      *claimdomain.Claim
	lastReload time.Time
	ticks      int
	finished   bool

	onProgress func(Progress)
	done       func(Result)
}

// CanPayFull reports whether the user may stop waiting and take the full amount.
func (w *Wait) CanPayFull() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.finished && w.claim.Status == claimdomain.StatusAccepted
}

// PayFull abandons the wait so the caller can take full payment.
func (w *Wait) PayFull() error {
	w.mu.Lock()
	if w.finished {
		w.mu.Unlock()
		return ErrFinished
	}
	if w.claim.Status != claimdomain.StatusAccepted {
		w.mu.Unlock()
		return ErrNotAccepted
	}
	claim := w.claim
	w.mu.Unlock()
	w.finish(OutcomePayFull, claim, nil)
	return nil
}

// Cancel stops the wait. Further ticks are never scheduled.
func (w *Wait) Cancel() {
	w.mu.Lock()
	claim := w.claim
	w.mu.Unlock()
	w.finish(OutcomeStopped, claim, nil)
}

// Progress reports how far the wait has got.
func (w *Wait) Progress() Progress {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Progress{Ticks: w.ticks, CanPayFull: !w.finished && w.claim.Status == claimdomain.StatusAccepted}
}

func (w *Wait) Finished() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.finished
}

func (w *Wait) step(ctx context.Context) {
	w.mu.Lock()
	if w.finished {
		w.mu.Unlock()
		return
	}
	w.ticks++
	now := w.poller.clock.Now()
	due := now.Sub(w.lastReload) >= w.poller.config.Get().PollInterval
	progress := Progress{Ticks: w.ticks, CanPayFull: w.claim.Status == claimdomain.StatusAccepted}
	w.mu.Unlock()

	if w.onProgress != nil {
		w.onProgress(progress)
	}
	if !due {
		return
	}

	claim, err := w.poller.claims.Load(ctx, w.poller.db, w.claimID)
	w.mu.Lock()
	w.lastReload = now
	w.mu.Unlock()
	if err != nil {
		if errors.Is(err, claimdomain.ErrClaimNotFound) {
			w.poller.metrics.IncPollerReload(metrics.OutcomeFailed)
			w.finish(OutcomeFailed, nil, err)
			return
		}
		w.poller.metrics.IncPollerReload(metrics.OutcomeError)
		w.log.Warn("benefit wait reload failed", zap.Error(err))
		return
	}
	w.poller.metrics.IncPollerReload(metrics.OutcomeSuccess)

	w.mu.Lock()
	if w.finished {
		w.mu.Unlock()
		return
	}
	w.claim = claim
	w.mu.Unlock()

	if outcome, ok := Terminal(claim); ok {
		w.finish(outcome, claim, nil)
	}
}

func (w *Wait) finish(outcome Outcome, claim *claimdomain.Claim, err error) {
	w.mu.Lock()
	if w.finished {
		w.mu.Unlock()
		return
	}
	w.finished = true
	ticks := w.ticks
	ticket := w.ticket
	w.mu.Unlock()

	ticket.Cancel()
	w.log.Info("benefit wait finished", zap.String("outcome", string(outcome)), zap.Int("ticks", ticks))
	if w.done != nil {
		w.done(Result{Outcome: outcome, Claim: claim, Err: err})
	}
}
