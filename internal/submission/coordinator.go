// Package submission runs the user-facing claim operations. Each one decides the path, confirms it
// with the user and only then acts, so nothing irreversible reaches an insurer by surprise.
//
// Every operation reports through done: nil on success or when the user backs out, the failure
// otherwise. done may be called after the operation returns.
package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v4"
	"github.com/smallbiznis/claimflow/internal/audit"
	auditdomain "github.com/smallbiznis/claimflow/internal/audit/domain"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/claim/editor"
	"github.com/smallbiznis/claimflow/internal/claim/lifecycle"
	"github.com/smallbiznis/claimflow/internal/clock"
	"github.com/smallbiznis/claimflow/internal/config"
	"github.com/smallbiznis/claimflow/internal/gap/payment"
	"github.com/smallbiznis/claimflow/internal/gap/poller"
	"github.com/smallbiznis/claimflow/internal/insurance"
	insurancedomain "github.com/smallbiznis/claimflow/internal/insurance/domain"
	"github.com/smallbiznis/claimflow/internal/lock"
	"github.com/smallbiznis/claimflow/internal/observability/metrics"
	"github.com/smallbiznis/claimflow/internal/policy"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	titleSubmit  = "Submit Claim"
	titleCancel  = "Cancel Claim"
	titleDecline = "Decline Claim"
	titleSettle  = "Settle Claim"
	titlePay     = "Pay Claim"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Claims      claimdomain.Repository
	Machine     *lifecycle.Machine
	Editors     *editor.Factory
	Policies    *policy.Rules
	Services    *insurance.Services
	Reconciler  *payment.Reconciler
	Poller      *poller.Poller
	Printer     Printer
	Locker      lock.Locker                `optional:"true"`
	Interaction Interaction                `optional:"true"`
	Audit       *audit.Recorder            `optional:"true"`
	Config      *config.ClaimsConfigHolder `optional:"true"`
	Metrics     *metrics.ClaimMetrics      `optional:"true"`
}

type Coordinator struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	claims      claimdomain.Repository
	machine     *lifecycle.Machine
	editors     *editor.Factory
	policies    *policy.Rules
	services    *insurance.Services
	reconciler  *payment.Reconciler
	poller      *poller.Poller
	printer     Printer
	locker      lock.Locker
	interaction Interaction
	audit       *audit.Recorder
	config      *config.ClaimsConfigHolder
	metrics     *metrics.ClaimMetrics

	initialInterval time.Duration
}

func NewCoordinator(p Params) *Coordinator {
	log := p.Log.Named("submission.coordinator")
	cfg := p.Config
	if cfg == nil {
		cfg = config.NewStaticClaimsConfigHolder(config.DefaultClaimsConfig())
	}
	interaction := p.Interaction
	if interaction == nil {
		interaction = Unattended(p.Log)
	}
	return &Coordinator{
		db:              p.DB,
		log:             log,
		clock:           p.Clock,
		claims:          p.Claims,
		machine:         p.Machine,
		editors:         p.Editors,
		policies:        p.Policies,
		services:        p.Services,
		reconciler:      p.Reconciler,
		poller:          p.Poller,
		printer:         p.Printer,
		locker:          p.Locker,
		interaction:     interaction,
		audit:           p.Audit,
		config:          cfg,
		metrics:         p.Metrics,
		initialInterval: 50 * time.Millisecond,
	}
}

// WithInteraction returns a coordinator that talks to the given user.
func (c *Coordinator) WithInteraction(i Interaction) *Coordinator {
	clone := *c
	clone.interaction = i
	return &clone
}

// target is a claim with its policy and, for online insurers, the insurer's service.
type target struct {
	claim   *claimdomain.Claim
	policy  *claimdomain.Policy
	service insurancedomain.InsuranceService
}

func (t *target) online() bool { return t.service != nil }

func (t *target) insurer() *claimdomain.Insurer { return t.policy.Insurer }

func (c *Coordinator) resolve(ctx context.Context, claim *claimdomain.Claim) (*target, error) {
	if claim.PolicyID == nil {
		return nil, claimdomain.ErrMissingPolicy
	}
	pol, err := c.policies.Policy(ctx, c.db, *claim.PolicyID)
	if err != nil {
		return nil, err
	}
	if pol == nil || pol.Insurer == nil {
		return nil, claimdomain.ErrMissingPolicy
	}
	t := &target{claim: claim, policy: pol}
	if svc, ok := c.services.Service(pol.Insurer); ok {
		t.service = svc
	}
	return t, nil
}

func (c *Coordinator) load(ctx context.Context, id snowflake.ID) (*target, error) {
	claim, err := c.claims.Load(ctx, c.db, id)
	if err != nil {
		return nil, err
	}
	return c.resolve(ctx, claim)
}

// update applies mutate to a copy of claim and saves it with an audit entry. When another writer
// saved the claim first, it is reloaded and mutate is applied again. On success claim holds the
// saved state.
func (c *Coordinator) update(ctx context.Context, claim *claimdomain.Claim, action string, mutate func(*claimdomain.Claim) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	retry := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.config.Get().PaymentMaxRetries)), ctx)

	current := claim
	var saved *claimdomain.Claim
	err := backoff.Retry(func() error {
		if current == nil {
			reloaded, err := c.claims.Load(ctx, c.db, claim.ID)
			if err != nil {
				return backoff.Permanent(err)
			}
			current = reloaded
		}
		working := *current
		working.Attachments = append([]claimdomain.Attachment(nil), current.Attachments...)
		from := working.Status
		if err := mutate(&working); err != nil {
			return backoff.Permanent(err)
		}

		err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := c.claims.Save(ctx, tx, &working); err != nil {
				return err
			}
			return c.audit.Record(ctx, tx, auditdomain.Entry{
				ClaimID: working.ID,
				Actor:   auditdomain.ActorTypeUser,
				ActorID: actorID(working.UserID),
				Action:  action,
				Message: working.Message,
				Metadata: map[string]any{
					"from":       string(from),
					"to":         string(working.Status),
					"gap_status": string(working.GapStatus),
				},
			})
		})
		switch {
		case err == nil:
			if from != working.Status {
				c.metrics.IncTransition(from, working.Status)
			}
			saved = &working
			return nil
		case metrics.IsConflict(err):
			c.metrics.IncSaveRetry("submission", err)
			current = nil
			return err
		default:
			return backoff.Permanent(err)
		}
	}, retry)
	if err != nil {
		return err
	}
	*claim = *saved
	return nil
}

// acquire takes the claim's remote-operation lock. The returned func releases it.
func (c *Coordinator) acquire(ctx context.Context, claimID snowflake.ID) (func(), error) {
	if c.locker == nil {
		return func() {}, nil
	}
	key := lock.ClaimKey(claimID)
	token, ok, err := c.locker.TryLock(ctx, key, c.config.Get().SubmitLockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock claim %s: %w", claimID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", claimdomain.ErrClaimLocked, claimID)
	}
	return func() {
		if err := c.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			c.log.Warn("release claim lock failed", zap.String("claim_id", claimID.String()), zap.Error(err))
		}
	}, nil
}

func remote(svc insurancedomain.InsuranceService, op string, err error) error {
	return &claimdomain.RemoteError{Service: svc.Name(), Op: op, Err: err}
}

func actorID(id *snowflake.ID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func complete(done func(error), err error) {
	if done != nil {
		done(err)
	}
}
