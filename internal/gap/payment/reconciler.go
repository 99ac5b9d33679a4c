package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/claimflow/internal/audit"
	auditdomain "github.com/smallbiznis/claimflow/internal/audit/domain"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/claim/lifecycle"
	"github.com/smallbiznis/claimflow/internal/clock"
	"github.com/smallbiznis/claimflow/internal/config"
	"github.com/smallbiznis/claimflow/internal/observability/metrics"
	"github.com/smallbiznis/claimflow/internal/policy"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Request is a payment the user took. Amount is usually the gap or the full remaining amount.
type Request struct {
	Amount     int64        `validate:"gt=0"`
	LocationID snowflake.ID `validate:"required"`
	UserID     *snowflake.ID
	Notes      string `validate:"max=255"`
}

// Result is the stored payment and the claim as saved with it.
type Result struct {
	Outcome    Outcome
	Claim      *claimdomain.Claim
	Payment    *GapPayment
	Adjustment *claimdomain.ClaimAdjustment
}

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	GenID     *snowflake.Node
	Claims    claimdomain.Repository
	Machine   *lifecycle.Machine
	Policies  *policy.Rules
	Audit     *audit.Recorder            `optional:"true"`
	AppConfig config.Config              `optional:"true"`
	Config    *config.ClaimsConfigHolder `optional:"true"`
	Metrics   *metrics.ClaimMetrics      `optional:"true"`
}

// Reconciler stores gap claim payments and moves the claim's gap status to match.
type Reconciler struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	genID    *snowflake.Node
	claims   claimdomain.Repository
	machine  *lifecycle.Machine
	policies *policy.Rules
	audit    *audit.Recorder
	practice config.PracticeConfig
	config   *config.ClaimsConfigHolder
	metrics  *metrics.ClaimMetrics
	validate *validator.Validate

	initialInterval time.Duration
}

func NewReconciler(p Params) *Reconciler {
	cfg := p.Config
	if cfg == nil {
		cfg = config.NewStaticClaimsConfigHolder(config.DefaultClaimsConfig())
	}
	return &Reconciler{
		db:              p.DB,
		log:             p.Log.Named("gap.payment"),
		clock:           p.Clock,
		genID:           p.GenID,
		claims:          p.Claims,
		machine:         p.Machine,
		policies:        p.Policies,
		audit:           p.Audit,
		practice:        p.AppConfig.Practice,
		config:          cfg,
		metrics:         p.Metrics,
		validate:        validator.New(),
		initialInterval: 50 * time.Millisecond,
	}
}

// Reconcile stores the payment and the claim together. When the claim was saved by someone else
// since the caller loaded it, the claim is reloaded and the payment applied again. Once the total
// paid reaches the claim amount the claim is fully paid; when it equals the gap the gap is paid and
// a benefit adjustment is recorded; anything else is kept as a partial payment. The insurer is not
// notified here.
func (r *Reconciler) Reconcile(ctx context.Context, claim *claimdomain.Claim, req Request) (*Result, error) {
	if err := r.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", claimdomain.ErrInvalidPayment, err)
	}
	log := r.log.With(zap.String("claim_id", claim.ID.String()), zap.Int64("amount", req.Amount))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	retry := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.config.Get().PaymentMaxRetries)), ctx)

	current := claim
	var result *Result
	err := backoff.Retry(func() error {
		if current == nil {
			reloaded, err := r.claims.Load(ctx, r.db, claim.ID)
			if err != nil {
				return backoff.Permanent(err)
			}
			current = reloaded
		}
		res, err := r.apply(ctx, current, req)
		if err == nil {
			result = res
			return nil
		}
		if metrics.IsConflict(err) {
			r.metrics.IncSaveRetry("gap_payment", err)
			log.Info("claim changed while saving payment, reloading", zap.Error(err))
			current = nil
			return err
		}
		return backoff.Permanent(err)
	}, retry)
	if err != nil {
		r.metrics.IncGapPayment(metrics.OutcomeError)
		return nil, err
	}

	r.metrics.IncGapPayment(strings.ToLower(string(result.Outcome)))
	log.Info("gap payment reconciled", zap.String("outcome", string(result.Outcome)))
	return result, nil
}

// apply works on a copy so a failed attempt leaves source untouched.
func (r *Reconciler) apply(ctx context.Context, source *claimdomain.Claim, req Request) (*Result, error) {
	c := *source
	claim := &c
	if err := checkPayable(claim, req.Amount); err != nil {
		return nil, err
	}

	paidBefore := claim.PaidAmount
	newTotal := paidBefore + req.Amount
	result := &Result{Claim: claim}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch {
		case newTotal >= claim.Amount:
			if err := r.machine.FullyPaid(claim); err != nil {
				return err
			}
			result.Outcome = OutcomeFullyPaid
		case newTotal == claim.GapAmount():
			notes, err := r.adjustmentNotes(ctx, tx, claim, req.Notes)
			if err != nil {
				return err
			}
			adj, err := r.machine.GapPaid(claim, lifecycle.GapPayment{
				PracticeID: snowflake.ID(r.practice.ID),
				LocationID: req.LocationID,
				UserID:     req.UserID,
				Notes:      notes,
			})
			if err != nil {
				return err
			}
			result.Adjustment = adj
			result.Outcome = OutcomeGapPaid
		default:
			result.Outcome = OutcomePartial
		}
		claim.PaidAmount = newTotal

		if err := r.claims.Save(ctx, tx, claim); err != nil {
			return err
		}
		result.Payment = &GapPayment{
			ID:         r.genID.Generate(),
			ClaimID:    claim.ID,
			Amount:     req.Amount,
			PaidBefore: paidBefore,
			Outcome:    result.Outcome,
			LocationID: req.LocationID,
			UserID:     req.UserID,
			Notes:      r.machine.Truncate(req.Notes),
			CreatedAt:  r.clock.Now(),
		}
		if err := tx.WithContext(ctx).Create(result.Payment).Error; err != nil {
			return err
		}
		if result.Adjustment != nil {
			if err := r.claims.InsertAdjustment(ctx, tx, result.Adjustment); err != nil {
				return err
			}
		}
		return r.audit.Record(ctx, tx, auditdomain.Entry{
			ClaimID: claim.ID,
			Actor:   auditdomain.ActorTypeUser,
			ActorID: userID(req.UserID),
			Action:  auditdomain.ActionGapPayment,
			Message: string(result.Outcome),
			Metadata: map[string]any{
				"amount":      req.Amount,
				"paid_before": paidBefore,
				"gap_status":  string(claim.GapStatus),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// adjustmentNotes names the insurer and policy the benefit is owed under.
func (r *Reconciler) adjustmentNotes(ctx context.Context, db *gorm.DB, claim *claimdomain.Claim, extra string) (string, error) {
	if claim.PolicyID == nil {
		return "", claimdomain.ErrMissingPolicy
	}
	pol, err := r.policies.Policy(ctx, db, *claim.PolicyID)
	if err != nil {
		return "", err
	}
	if pol == nil || pol.Insurer == nil {
		return "", claimdomain.ErrMissingPolicy
	}
	notes := fmt.Sprintf("Gap claim benefit from %s, policy %s", pol.Insurer.Name, pol.PolicyNumber)
	if extra = strings.TrimSpace(extra); extra != "" {
		notes += ". " + extra
	}
	return notes, nil
}

func checkPayable(claim *claimdomain.Claim, amount int64) error {
	if !claim.IsGapClaim {
		return claimdomain.ErrNotGapClaim
	}
	if claim.Status != claimdomain.StatusAccepted {
		return fmt.Errorf("%w: payment requires %s, claim is %s", claimdomain.ErrInvalidStatus, claimdomain.StatusAccepted, claim.Status)
	}
	switch claim.GapStatus {
	case claimdomain.GapStatusPaid, claimdomain.GapStatusNotified:
		if claim.Outstanding() == 0 {
			return fmt.Errorf("%w: claim already paid", claimdomain.ErrInvalidPayment)
		}
	}
	if amount > claim.Outstanding() {
		return fmt.Errorf("%w: %d exceeds outstanding %d", claimdomain.ErrInvalidPayment, amount, claim.Outstanding())
	}
	return nil
}

func userID(id *snowflake.ID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// ErrNothingOwing is returned by Remaining when the claim needs no further payment.
var ErrNothingOwing = errors.New("nothing_owing")

// Remaining returns what the customer still owes: the gap while it is unpaid, otherwise the rest of
// the claim.
func Remaining(claim *claimdomain.Claim) (gap int64, full int64, err error) {
	full = claim.Outstanding()
	if full == 0 {
		return 0, 0, ErrNothingOwing
	}
	if claim.GapStatus == claimdomain.GapStatusReceived && claim.GapAllowed(claim.PaidAmount) {
		gap = claim.GapAmount() - claim.PaidAmount
	}
	return gap, full, nil
}
