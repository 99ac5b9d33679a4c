package notification

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/smallbiznis/claimflow/internal/audit"
	auditdomain "github.com/smallbiznis/claimflow/internal/audit/domain"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/claim/lifecycle"
	"github.com/smallbiznis/claimflow/internal/config"
	"github.com/smallbiznis/claimflow/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type HandlerParams struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Claims  claimdomain.Repository
	Machine *lifecycle.Machine
	Audit   *audit.Recorder            `optional:"true"`
	Config  *config.ClaimsConfigHolder `optional:"true"`
	Metrics *metrics.ClaimMetrics      `optional:"true"`
}

// Handler applies insurer notifications to stored claims.
type Handler struct {
	db      *gorm.DB
	log     *zap.Logger
	claims  claimdomain.Repository
	machine *lifecycle.Machine
	audit   *audit.Recorder
	config  *config.ClaimsConfigHolder
	metrics *metrics.ClaimMetrics

	// initialInterval seeds the retry backoff.
	initialInterval time.Duration
}

func NewHandler(p HandlerParams) *Handler {
	cfg := p.Config
	if cfg == nil {
		cfg = config.NewStaticClaimsConfigHolder(config.DefaultClaimsConfig())
	}
	return &Handler{
		db:              p.DB,
		log:             p.Log.Named("insurance.notification"),
		claims:          p.Claims,
		machine:         p.Machine,
		audit:           p.Audit,
		config:          cfg,
		metrics:         p.Metrics,
		initialInterval: 50 * time.Millisecond,
	}
}

// Handle decodes body and applies it. Notifications the claim can no longer accept are dropped
// with a nil error. A concurrent save causes a reload and another attempt.
func (h *Handler) Handle(ctx context.Context, body []byte) error {
	msg, err := Decode(body)
	if err != nil {
		h.metrics.IncNotification("unknown", metrics.OutcomeFailed)
		return err
	}
	return h.Apply(ctx, msg)
}

// Apply is Handle for an already decoded message.
func (h *Handler) Apply(ctx context.Context, msg Message) error {
	log := h.log.With(
		zap.String("kind", string(msg.Kind)),
		zap.String("claim_id", msg.ClaimID.String()),
		zap.String("notification_id", msg.ID),
	)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.initialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(h.config.Get().PaymentMaxRetries)), ctx)

	var changed bool
	err := backoff.Retry(func() error {
		var err error
		changed, err = h.applyOnce(ctx, msg)
		if err == nil {
			return nil
		}
		if metrics.IsConflict(err) {
			h.metrics.IncSaveRetry("notification", err)
			log.Debug("claim changed concurrently, reloading", zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}, policy)

	switch {
	case err == nil && changed:
		h.metrics.IncNotification(string(msg.Kind), metrics.OutcomeSuccess)
		log.Info("insurer notification applied")
		return nil
	case err == nil:
		h.metrics.IncNotification(string(msg.Kind), metrics.OutcomeSkipped)
		log.Debug("insurer notification already applied")
		return nil
	case isStale(err):
		h.metrics.IncNotification(string(msg.Kind), metrics.OutcomeSkipped)
		log.Warn("dropping insurer notification", zap.Error(err))
		return nil
	default:
		h.metrics.IncNotification(string(msg.Kind), metrics.OutcomeError)
		log.Error("failed to apply insurer notification", zap.Error(err))
		return err
	}
}

func (h *Handler) applyOnce(ctx context.Context, msg Message) (bool, error) {
	var changed bool
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim, err := h.claims.Load(ctx, tx, msg.ClaimID)
		if err != nil {
			return err
		}
		from := claim.Status
		changed, err = h.apply(claim, msg)
		if err != nil || !changed {
			return err
		}
		if err := h.claims.Save(ctx, tx, claim); err != nil {
			return err
		}
		if from != claim.Status {
			h.metrics.IncTransition(from, claim.Status)
		}
		return h.audit.Record(ctx, tx, auditdomain.Entry{
			ClaimID: claim.ID,
			Actor:   auditdomain.ActorTypeInsurer,
			ActorID: msg.Service,
			Action:  auditAction(msg.Kind),
			Message: claim.Message,
			Metadata: map[string]any{
				"from":             string(from),
				"to":               string(claim.Status),
				"insurer_claim_id": claim.InsurerClaimID,
				"benefit_amount":   claim.BenefitAmount,
			},
		})
	})
	return changed, err
}

func (h *Handler) apply(claim *claimdomain.Claim, msg Message) (bool, error) {
	if msg.InsurerClaimID != "" && claim.InsurerClaimID == "" {
		claim.InsurerClaimID = msg.InsurerClaimID
	}

	switch msg.Kind {
	case KindAccepted:
		if claim.Status == claimdomain.StatusAccepted || claim.Status == claimdomain.StatusSettled {
			return false, nil
		}
		if err := h.machine.SetStatus(claim, claimdomain.StatusAccepted, msg.Message); err != nil {
			return false, err
		}
		pendingBenefit(claim)
		return true, nil

	case KindBenefit:
		if claim.Status == claimdomain.StatusSubmitted {
			if err := h.machine.SetStatus(claim, claimdomain.StatusAccepted, msg.Message); err != nil {
				return false, err
			}
		}
		pendingBenefit(claim)
		if claim.GapStatus == claimdomain.GapStatusReceived && claim.BenefitAmount == msg.BenefitAmount {
			return false, nil
		}
		if err := h.machine.SetBenefit(claim, msg.BenefitAmount, msg.BenefitNotes); err != nil {
			return false, err
		}
		return true, nil

	case KindSettled:
		if claim.Status == claimdomain.StatusSettled {
			return false, nil
		}
		return true, h.machine.SetStatus(claim, claimdomain.StatusSettled, msg.Message)

	case KindDeclined, KindCancelled:
		target := claimdomain.StatusDeclined
		if msg.Kind == KindCancelled {
			target = claimdomain.StatusCancelled
		}
		if claim.Status == target {
			return false, nil
		}
		return true, h.machine.SetStatus(claim, target, msg.Message)
	}
	return false, ErrMalformed
}

// pendingBenefit starts gap tracking on gap claims lodged before it was recorded.
func pendingBenefit(claim *claimdomain.Claim) {
	if claim.IsGapClaim && claim.GapStatus == "" {
		claim.GapStatus = claimdomain.GapStatusPending
	}
}

// isStale reports errors meaning the claim has moved on and the notification no longer applies.
func isStale(err error) bool {
	return errors.Is(err, claimdomain.ErrClaimNotFound) ||
		errors.Is(err, claimdomain.ErrIllegalTransition) ||
		errors.Is(err, claimdomain.ErrInvalidStatus) ||
		errors.Is(err, claimdomain.ErrGapStatus) ||
		errors.Is(err, claimdomain.ErrNotGapClaim)
}

func auditAction(kind Kind) string {
	switch kind {
	case KindBenefit:
		return auditdomain.ActionBenefitReceived
	case KindCancelled:
		return auditdomain.ActionClaimCancelled
	default:
		return auditdomain.ActionClaimStatusChanged
	}
}
