// Package policy resolves the insurance policy a claim is made against and answers
// cross-claim questions about invoices.
package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/clock"
	"github.com/smallbiznis/claimflow/pkg/db/option"
	"github.com/smallbiznis/claimflow/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInsurerNotFound = errors.New("insurer_not_found")
	ErrInsurerInactive = errors.New("insurer_inactive")
)

// Request names the policy the user entered for a claim.
type Request struct {
	InsurerID    snowflake.ID `validate:"required"`
	PolicyNumber string       `validate:"required,max=64"`
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Clock  clock.Clock
	GenID  *snowflake.Node
	Claims claimdomain.Repository
}

type Rules struct {
	log      *zap.Logger
	clock    clock.Clock
	genID    *snowflake.Node
	claims   claimdomain.Repository
	validate *validator.Validate
}

func NewRules(p Params) *Rules {
	return &Rules{
		log:      p.Log.Named("policy.rules"),
		clock:    p.Clock,
		genID:    p.GenID,
		claims:   p.Claims,
		validate: validator.New(),
	}
}

// Insurer returns an active insurer.
func (r *Rules) Insurer(ctx context.Context, db *gorm.DB, id snowflake.ID) (*claimdomain.Insurer, error) {
	insurer, err := repository.ProvideStore[claimdomain.Insurer](db).FindOne(ctx, &claimdomain.Insurer{ID: id})
	if err != nil {
		return nil, err
	}
	if insurer == nil {
		return nil, fmt.Errorf("%w: %s", ErrInsurerNotFound, id)
	}
	if !insurer.Active {
		return nil, fmt.Errorf("%w: %s", ErrInsurerInactive, insurer.Name)
	}
	return insurer, nil
}

// Policy loads a policy with its insurer. Returns nil when it does not exist.
func (r *Rules) Policy(ctx context.Context, db *gorm.DB, id snowflake.ID) (*claimdomain.Policy, error) {
	return repository.ProvideStore[claimdomain.Policy](db).FindOne(ctx,
		&claimdomain.Policy{ID: id},
		option.WithPreload("Insurer"),
	)
}

// ResolvePolicy finds or creates the policy for the claim and assigns it. An existing policy for the
// same customer, patient, insurer and number wins. Otherwise the claim's current policy is updated in
// place when no other claim uses it, and a new policy is created as a last resort.
func (r *Rules) ResolvePolicy(ctx context.Context, db *gorm.DB, claim *claimdomain.Claim, req Request) (*claimdomain.Policy, error) {
	req.PolicyNumber = strings.TrimSpace(req.PolicyNumber)
	if err := r.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", claimdomain.ErrInvalidPolicyNumber, err)
	}
	insurer, err := r.Insurer(ctx, db, req.InsurerID)
	if err != nil {
		return nil, err
	}

	var resolved *claimdomain.Policy
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := repository.ProvideStore[claimdomain.Policy](tx)
		existing, err := store.FindOne(ctx, &claimdomain.Policy{
			CustomerID:   claim.CustomerID,
			PatientID:    claim.PatientID,
			InsurerID:    insurer.ID,
			PolicyNumber: req.PolicyNumber,
		}, option.WithOrder("id ASC"))
		if err != nil {
			return err
		}
		if existing != nil {
			resolved = existing
			return nil
		}

		if claim.PolicyID != nil {
			current, err := store.FindOne(ctx, &claimdomain.Policy{ID: *claim.PolicyID})
			if err != nil {
				return err
			}
			shared, err := r.usedElsewhere(ctx, tx, *claim.PolicyID, claim.ID)
			if err != nil {
				return err
			}
			if current != nil && !shared {
				if err := store.Update(ctx, current.ID, map[string]any{
					"insurer_id":    insurer.ID,
					"policy_number": req.PolicyNumber,
				}); err != nil {
					return err
				}
				current.InsurerID = insurer.ID
				current.PolicyNumber = req.PolicyNumber
				resolved = current
				return nil
			}
		}

		created := &claimdomain.Policy{
			ID:           r.genID.Generate(),
			InsurerID:    insurer.ID,
			CustomerID:   claim.CustomerID,
			PatientID:    claim.PatientID,
			PolicyNumber: req.PolicyNumber,
			CreatedAt:    r.clock.Now(),
		}
		if err := store.Create(ctx, created); err != nil {
			return err
		}
		resolved = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	resolved.Insurer = insurer
	id := resolved.ID
	claim.PolicyID = &id
	return resolved, nil
}

// CanChangePolicyNumber reports whether every claim against the policy is still editable.
func (r *Rules) CanChangePolicyNumber(ctx context.Context, db *gorm.DB, policyID snowflake.ID) (bool, error) {
	claims, err := r.claims.ListByPolicy(ctx, db, policyID)
	if err != nil {
		return false, err
	}
	for _, c := range claims {
		if c.Status != claimdomain.StatusPending && c.Status != claimdomain.StatusPosted {
			return false, nil
		}
	}
	return true, nil
}

// IsClaimed reports whether any active claim references a charge on the invoice.
func (r *Rules) IsClaimed(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (bool, error) {
	claims, err := r.claims.ListByInvoice(ctx, db, invoiceID)
	if err != nil {
		return false, err
	}
	for _, c := range claims {
		if c.Status.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

// CurrentClaims returns the claims against the invoice that are still in progress with the insurer.
func (r *Rules) CurrentClaims(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]*claimdomain.Claim, error) {
	claims, err := r.claims.ListByInvoice(ctx, db, invoiceID)
	if err != nil {
		return nil, err
	}
	var current []*claimdomain.Claim
	for _, c := range claims {
		if !c.Status.IsTerminal() && c.Status != claimdomain.StatusCancelling {
			current = append(current, c)
		}
	}
	return current, nil
}

// CurrentGapClaims returns the current gap claims whose gap has not been paid.
func (r *Rules) CurrentGapClaims(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]*claimdomain.Claim, error) {
	claims, err := r.CurrentClaims(ctx, db, invoiceID)
	if err != nil {
		return nil, err
	}
	var gap []*claimdomain.Claim
	for _, c := range claims {
		if !c.IsGapClaim {
			continue
		}
		if c.GapStatus == claimdomain.GapStatusPending || c.GapStatus == claimdomain.GapStatusReceived || c.GapStatus == "" {
			gap = append(gap, c)
		}
	}
	return gap, nil
}

func (r *Rules) usedElsewhere(ctx context.Context, db *gorm.DB, policyID, claimID snowflake.ID) (bool, error) {
	claims, err := r.claims.ListByPolicy(ctx, db, policyID)
	if err != nil {
		return false, err
	}
	for _, c := range claims {
		if c.ID != claimID {
			return true, nil
		}
	}
	return false, nil
}
