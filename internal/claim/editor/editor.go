// Package editor is the claim editing session: the claim being built, its charge working set and
// the invoices read while editing.
package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/claimflow/internal/attachment"
	"github.com/smallbiznis/claimflow/internal/cache"
	"github.com/smallbiznis/claimflow/internal/charge"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/clock"
	"github.com/smallbiznis/claimflow/internal/config"
	"github.com/smallbiznis/claimflow/internal/insurance"
	insurancedomain "github.com/smallbiznis/claimflow/internal/insurance/domain"
	invoicedomain "github.com/smallbiznis/claimflow/internal/invoice/domain"
	"github.com/smallbiznis/claimflow/internal/policy"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ItemRequest describes a new claim item.
type ItemRequest struct {
	StartTime   time.Time `validate:"required"`
	EndTime     *time.Time
	Diagnosis   string `validate:"max=255"`
	Reason      string `validate:"max=255"`
	Description string `validate:"max=1024"`
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	GenID    *snowflake.Node
	Claims   claimdomain.Repository
	Invoices invoicedomain.Repository
	Pipeline *attachment.Pipeline
	Policies *policy.Rules
	Services *insurance.Services
	Config   *config.ClaimsConfigHolder `optional:"true"`
}

// Factory opens editing sessions. Each session gets its own billing cache.
type Factory struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	genID    *snowflake.Node
	claims   claimdomain.Repository
	invoices invoicedomain.Repository
	pipeline *attachment.Pipeline
	policies *policy.Rules
	services *insurance.Services
	config   *config.ClaimsConfigHolder
	validate *validator.Validate
}

func NewFactory(p Params) *Factory {
	cfg := p.Config
	if cfg == nil {
		cfg = config.NewStaticClaimsConfigHolder(config.DefaultClaimsConfig())
	}
	return &Factory{
		db:       p.DB,
		log:      p.Log.Named("claim.editor"),
		clock:    p.Clock,
		genID:    p.GenID,
		claims:   p.Claims,
		invoices: p.Invoices,
		pipeline: p.Pipeline,
		policies: p.Policies,
		services: p.Services,
		config:   cfg,
		validate: validator.New(),
	}
}

// Create starts a session for a new PENDING claim. Nothing is stored until Save.
func (f *Factory) Create(customerID, patientID, locationID snowflake.ID, userID *snowflake.ID) *Editor {
	claim := &claimdomain.Claim{
		ID:         f.genID.Generate(),
		Status:     claimdomain.StatusPending,
		CustomerID: customerID,
		PatientID:  patientID,
		LocationID: locationID,
		UserID:     userID,
		StartTime:  f.clock.Now(),
	}
	return f.session(claim, false)
}

// Open starts a session for a stored claim.
func (f *Factory) Open(ctx context.Context, id snowflake.ID) (*Editor, error) {
	claim, err := f.claims.Load(ctx, f.db, id)
	if err != nil {
		return nil, err
	}
	return f.session(claim, true), nil
}

func (f *Factory) session(claim *claimdomain.Claim, stored bool) *Editor {
	cfg := f.config.Get()
	billing := cache.NewBillingCache(cfg.CacheMaxEntries, cfg.CacheTTL, f.clock)
	ledger := charge.NewLedger(charge.Params{
		DB:       f.db,
		Claims:   f.claims,
		Invoices: f.invoices,
		Cache:    billing,
		ClaimID:  claim.ID,
		GapClaim: claim.IsGapClaim,
	})
	ledger.Load(claim)
	return &Editor{f: f, claim: claim, ledger: ledger, cache: billing, stored: stored}
}

// Editor holds one claim while it is being edited.
type Editor struct {
	f      *Factory
	claim  *claimdomain.Claim
	ledger *charge.Ledger
	cache  cache.BillingCache
	stored bool
	// detached documents are deleted after the next successful save.
	detached []snowflake.ID
}

func (e *Editor) Claim() *claimdomain.Claim { return e.claim }

func (e *Editor) Ledger() *charge.Ledger { return e.ledger }

// DB is the handle the session reads and writes through.
func (e *Editor) DB() *gorm.DB { return e.f.db }

// SetGapClaim switches between a standard and a gap claim. Only PENDING claims can change.
func (e *Editor) SetGapClaim(gap bool) error {
	if err := e.requirePending(); err != nil {
		return err
	}
	e.claim.IsGapClaim = gap
	e.ledger.SetGapClaim(gap)
	return nil
}

// SetPolicy resolves and assigns the policy the user entered.
func (e *Editor) SetPolicy(ctx context.Context, req policy.Request) (*claimdomain.Policy, error) {
	if err := e.requirePending(); err != nil {
		return nil, err
	}
	return e.f.policies.ResolvePolicy(ctx, e.f.db, e.claim, req)
}

// SetLocation moves the claim. Generated documents carry the location, so they are discarded once
// the claim is saved.
func (e *Editor) SetLocation(ctx context.Context, locationID snowflake.ID) error {
	if err := e.requirePending(); err != nil {
		return err
	}
	if e.claim.LocationID == locationID {
		return nil
	}
	e.claim.LocationID = locationID
	if !e.stored {
		return nil
	}
	e.detached = append(e.detached, attachment.DetachGeneratedDocuments(e.claim)...)
	return nil
}

func (e *Editor) AddItem(req ItemRequest) (*claimdomain.ClaimItem, error) {
	if err := e.requirePending(); err != nil {
		return nil, err
	}
	if err := e.f.validate.Struct(req); err != nil {
		return nil, err
	}
	e.claim.Items = append(e.claim.Items, claimdomain.ClaimItem{
		ID:          e.f.genID.Generate(),
		ClaimID:     e.claim.ID,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Diagnosis:   strings.TrimSpace(req.Diagnosis),
		Reason:      strings.TrimSpace(req.Reason),
		Description: strings.TrimSpace(req.Description),
	})
	return &e.claim.Items[len(e.claim.Items)-1], nil
}

// RemoveItem drops an item and releases its charges.
func (e *Editor) RemoveItem(itemID snowflake.ID) bool {
	if e.requirePending() != nil {
		return false
	}
	for i := range e.claim.Items {
		if e.claim.Items[i].ID != itemID {
			continue
		}
		for _, c := range e.claim.Items[i].Charges {
			e.ledger.Remove(c.InvoiceItemID)
		}
		e.claim.Items = append(e.claim.Items[:i], e.claim.Items[i+1:]...)
		e.claim.RecalculateTotals()
		return true
	}
	return false
}

// AddCharge claims an invoice item under the given claim item. The returned Eligibility explains a refusal.
func (e *Editor) AddCharge(ctx context.Context, itemID, invoiceItemID snowflake.ID) (charge.Eligibility, error) {
	if err := e.requirePending(); err != nil {
		return charge.Eligibility{}, err
	}
	item := e.item(itemID)
	if item == nil {
		return charge.Eligibility{}, fmt.Errorf("claim item %s not found", itemID)
	}
	invoiceItem, err := e.ledger.Item(ctx, invoiceItemID)
	if err != nil {
		return charge.Eligibility{}, err
	}
	if invoiceItem == nil {
		return charge.Eligibility{Reason: invoicedomain.ErrInvoiceNotFound}, nil
	}
	if invoiceItem.PatientID != e.claim.PatientID {
		return charge.Eligibility{Reason: charge.ErrOtherPatient}, nil
	}
	eligibility, err := e.ledger.CanClaimItem(ctx, invoiceItem)
	if err != nil || !eligibility.Allowed {
		return eligibility, err
	}

	e.ledger.Add(invoiceItem)
	item.Charges = append(item.Charges, claimdomain.ChargeReference{
		ID:            e.f.genID.Generate(),
		ClaimID:       e.claim.ID,
		ClaimItemID:   item.ID,
		InvoiceID:     invoiceItem.InvoiceID,
		InvoiceItemID: invoiceItem.ID,
		Amount:        invoiceItem.Total,
		Tax:           invoiceItem.Tax,
	})
	e.claim.RecalculateTotals()
	return eligibility, nil
}

// RemoveCharge releases an invoice item from whichever claim item holds it.
func (e *Editor) RemoveCharge(invoiceItemID snowflake.ID) bool {
	if e.requirePending() != nil {
		return false
	}
	for i := range e.claim.Items {
		item := &e.claim.Items[i]
		for j := range item.Charges {
			if item.Charges[j].InvoiceItemID != invoiceItemID {
				continue
			}
			item.Charges = append(item.Charges[:j], item.Charges[j+1:]...)
			e.ledger.Remove(invoiceItemID)
			e.claim.RecalculateTotals()
			return true
		}
	}
	return false
}

// Policy returns the claim's policy with its insurer, or nil when none is set.
func (e *Editor) Policy(ctx context.Context) (*claimdomain.Policy, error) {
	if e.claim.PolicyID == nil {
		return nil, nil
	}
	return e.f.policies.Policy(ctx, e.f.db, *e.claim.PolicyID)
}

// Validate checks the claim can be submitted: a policy is set, a gap claim's insurer takes gap
// claims, every invoice is still claimable and no charge has been claimed by another claim since
// it was added.
func (e *Editor) Validate(ctx context.Context) error {
	e.claim.RecalculateTotals()

	pol, err := e.Policy(ctx)
	if err != nil {
		return err
	}
	if pol == nil || pol.Insurer == nil {
		return claimdomain.ErrMissingPolicy
	}

	if e.claim.IsGapClaim {
		gap, ok := e.f.services.GapService(pol.Insurer)
		if !ok {
			return fmt.Errorf("%w: %s", claimdomain.ErrGapNotSupported, pol.Insurer.Name)
		}
		supported, err := gap.SupportsGapClaims(ctx, pol.Insurer, pol.PolicyNumber, e.claim.LocationID)
		if err != nil {
			return &claimdomain.RemoteError{Service: gap.Name(), Op: "supports gap claims", Err: err}
		}
		if !supported {
			return fmt.Errorf("%w: %s policy %s", claimdomain.ErrGapNotSupported, pol.Insurer.Name, pol.PolicyNumber)
		}
	}

	invoices, err := e.ledger.Invoices(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, invoice := range invoices {
		if err := e.ledger.CheckInvoice(invoice); err != nil {
			errs = append(errs, fmt.Errorf("%w: invoice %s: %w", claimdomain.ErrChargeNotClaimable, invoice.Number, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	dups, err := e.ledger.Duplicates(ctx)
	if err != nil {
		return err
	}
	if len(dups) > 0 {
		return fmt.Errorf("%w: %d charge(s) already claimed", claimdomain.ErrDuplicateCharge, len(dups))
	}
	return nil
}

// GenerateAttachments saves the claim if it is new, then runs the attachment pipeline.
func (e *Editor) GenerateAttachments(ctx context.Context) (bool, error) {
	if !e.stored || len(e.detached) > 0 {
		if err := e.Save(ctx); err != nil {
			return false, err
		}
	}
	return e.f.pipeline.Generate(ctx, e.f.db, e.claim, e.ledger)
}

// GapClaimSubmitTimes returns the insurer's submission window. It is nil for standard claims and
// for insurers without restrictions.
func (e *Editor) GapClaimSubmitTimes(ctx context.Context) (*insurancedomain.Times, error) {
	if !e.claim.IsGapClaim {
		return nil, nil
	}
	pol, err := e.Policy(ctx)
	if err != nil || pol == nil || pol.Insurer == nil {
		return nil, err
	}
	gap, ok := e.f.services.GapService(pol.Insurer)
	if !ok {
		return nil, nil
	}
	times, err := gap.GapClaimSubmitTimes(ctx, pol.Insurer, e.f.clock.Now(), e.claim.LocationID)
	if err != nil {
		return nil, &claimdomain.RemoteError{Service: gap.Name(), Op: "gap claim submit times", Err: err}
	}
	return times, nil
}

// Save stores the claim, inserting it on first save.
func (e *Editor) Save(ctx context.Context) error {
	e.claim.RecalculateTotals()
	if !e.stored {
		if err := e.f.claims.Insert(ctx, e.f.db, e.claim); err != nil {
			return err
		}
		e.stored = true
		return nil
	}
	if err := e.f.claims.Save(ctx, e.f.db, e.claim); err != nil {
		return err
	}
	if len(e.detached) == 0 {
		return nil
	}
	ids := e.detached
	e.detached = nil
	return e.f.pipeline.DeleteDocuments(ctx, e.f.db, ids)
}

// Reload replaces the claim with a fresh copy and reseeds the working set.
func (e *Editor) Reload(ctx context.Context) error {
	claim, err := e.f.claims.Load(ctx, e.f.db, e.claim.ID)
	if err != nil {
		return err
	}
	e.claim = claim
	e.detached = nil
	e.ledger.SetGapClaim(claim.IsGapClaim)
	e.ledger.Load(claim)
	return nil
}

// Close drops everything the session cached.
func (e *Editor) Close() {
	e.cache.Purge()
}

func (e *Editor) item(id snowflake.ID) *claimdomain.ClaimItem {
	for i := range e.claim.Items {
		if e.claim.Items[i].ID == id {
			return &e.claim.Items[i]
		}
	}
	return nil
}

func (e *Editor) requirePending() error {
	if e.claim.Status != claimdomain.StatusPending {
		return fmt.Errorf("%w: claim is %s", claimdomain.ErrInvalidStatus, e.claim.Status)
	}
	return nil
}
