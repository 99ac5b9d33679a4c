// Package charge tracks the billing line-items attached to a claim during one editing session.
package charge

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/claimflow/internal/cache"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	invoicedomain "github.com/smallbiznis/claimflow/internal/invoice/domain"
	"gorm.io/gorm"
)

// Reasons an invoice or item may not be claimed.
var (
	ErrInvoiceNotPosted = errors.New("invoice_not_posted")
	ErrInvoiceReversed  = errors.New("invoice_reversed")
	ErrInvoiceUnpaid    = errors.New("invoice_unpaid")
	ErrInvoicePaid      = errors.New("invoice_paid")
	ErrAlreadyInLedger  = errors.New("charge_already_in_claim")
	ErrClaimedElsewhere = errors.New("charge_claimed_elsewhere")
	ErrOtherPatient     = errors.New("charge_for_other_patient")
)

type Params struct {
	DB       *gorm.DB
	Claims   claimdomain.Repository
	Invoices invoicedomain.Repository
	Cache    cache.BillingCache
	ClaimID  snowflake.ID
	GapClaim bool
}

// Entry is one line-item in the working set.
type Entry struct {
	InvoiceID     snowflake.ID
	InvoiceItemID snowflake.ID
	Amount        int64
	Tax           int64
}

// Eligibility explains a CanClaimItem answer. Holder is set when another claim owns the item.
type Eligibility struct {
	Allowed bool
	Reason  error
	Holder  *claimdomain.Claim
}

type Ledger struct {
	db       *gorm.DB
	claims   claimdomain.Repository
	invoices invoicedomain.Repository
	cache    cache.BillingCache
	claimID  snowflake.ID
	gapClaim bool

	entries []Entry
	index   map[snowflake.ID]int
}

func NewLedger(p Params) *Ledger {
	return &Ledger{
		db:       p.DB,
		claims:   p.Claims,
		invoices: p.Invoices,
		cache:    p.Cache,
		claimID:  p.ClaimID,
		gapClaim: p.GapClaim,
		index:    make(map[snowflake.ID]int),
	}
}

// Load seeds the working set from a persisted claim.
func (l *Ledger) Load(claim *claimdomain.Claim) {
	l.entries = l.entries[:0]
	l.index = make(map[snowflake.ID]int)
	for _, ref := range claim.ChargeReferences() {
		l.put(Entry{
			InvoiceID:     ref.InvoiceID,
			InvoiceItemID: ref.InvoiceItemID,
			Amount:        ref.Amount,
			Tax:           ref.Tax,
		})
	}
}

// SetGapClaim switches the invoice payment rule used by CanClaimInvoice.
func (l *Ledger) SetGapClaim(gap bool) {
	l.gapClaim = gap
}

// CanClaimInvoice reports whether charges from invoice may be claimed.
func (l *Ledger) CanClaimInvoice(invoice *invoicedomain.Invoice) bool {
	return l.CheckInvoice(invoice) == nil
}

// CheckInvoice is CanClaimInvoice with the reason. Standard claims need a paid invoice; gap claims
// need one that is not yet fully paid, since the insurer pays part of it.
func (l *Ledger) CheckInvoice(invoice *invoicedomain.Invoice) error {
	if invoice == nil {
		return invoicedomain.ErrInvoiceNotFound
	}
	if invoice.Status != invoicedomain.InvoiceStatusPosted {
		return ErrInvoiceNotPosted
	}
	if invoice.Reversed {
		return ErrInvoiceReversed
	}
	if l.gapClaim {
		if invoice.FullyAllocated() {
			return ErrInvoicePaid
		}
		return nil
	}
	if !invoice.FullyAllocated() {
		return ErrInvoiceUnpaid
	}
	return nil
}

// CanClaimItem checks the item's invoice, this ledger, and every other active claim.
func (l *Ledger) CanClaimItem(ctx context.Context, item *invoicedomain.InvoiceItem) (Eligibility, error) {
	if item == nil {
		return Eligibility{Reason: invoicedomain.ErrInvoiceNotFound}, nil
	}
	invoice, err := l.Invoice(ctx, item.InvoiceID)
	if err != nil {
		return Eligibility{}, err
	}
	if err := l.CheckInvoice(invoice); err != nil {
		return Eligibility{Reason: err}, nil
	}
	if l.Contains(item.ID) {
		return Eligibility{Reason: ErrAlreadyInLedger}, nil
	}
	holder, err := l.claims.FindActiveClaimForCharge(ctx, l.db, item.ID, l.claimID)
	if err != nil {
		return Eligibility{}, err
	}
	if holder != nil {
		return Eligibility{Reason: ErrClaimedElsewhere, Holder: holder}, nil
	}
	return Eligibility{Allowed: true}, nil
}

// Add places the item in the working set. Callers check CanClaimItem first.
func (l *Ledger) Add(item *invoicedomain.InvoiceItem) bool {
	if item == nil || l.Contains(item.ID) {
		return false
	}
	l.put(Entry{
		InvoiceID:     item.InvoiceID,
		InvoiceItemID: item.ID,
		Amount:        item.Total,
		Tax:           item.Tax,
	})
	return true
}

func (l *Ledger) Remove(itemID snowflake.ID) bool {
	idx, ok := l.index[itemID]
	if !ok {
		return false
	}
	l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
	l.reindex()
	return true
}

func (l *Ledger) Contains(itemID snowflake.ID) bool {
	_, ok := l.index[itemID]
	return ok
}

func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// InvoiceRefs returns the distinct source invoices in first-seen order.
func (l *Ledger) InvoiceRefs() []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(l.entries))
	var refs []snowflake.ID
	for _, e := range l.entries {
		if _, ok := seen[e.InvoiceID]; ok {
			continue
		}
		seen[e.InvoiceID] = struct{}{}
		refs = append(refs, e.InvoiceID)
	}
	return refs
}

// Invoices loads every referenced invoice.
func (l *Ledger) Invoices(ctx context.Context) ([]*invoicedomain.Invoice, error) {
	var out []*invoicedomain.Invoice
	for _, id := range l.InvoiceRefs() {
		invoice, err := l.Invoice(ctx, id)
		if err != nil {
			return nil, err
		}
		if invoice == nil {
			return nil, fmt.Errorf("%w: %s", invoicedomain.ErrInvoiceNotFound, id)
		}
		out = append(out, invoice)
	}
	return out, nil
}

// Invoice reads through the session cache. A missing invoice returns nil, nil.
func (l *Ledger) Invoice(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	if l.cache != nil {
		if invoice, ok := l.cache.GetInvoice(id); ok {
			return invoice, nil
		}
	}
	invoice, err := l.invoices.FindInvoice(ctx, l.db, id)
	if err != nil {
		return nil, err
	}
	if invoice != nil && l.cache != nil {
		l.cache.SetInvoice(invoice)
	}
	return invoice, nil
}

// Item reads an invoice item through the session cache.
func (l *Ledger) Item(ctx context.Context, id snowflake.ID) (*invoicedomain.InvoiceItem, error) {
	if l.cache != nil {
		if item, ok := l.cache.GetItem(id); ok {
			return item, nil
		}
	}
	item, err := l.invoices.FindItem(ctx, l.db, id)
	if err != nil {
		return nil, err
	}
	if item != nil && l.cache != nil {
		l.cache.SetItem(item)
	}
	return item, nil
}

// Duplicates returns items in this ledger that another active claim now holds.
func (l *Ledger) Duplicates(ctx context.Context) ([]Entry, error) {
	var dups []Entry
	for _, e := range l.entries {
		holder, err := l.claims.FindActiveClaimForCharge(ctx, l.db, e.InvoiceItemID, l.claimID)
		if err != nil {
			return nil, err
		}
		if holder != nil {
			dups = append(dups, e)
		}
	}
	return dups, nil
}

func (l *Ledger) put(e Entry) {
	l.index[e.InvoiceItemID] = len(l.entries)
	l.entries = append(l.entries, e)
}

func (l *Ledger) reindex() {
	l.index = make(map[snowflake.ID]int, len(l.entries))
	for i, e := range l.entries {
		l.index[e.InvoiceItemID] = i
	}
}
