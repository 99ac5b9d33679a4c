// Package lifecycle decides which claim status changes are legal and applies them in memory.
// It never persists; callers save the claim afterwards.
package lifecycle

import (
	"fmt"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/clock"
	"github.com/smallbiznis/claimflow/internal/config"
	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Clock  clock.Clock
	GenID  *snowflake.Node
	Config *config.ClaimsConfigHolder `optional:"true"`
}

type Machine struct {
	clock  clock.Clock
	genID  *snowflake.Node
	config *config.ClaimsConfigHolder
}

func NewMachine(p Params) *Machine {
	cfg := p.Config
	if cfg == nil {
		cfg = config.NewStaticClaimsConfigHolder(config.DefaultClaimsConfig())
	}
	return &Machine{
		clock:  p.Clock,
		genID:  p.GenID,
		config: cfg,
	}
}

// GapPayment identifies who took the gap payment, for the benefit adjustment.
type GapPayment struct {
	PracticeID snowflake.ID
	LocationID snowflake.ID
	UserID     *snowflake.ID
	Notes      string
}

// CanTransition reports whether an edge exists, without running its guard.
func (m *Machine) CanTransition(from, to domain.Status) bool {
	_, ok := lookup(from, to)
	return ok
}

// SetStatus moves the claim to status, recording message as the reason.
// Cancelling or declining a claim already in that state is a no-op.
func (m *Machine) SetStatus(c *domain.Claim, to domain.Status, message string) error {
	if c.Status == to && (to == domain.StatusCancelled || to == domain.StatusDeclined) {
		return nil
	}
	if c.Status.IsTerminal() {
		return &domain.TransitionError{From: c.Status, To: to, Reason: "claim is finalised"}
	}
	e, ok := lookup(c.Status, to)
	if !ok {
		return &domain.TransitionError{From: c.Status, To: to}
	}
	if e.guard != nil {
		if err := e.guard(c); err != nil {
			return err
		}
	}

	c.Status = to
	c.Message = m.truncate(message)
	if to.IsTerminal() {
		now := m.clock.Now()
		c.EndTime = &now
	} else {
		c.EndTime = nil
	}
	return nil
}

// Finalise posts a pending claim. Pending attachments become complete.
func (m *Machine) Finalise(c *domain.Claim) error {
	if c.Status != domain.StatusPending {
		return fmt.Errorf("%w: finalise requires %s, claim is %s", domain.ErrInvalidStatus, domain.StatusPending, c.Status)
	}
	if err := m.SetStatus(c, domain.StatusPosted, ""); err != nil {
		return err
	}
	for i := range c.Attachments {
		if c.Attachments[i].Status == domain.AttachmentStatusPending {
			c.Attachments[i].Status = domain.AttachmentStatusComplete
		}
	}
	return nil
}

// CanCancel reports whether the claim may still be withdrawn.
func (m *Machine) CanCancel(c *domain.Claim) bool {
	switch c.Status {
	case domain.StatusPending, domain.StatusPosted, domain.StatusSubmitted, domain.StatusAccepted:
		return true
	default:
		return false
	}
}

// SetBenefit records the insurer's benefit determination on an accepted gap claim.
func (m *Machine) SetBenefit(c *domain.Claim, amount int64, notes string) error {
	if !c.IsGapClaim {
		return domain.ErrNotGapClaim
	}
	if c.Status != domain.StatusAccepted {
		return fmt.Errorf("%w: benefit requires %s, claim is %s", domain.ErrInvalidStatus, domain.StatusAccepted, c.Status)
	}
	switch c.GapStatus {
	case "", domain.GapStatusPending, domain.GapStatusReceived:
	default:
		return fmt.Errorf("%w: benefit already settled (%s)", domain.ErrGapStatus, c.GapStatus)
	}
	if amount < 0 || amount > c.Amount {
		return fmt.Errorf("%w: benefit %d outside 0..%d", domain.ErrInvalidAmount, amount, c.Amount)
	}
	c.BenefitAmount = amount
	c.BenefitNotes = m.truncate(notes)
	c.GapStatus = domain.GapStatusReceived
	return nil
}

// FullyPaid marks the whole claim paid by the customer.
func (m *Machine) FullyPaid(c *domain.Claim) error {
	if !c.IsGapClaim {
		return domain.ErrNotGapClaim
	}
	if c.Status != domain.StatusAccepted {
		return fmt.Errorf("%w: full payment requires %s, claim is %s", domain.ErrInvalidStatus, domain.StatusAccepted, c.Status)
	}
	c.GapStatus = domain.GapStatusPaid
	return nil
}

// GapPaid marks the gap settled and returns the benefit adjustment to record.
// The adjustment is nil when the gap was already paid.
func (m *Machine) GapPaid(c *domain.Claim, p GapPayment) (*domain.ClaimAdjustment, error) {
	if !c.IsGapClaim {
		return nil, domain.ErrNotGapClaim
	}
	if c.Status != domain.StatusAccepted {
		return nil, fmt.Errorf("%w: gap payment requires %s, claim is %s", domain.ErrInvalidStatus, domain.StatusAccepted, c.Status)
	}
	switch c.GapStatus {
	case domain.GapStatusPending, "":
		return nil, fmt.Errorf("%w: benefit not received", domain.ErrGapStatus)
	case domain.GapStatusPaid, domain.GapStatusNotified:
		return nil, nil
	}

	c.GapStatus = domain.GapStatusPaid
	return &domain.ClaimAdjustment{
		ID:         m.genID.Generate(),
		ClaimID:    c.ID,
		PracticeID: p.PracticeID,
		LocationID: p.LocationID,
		UserID:     p.UserID,
		Amount:     c.BenefitAmount,
		Notes:      m.truncate(p.Notes),
		CreatedAt:  m.clock.Now(),
	}, nil
}

// PaymentNotified records that the insurer was told about the payment.
func (m *Machine) PaymentNotified(c *domain.Claim) error {
	if !c.IsGapClaim {
		return domain.ErrNotGapClaim
	}
	if c.GapStatus != domain.GapStatusPaid {
		return fmt.Errorf("%w: notify requires %s, gap is %s", domain.ErrGapStatus, domain.GapStatusPaid, c.GapStatus)
	}
	c.GapStatus = domain.GapStatusNotified
	return nil
}

// Truncate shortens s to the configured message length.
func (m *Machine) Truncate(s string) string {
	return m.truncate(s)
}

func (m *Machine) truncate(s string) string {
	return Abbreviate(s, m.config.Get().ErrorMaxLength)
}

// Abbreviate cuts s to max runes, ending with "..." when shortened.
func Abbreviate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
