package submission

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/claimflow/internal/audit/domain"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/claim/editor"
	insurancedomain "github.com/smallbiznis/claimflow/internal/insurance/domain"
	"github.com/smallbiznis/claimflow/internal/observability/metrics"
	"go.uber.org/zap"
)

// Submit finalises and submits the claim being edited. The claim must be PENDING, valid, have a
// positive amount and attachments that all generated. Online insurers may validate the claim first:
// an error stops the submission, a warning asks the user. Gap claims then wait for the benefit.
func (c *Coordinator) Submit(ctx context.Context, ed *editor.Editor, done func(error)) {
	t, status, err := c.prepare(ctx, ed)
	if err != nil {
		c.failed(done, "", err)
		return
	}
	switch status.Severity {
	case insurancedomain.SeverityError:
		c.interaction.Inform(ctx, titleSubmit, status.Message)
		c.metrics.IncSubmission(metrics.PathOnline, metrics.OutcomeCancelled)
		complete(done, nil)
		return
	case insurancedomain.SeverityWarning:
		if !c.interaction.Confirm(ctx, titleSubmit, fmt.Sprintf("The claim has the following warning:\n%s\n\nSubmit anyway?", status.Message)) {
			c.metrics.IncSubmission(metrics.PathOnline, metrics.OutcomeCancelled)
			complete(done, nil)
			return
		}
	}
	c.submit(ctx, t, true, done)
}

// SubmitPosted submits a claim that was finalised earlier. Gap support and the submit window are
// not checked again.
func (c *Coordinator) SubmitPosted(ctx context.Context, claimID snowflake.ID, done func(error)) {
	ed, err := c.editors.Open(ctx, claimID)
	if err != nil {
		c.failed(done, "", err)
		return
	}
	defer ed.Close()

	claim := ed.Claim()
	if claim.Status != claimdomain.StatusPosted {
		c.failed(done, "", fmt.Errorf("%w: submit requires %s, claim is %s", claimdomain.ErrInvalidStatus, claimdomain.StatusPosted, claim.Status))
		return
	}
	dups, err := ed.Ledger().Duplicates(ctx)
	if err != nil {
		c.failed(done, "", err)
		return
	}
	if len(dups) > 0 {
		c.failed(done, "", fmt.Errorf("%w: %d charge(s) already claimed", claimdomain.ErrDuplicateCharge, len(dups)))
		return
	}
	t, err := c.resolve(ctx, claim)
	if err != nil {
		c.failed(done, "", err)
		return
	}
	c.submit(ctx, t, false, done)
}

func (c *Coordinator) prepare(ctx context.Context, ed *editor.Editor) (*target, insurancedomain.ValidationStatus, error) {
	claim := ed.Claim()
	status := insurancedomain.Valid()
	if claim.Status != claimdomain.StatusPending {
		return nil, status, fmt.Errorf("%w: submit requires %s, claim is %s", claimdomain.ErrInvalidStatus, claimdomain.StatusPending, claim.Status)
	}
	if err := ed.Validate(ctx); err != nil {
		return nil, status, err
	}

	ok, err := ed.GenerateAttachments(ctx)
	if err != nil {
		return nil, status, err
	}
	if !ok {
		return nil, status, claimdomain.ErrAttachmentError
	}
	if claim.Amount <= 0 {
		return nil, status, fmt.Errorf("%w: the claim has no charges", claimdomain.ErrInvalidAmount)
	}
	if names := failedAttachments(claim); len(names) > 0 {
		return nil, status, &claimdomain.AttachmentFailure{Names: names, Err: claimdomain.ErrAttachmentError}
	}

	if claim.IsGapClaim {
		times, err := ed.GapClaimSubmitTimes(ctx)
		if err != nil {
			return nil, status, err
		}
		if err := times.Check(c.clock.Now()); err != nil {
			return nil, status, err
		}
	}

	t, err := c.resolve(ctx, claim)
	if err != nil {
		return nil, status, err
	}
	if t.online() && t.service.CanValidateClaims() {
		status, err = t.service.Validate(ctx, claim)
		if err != nil {
			return nil, status, remote(t.service, "validate", err)
		}
	}
	return t, status, nil
}

func (c *Coordinator) submit(ctx context.Context, t *target, finalise bool, done func(error)) {
	insurer := t.insurer()
	if t.online() {
		message := fmt.Sprintf("Submit the claim to %s using %s?", insurer.Name, t.service.Name())
		if !c.interaction.Confirm(ctx, titleSubmit, message) {
			c.metrics.IncSubmission(metrics.PathOnline, metrics.OutcomeCancelled)
			complete(done, nil)
			return
		}
		c.submitOnline(ctx, t, finalise, done)
		return
	}

	message := fmt.Sprintf("%s does not accept online claims.\n\nThe claim will be marked as submitted and must be printed or emailed to the insurer.", insurer.Name)
	if !c.interaction.Confirm(ctx, titleSubmit, message) {
		c.metrics.IncSubmission(metrics.PathOffline, metrics.OutcomeCancelled)
		complete(done, nil)
		return
	}
	c.submitOffline(ctx, t, finalise, done)
}

func (c *Coordinator) submitOffline(ctx context.Context, t *target, finalise bool, done func(error)) {
	err := c.update(ctx, t.claim, auditdomain.ActionClaimSubmitted, func(claim *claimdomain.Claim) error {
		if finalise {
			if err := c.machine.Finalise(claim); err != nil {
				return err
			}
		}
		return c.machine.SetStatus(claim, claimdomain.StatusSubmitted, "")
	})
	if err != nil {
		c.failed(done, metrics.PathOffline, err)
		return
	}
	c.metrics.IncSubmission(metrics.PathOffline, metrics.OutcomeSuccess)
	c.log.Info("claim.submit.offline", zap.String("claim_id", t.claim.ID.String()))
	c.print(ctx, t.claim, done)
}

// submitOnline finalises the claim, has the user accept the insurer's declaration and submits. A
// declined declaration leaves the claim POSTED for a later SubmitPosted.
func (c *Coordinator) submitOnline(ctx context.Context, t *target, finalise bool, done func(error)) {
	release, err := c.acquire(ctx, t.claim.ID)
	if err != nil {
		c.failed(done, metrics.PathOnline, err)
		return
	}
	defer release()

	if finalise {
		if err := c.update(ctx, t.claim, auditdomain.ActionClaimPosted, c.machine.Finalise); err != nil {
			c.failed(done, metrics.PathOnline, err)
			return
		}
	}

	declaration, err := t.service.Declaration(ctx, t.claim)
	if err != nil {
		c.failed(done, metrics.PathOnline, remote(t.service, "declaration", err))
		return
	}
	if declaration != nil && !c.interaction.AcceptDeclaration(ctx, t.claim, declaration) {
		c.metrics.IncSubmission(metrics.PathOnline, metrics.OutcomeCancelled)
		complete(done, nil)
		return
	}

	result, err := t.service.Submit(ctx, t.claim, declaration)
	if err != nil {
		c.failed(done, metrics.PathOnline, remote(t.service, "submit", err))
		return
	}
	err = c.update(ctx, t.claim, auditdomain.ActionClaimSubmitted, func(claim *claimdomain.Claim) error {
		if claim.Status != claimdomain.StatusPosted {
			// The insurer has already moved the claim on.
			return nil
		}
		if err := c.machine.SetStatus(claim, claimdomain.StatusSubmitted, ""); err != nil {
			return err
		}
		if result.InsurerClaimID != "" {
			claim.InsurerClaimID = result.InsurerClaimID
		}
		if claim.IsGapClaim {
			claim.GapStatus = claimdomain.GapStatusPending
		}
		return nil
	})
	if err != nil {
		c.failed(done, metrics.PathOnline, err)
		return
	}
	c.metrics.IncSubmission(metrics.PathOnline, metrics.OutcomeSuccess)
	c.log.Info("claim.submit.online",
		zap.String("claim_id", t.claim.ID.String()),
		zap.String("service", t.service.Name()),
		zap.String("insurer_claim_id", t.claim.InsurerClaimID),
	)

	if t.claim.IsGapClaim {
		c.waitForBenefit(ctx, t.claim, done)
		return
	}
	complete(done, nil)
}

// failed reports err. path is empty when the failure came before a path was chosen.
func (c *Coordinator) failed(done func(error), path string, err error) {
	if path != "" {
		c.metrics.IncSubmission(path, metrics.OutcomeFailed)
	}
	c.log.Warn("claim operation failed", zap.String("path", path), zap.Error(err))
	complete(done, err)
}

func failedAttachments(claim *claimdomain.Claim) []string {
	var names []string
	for _, a := range claim.Attachments {
		if a.Status == claimdomain.AttachmentStatusError {
			names = append(names, a.Name)
		}
	}
	return names
}
