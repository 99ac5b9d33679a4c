package submission

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/claimflow/internal/audit/domain"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	"go.uber.org/zap"
)

// Cancel withdraws a claim. Claims already with an online insurer are cancelled through the
// insurer, which may answer CANCELLING while it processes the request. If the insurer cannot cancel
// this claim the user is told and nothing changes locally.
func (c *Coordinator) Cancel(ctx context.Context, claimID snowflake.ID, done func(error)) {
	t, err := c.load(ctx, claimID)
	if err != nil {
		c.failed(done, "", err)
		return
	}
	if !c.machine.CanCancel(t.claim) {
		c.interaction.Inform(ctx, titleCancel, fmt.Sprintf("The claim cannot be cancelled as it is %s.", t.claim.Status))
		complete(done, nil)
		return
	}

	if t.online() && lodged(t.claim) {
		name := t.service.Name()
		if !t.service.CanCancel(ctx, t.claim) {
			c.interaction.Inform(ctx, titleCancel, fmt.Sprintf("%s does not support cancellation of this claim.", name))
			complete(done, nil)
			return
		}
		reason, ok := c.interaction.PromptReason(ctx, titleCancel, fmt.Sprintf("Cancel the claim with %s?", name))
		if !ok {
			complete(done, nil)
			return
		}
		c.cancelOnline(ctx, t, reason, done)
		return
	}

	reason, ok := c.interaction.PromptReason(ctx, titleCancel, fmt.Sprintf("Cancel the claim? %s will not be notified.", t.insurer().Name))
	if !ok {
		complete(done, nil)
		return
	}
	err = c.update(ctx, t.claim, auditdomain.ActionClaimCancelled, func(claim *claimdomain.Claim) error {
		return c.machine.SetStatus(claim, claimdomain.StatusCancelled, reason)
	})
	if err != nil {
		c.failed(done, "", err)
		return
	}
	c.log.Info("claim.cancel.offline", zap.String("claim_id", claimID.String()))
	complete(done, nil)
}

func (c *Coordinator) cancelOnline(ctx context.Context, t *target, reason string, done func(error)) {
	release, err := c.acquire(ctx, t.claim.ID)
	if err != nil {
		c.failed(done, "", err)
		return
	}
	defer release()

	status, err := t.service.Cancel(ctx, t.claim, reason)
	if err != nil {
		c.failed(done, "", remote(t.service, "cancel", err))
		return
	}
	err = c.update(ctx, t.claim, auditdomain.ActionClaimCancelled, func(claim *claimdomain.Claim) error {
		if claim.Status == status {
			return nil
		}
		return c.machine.SetStatus(claim, status, reason)
	})
	if err != nil {
		c.failed(done, "", err)
		return
	}
	c.log.Info("claim.cancel.online",
		zap.String("claim_id", t.claim.ID.String()),
		zap.String("service", t.service.Name()),
		zap.String("status", string(t.claim.Status)),
	)
	complete(done, nil)
}

// Decline records the insurer's refusal. For online insurers the insurer drives the status, so the
// user is only told.
func (c *Coordinator) Decline(ctx context.Context, claimID snowflake.ID, done func(error)) {
	c.resolveOffline(ctx, claimID, claimdomain.StatusDeclined, titleDecline, done)
}

// Settle records that the insurer has paid the claim. For online insurers the insurer drives the
// status, so the user is only told.
func (c *Coordinator) Settle(ctx context.Context, claimID snowflake.ID, done func(error)) {
	c.resolveOffline(ctx, claimID, claimdomain.StatusSettled, titleSettle, done)
}

func (c *Coordinator) resolveOffline(ctx context.Context, claimID snowflake.ID, to claimdomain.Status, title string, done func(error)) {
	t, err := c.load(ctx, claimID)
	if err != nil {
		c.failed(done, "", err)
		return
	}
	insurer := t.insurer()
	if t.online() {
		c.interaction.Inform(ctx, title, fmt.Sprintf("Claims with %s are updated by %s. The claim status will change when the insurer responds.", insurer.Name, t.service.Name()))
		complete(done, nil)
		return
	}
	if !c.interaction.Confirm(ctx, title, fmt.Sprintf("Mark the claim with %s as %s?", insurer.Name, to)) {
		complete(done, nil)
		return
	}
	err = c.update(ctx, t.claim, auditdomain.ActionClaimStatusChanged, func(claim *claimdomain.Claim) error {
		return c.machine.SetStatus(claim, to, "")
	})
	if err != nil {
		c.failed(done, "", err)
		return
	}
	complete(done, nil)
}

// lodged reports whether the insurer has the claim.
func lodged(claim *claimdomain.Claim) bool {
	return claim.Status != claimdomain.StatusPending && claim.Status != claimdomain.StatusPosted
}
