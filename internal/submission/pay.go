package submission

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/claimflow/internal/audit/domain"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/gap/payment"
	"github.com/smallbiznis/claimflow/internal/gap/poller"
	"go.uber.org/zap"
)

// Pay takes payment for a gap claim. Until the benefit is known the user may wait for it. Once the
// gap or the whole claim is paid the insurer is notified.
func (c *Coordinator) Pay(ctx context.Context, claimID snowflake.ID, done func(error)) {
	claim, err := c.claims.Load(ctx, c.db, claimID)
	if err != nil {
		c.failed(done, "", err)
		return
	}
	if !claim.IsGapClaim {
		c.failed(done, "", claimdomain.ErrNotGapClaim)
		return
	}

	switch {
	case (claim.Status == claimdomain.StatusSubmitted || claim.Status == claimdomain.StatusAccepted) &&
		claim.GapStatus == claimdomain.GapStatusPending:
		c.waitForBenefit(ctx, claim, done)
	case claim.Status == claimdomain.StatusAccepted && claim.GapStatus == claimdomain.GapStatusReceived:
		c.promptToPay(ctx, claim, false, done)
	case claim.Status == claimdomain.StatusAccepted && claim.GapStatus == claimdomain.GapStatusPaid:
		c.notifyPayment(ctx, claim, done)
	default:
		complete(done, nil)
	}
}

func (c *Coordinator) waitForBenefit(ctx context.Context, claim *claimdomain.Claim, done func(error)) {
	ctx = context.WithoutCancel(ctx)
	wait := c.poller.Wait(claim, nil, func(res poller.Result) {
		c.benefitWaitFinished(ctx, res, done)
	})
	c.interaction.WaitForBenefit(ctx, claim, wait)
}

func (c *Coordinator) benefitWaitFinished(ctx context.Context, res poller.Result, done func(error)) {
	switch res.Outcome {
	case poller.OutcomeReceived, poller.OutcomePayFull:
		c.promptToPay(ctx, res.Claim, res.Outcome == poller.OutcomePayFull, done)
	case poller.OutcomeEnded:
		c.interaction.Inform(ctx, titlePay, endedMessage(res.Claim.Status))
		complete(done, nil)
	case poller.OutcomeFailed:
		c.failed(done, "", res.Err)
	default:
		complete(done, nil)
	}
}

func endedMessage(status claimdomain.Status) string {
	switch status {
	case claimdomain.StatusCancelling:
		return "The claim is being cancelled. The gap cannot be paid."
	case claimdomain.StatusCancelled:
		return "The claim has been cancelled. The gap cannot be paid."
	default:
		return "The claim has been declined. The gap cannot be paid."
	}
}

func (c *Coordinator) promptToPay(ctx context.Context, claim *claimdomain.Claim, payFull bool, done func(error)) {
	choice, ok := c.interaction.PromptPayment(ctx, claim, payFull)
	if !ok {
		complete(done, nil)
		return
	}
	c.payClaim(ctx, claim, choice, done)
}

// payClaim records the payment. A zero amount means nothing is owing, so the claim is marked fully
// paid without taking money.
func (c *Coordinator) payClaim(ctx context.Context, claim *claimdomain.Claim, choice PaymentChoice, done func(error)) {
	if choice.Amount == 0 {
		if claim.Outstanding() != 0 {
			c.failed(done, "", fmt.Errorf("%w: %d is still owing", claimdomain.ErrInvalidPayment, claim.Outstanding()))
			return
		}
		if err := c.update(ctx, claim, auditdomain.ActionGapPayment, c.machine.FullyPaid); err != nil {
			c.failed(done, "", err)
			return
		}
		c.notifyPayment(ctx, claim, done)
		return
	}

	res, err := c.reconciler.Reconcile(ctx, claim, payment.Request{
		Amount:     choice.Amount,
		LocationID: choice.LocationID,
		UserID:     choice.UserID,
		Notes:      choice.Notes,
	})
	if err != nil {
		c.failed(done, "", err)
		return
	}
	if res.Claim.GapStatus == claimdomain.GapStatusPaid {
		c.notifyPayment(ctx, res.Claim, done)
		return
	}
	complete(done, nil)
}

// notifyPayment tells the insurer the gap or claim has been paid.
func (c *Coordinator) notifyPayment(ctx context.Context, claim *claimdomain.Claim, done func(error)) {
	t, err := c.resolve(ctx, claim)
	if err != nil {
		c.failed(done, "", err)
		return
	}
	gap, ok := c.services.GapService(t.insurer())
	if !ok {
		c.failed(done, "", fmt.Errorf("%w: %s", claimdomain.ErrGapNotSupported, t.insurer().Name))
		return
	}
	release, err := c.acquire(ctx, claim.ID)
	if err != nil {
		c.failed(done, "", err)
		return
	}
	defer release()

	if err := gap.NotifyPayment(ctx, claim); err != nil {
		c.failed(done, "", remote(gap, "notify payment", err))
		return
	}
	if err := c.update(ctx, claim, auditdomain.ActionPaymentNotified, c.machine.PaymentNotified); err != nil {
		c.failed(done, "", err)
		return
	}
	c.log.Info("claim.payment.notified", zap.String("claim_id", claim.ID.String()), zap.String("service", gap.Name()))
	complete(done, nil)
}
