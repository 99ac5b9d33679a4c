package submission

import (
	"context"

	"github.com/bwmarrin/snowflake"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/gap/poller"
	insurancedomain "github.com/smallbiznis/claimflow/internal/insurance/domain"
	"go.uber.org/zap"
)

// Interaction is the user in the loop. Every method blocks until the user answers.
type Interaction interface {
	// Confirm asks a yes/no question.
	Confirm(ctx context.Context, title, message string) bool
	AcceptDeclaration(ctx context.Context, claim *claimdomain.Claim, declaration *insurancedomain.Declaration) bool
	// PromptReason asks for a free-text reason. ok is false when the user backs out.
	PromptReason(ctx context.Context, title, message string) (reason string, ok bool)
	Inform(ctx context.Context, title, message string)
	// PromptPayment asks how much to take. payFull preselects the full remaining amount.
	PromptPayment(ctx context.Context, claim *claimdomain.Claim, payFull bool) (PaymentChoice, bool)
	// SelectForPrint lets the user pick what to print. message warns about missing content.
	SelectForPrint(ctx context.Context, claim *claimdomain.Claim, items []PrintItem, message string) ([]PrintItem, bool)
	// WaitForBenefit shows a benefit wait. The user may pay in full or cancel through wait.
	WaitForBenefit(ctx context.Context, claim *claimdomain.Claim, wait BenefitWait)
}

// BenefitWait is the user's handle on a running benefit wait.
type BenefitWait interface {
	Progress() poller.Progress
	CanPayFull() bool
	PayFull() error
	Cancel()
}

// PaymentChoice is what the user decided to pay.
type PaymentChoice struct {
	Amount     int64
	LocationID snowflake.ID
	UserID     *snowflake.ID
	Notes      string
}

type PrintItemKind string

const (
	PrintClaim      PrintItemKind = "claim"
	PrintAttachment PrintItemKind = "attachment"
)

// PrintItem is the claim form or one of its attachments.
type PrintItem struct {
	Kind       PrintItemKind
	Name       string
	Attachment *claimdomain.Attachment
}

// Printer outputs the selected items.
type Printer interface {
	Print(ctx context.Context, claim *claimdomain.Claim, items []PrintItem) error
}

// unattended answers every prompt the way an API caller would: proceed, accept, pay what is owed and
// print everything.
type unattended struct {
	log *zap.Logger
}

// Unattended returns an Interaction for headless use.
func Unattended(log *zap.Logger) Interaction {
	return &unattended{log: log.Named("submission.unattended")}
}

func (u *unattended) Confirm(_ context.Context, title, message string) bool {
	u.log.Info(title, zap.String("message", message))
	return true
}

func (u *unattended) AcceptDeclaration(context.Context, *claimdomain.Claim, *insurancedomain.Declaration) bool {
	return true
}

func (u *unattended) PromptReason(_ context.Context, title, _ string) (string, bool) {
	return title, true
}

func (u *unattended) Inform(_ context.Context, title, message string) {
	u.log.Info(title, zap.String("message", message))
}

func (u *unattended) PromptPayment(_ context.Context, claim *claimdomain.Claim, payFull bool) (PaymentChoice, bool) {
	amount := claim.Outstanding()
	if !payFull && claim.GapStatus == claimdomain.GapStatusReceived && claim.GapAllowed(claim.PaidAmount) {
		amount = claim.GapAmount() - claim.PaidAmount
	}
	return PaymentChoice{Amount: amount, LocationID: claim.LocationID, UserID: claim.UserID}, true
}

func (u *unattended) SelectForPrint(_ context.Context, _ *claimdomain.Claim, items []PrintItem, message string) ([]PrintItem, bool) {
	if message != "" {
		u.log.Warn("printing with missing attachments", zap.String("message", message))
	}
	return items, true
}

func (u *unattended) WaitForBenefit(context.Context, *claimdomain.Claim, BenefitWait) {}
