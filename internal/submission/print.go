package submission

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/claimflow/internal/audit/domain"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/document"
	"github.com/smallbiznis/claimflow/internal/policy"
	"github.com/smallbiznis/claimflow/internal/render"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Print offers the claim form and every attachment with content for printing. Attachments without
// content are left out and the user is told how many.
func (c *Coordinator) Print(ctx context.Context, claimID snowflake.ID, done func(error)) {
	claim, err := c.claims.Load(ctx, c.db, claimID)
	if err != nil {
		c.failed(done, "", err)
		return
	}
	c.print(ctx, claim, done)
}

func (c *Coordinator) print(ctx context.Context, claim *claimdomain.Claim, done func(error)) {
	items, missing := PrintItems(claim)
	message := ""
	if missing > 0 {
		message = fmt.Sprintf("%d attachment(s) have no content and cannot be printed.", missing)
	}
	selected, ok := c.interaction.SelectForPrint(ctx, claim, items, message)
	if !ok || len(selected) == 0 {
		complete(done, nil)
		return
	}
	if err := c.printer.Print(ctx, claim, selected); err != nil {
		c.failed(done, "", fmt.Errorf("print claim %s: %w", claim.ID, err))
		return
	}
	err := c.audit.Record(ctx, c.db, auditdomain.Entry{
		ClaimID:  claim.ID,
		Actor:    auditdomain.ActorTypeUser,
		ActorID:  actorID(claim.UserID),
		Action:   auditdomain.ActionClaimPrinted,
		Metadata: map[string]any{"items": len(selected), "missing": missing},
	})
	complete(done, err)
}

// PrintItems lists the claim form followed by the attachments that have content, and counts the
// ones that do not.
func PrintItems(claim *claimdomain.Claim) ([]PrintItem, int) {
	items := []PrintItem{{Kind: PrintClaim, Name: "Claim " + claim.ID.String()}}
	missing := 0
	for i := range claim.Attachments {
		a := &claim.Attachments[i]
		if !a.HasContent() {
			missing++
			continue
		}
		items = append(items, PrintItem{Kind: PrintAttachment, Name: a.Name, Attachment: a})
	}
	return items, missing
}

type PrinterParams struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Store    *document.Store
	Renderer render.Service
	Policies *policy.Rules
}

// StorePrinter files the claim form in the document store, where the print service picks it up,
// and checks each selected attachment can be read.
type StorePrinter struct {
	db       *gorm.DB
	log      *zap.Logger
	store    *document.Store
	renderer render.Service
	policies *policy.Rules
}

func NewStorePrinter(p PrinterParams) *StorePrinter {
	return &StorePrinter{
		db:       p.DB,
		log:      p.Log.Named("submission.printer"),
		store:    p.Store,
		renderer: p.Renderer,
		policies: p.Policies,
	}
}

func (p *StorePrinter) Print(ctx context.Context, claim *claimdomain.Claim, items []PrintItem) error {
	log := p.log.With(zap.String("claim_id", claim.ID.String()))
	for _, item := range items {
		switch item.Kind {
		case PrintClaim:
			params := map[string]any{}
			if claim.PolicyID != nil {
				pol, err := p.policies.Policy(ctx, p.db, *claim.PolicyID)
				if err != nil {
					return err
				}
				params[render.ParamPolicy] = pol
			}
			out, err := p.renderer.Render(ctx, render.Request{Template: render.TemplateClaim, Source: claim, Params: params})
			if err != nil {
				return err
			}
			doc, err := p.store.Create(ctx, p.db, "claim-"+claim.ID.String(), out.MimeType, out.Content)
			if err != nil {
				return err
			}
			log.Info("claim form queued for printing", zap.String("document_id", doc.ID.String()))
		case PrintAttachment:
			if item.Attachment == nil || !item.Attachment.HasContent() {
				return fmt.Errorf("%w: %s", claimdomain.ErrAttachmentMissing, item.Name)
			}
			doc, _, err := p.store.Read(ctx, p.db, *item.Attachment.DocumentID)
			if err != nil {
				return fmt.Errorf("read attachment %s: %w", item.Name, err)
			}
			log.Info("attachment queued for printing", zap.String("document_id", doc.ID.String()), zap.String("name", item.Name))
		}
	}
	return nil
}
