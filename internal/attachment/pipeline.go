package attachment

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/claim/lifecycle"
	"github.com/smallbiznis/claimflow/internal/clock"
	"github.com/smallbiznis/claimflow/internal/config"
	"github.com/smallbiznis/claimflow/internal/document"
	documentdomain "github.com/smallbiznis/claimflow/internal/document/domain"
	"github.com/smallbiznis/claimflow/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	GenID    *snowflake.Node
	Claims   claimdomain.Repository
	Store    *document.Store
	Registry Registry
	Config   *config.ClaimsConfigHolder `optional:"true"`
	Metrics  *metrics.ClaimMetrics      `optional:"true"`
}

// Pipeline synchronises and generates claim attachments.
type Pipeline struct {
	log      *zap.Logger
	clock    clock.Clock
	genID    *snowflake.Node
	claims   claimdomain.Repository
	store    *document.Store
	registry Registry
	config   *config.ClaimsConfigHolder
	metrics  *metrics.ClaimMetrics
}

func NewPipeline(p Params) *Pipeline {
	cfg := p.Config
	if cfg == nil {
		cfg = config.NewStaticClaimsConfigHolder(config.DefaultClaimsConfig())
	}
	return &Pipeline{
		log:      p.Log.Named("attachment.pipeline"),
		clock:    p.Clock,
		genID:    p.GenID,
		claims:   p.Claims,
		store:    p.Store,
		registry: p.Registry,
		config:   cfg,
		metrics:  p.Metrics,
	}
}

// Generate brings the attachment set in line with the claim's invoices and generates every
// attachment without content, in collection order. The first unrecoverable error stops the pass;
// whatever was done is still saved. A true result may still leave attachments in ERROR.
func (p *Pipeline) Generate(ctx context.Context, db *gorm.DB, claim *claimdomain.Claim, invoices InvoiceSource) (bool, error) {
	cfg := p.config.Get()
	log := p.log.With(zap.String("claim_id", claim.ID.String()))

	if err := p.synchronise(ctx, db, claim, invoices); err != nil {
		return false, err
	}

	var abortErr error
	for i := range claim.Attachments {
		a := &claim.Attachments[i]
		if a.HasContent() {
			continue
		}
		strategy, ok := p.registry.Lookup(a.Type)
		if !ok {
			p.fail(a, fmt.Sprintf("unsupported attachment type %s", a.Type), cfg.ErrorMaxLength)
			continue
		}

		doc, err := strategy.Generate(ctx, &Job{
			DB:         db,
			Claim:      claim,
			Attachment: a,
			Invoices:   invoices,
			Format:     cfg.RenderFormat,
		})
		switch {
		case err == nil:
			p.complete(a, doc)
			p.metrics.IncAttachment(a.Type, metrics.OutcomeSuccess)
		case IsProblem(err):
			p.fail(a, err.Error(), cfg.ErrorMaxLength)
			log.Warn("attachment generation recorded error",
				zap.String("attachment", a.Name),
				zap.String("type", string(a.Type)),
				zap.String("error", a.Error),
			)
		default:
			p.metrics.IncAttachment(a.Type, metrics.OutcomeFailed)
			log.Error("attachment generation aborted",
				zap.String("attachment", a.Name),
				zap.String("type", string(a.Type)),
				zap.Error(err),
			)
			abortErr = fmt.Errorf("generate %s: %w", a.Name, err)
		}
		if abortErr != nil {
			break
		}
	}

	if err := p.claims.Save(ctx, db, claim); err != nil {
		return false, errors.Join(abortErr, err)
	}
	if abortErr != nil {
		return false, abortErr
	}
	return true, nil
}

// Attach adds an attachment for a patient document, once per source.
func (p *Pipeline) Attach(claim *claimdomain.Claim, source *documentdomain.PatientDocument) *claimdomain.Attachment {
	if a, ok := claim.AttachmentByOriginal(claimdomain.OriginalTypePatientDocument, source.ID); ok {
		return a
	}
	attachmentType := claimdomain.AttachmentTypeDocument
	if source.Kind == documentdomain.KindInvestigation {
		attachmentType = claimdomain.AttachmentTypeInvestigation
	}
	id := source.ID
	claim.Attachments = append(claim.Attachments, claimdomain.Attachment{
		ID:           p.genID.Generate(),
		ClaimID:      claim.ID,
		Name:         source.Name,
		Type:         attachmentType,
		Status:       claimdomain.AttachmentStatusPending,
		OriginalType: claimdomain.OriginalTypePatientDocument,
		OriginalID:   &id,
		StartTime:    source.StartTime,
	})
	return &claim.Attachments[len(claim.Attachments)-1]
}

// Detach removes an attachment and its generated document.
func (p *Pipeline) Detach(ctx context.Context, db *gorm.DB, claim *claimdomain.Claim, attachmentID snowflake.ID) error {
	for i := range claim.Attachments {
		if claim.Attachments[i].ID != attachmentID {
			continue
		}
		if err := p.deleteDocument(ctx, db, &claim.Attachments[i]); err != nil {
			return err
		}
		claim.Attachments = append(claim.Attachments[:i], claim.Attachments[i+1:]...)
		return nil
	}
	return nil
}

// DeleteGeneratedDocuments drops every generated document so the next pass regenerates them.
// Used when something the documents depend on, such as the claim location, changes.
// The claim is not saved.
func (p *Pipeline) DeleteGeneratedDocuments(ctx context.Context, db *gorm.DB, claim *claimdomain.Claim) error {
	return p.DeleteDocuments(ctx, db, DetachGeneratedDocuments(claim))
}

// DetachGeneratedDocuments resets every attachment to PENDING without touching the store and
// returns the documents they referenced. Delete them once the claim is saved.
func DetachGeneratedDocuments(claim *claimdomain.Claim) []snowflake.ID {
	var ids []snowflake.ID
	for i := range claim.Attachments {
		a := &claim.Attachments[i]
		if a.DocumentID != nil {
			ids = append(ids, *a.DocumentID)
		}
		a.DocumentID = nil
		a.FileName = ""
		a.MimeType = ""
		a.Status = claimdomain.AttachmentStatusPending
		a.Error = ""
	}
	return ids
}

// DeleteDocuments removes detached documents from the store.
func (p *Pipeline) DeleteDocuments(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error {
	for _, id := range ids {
		if err := p.store.Delete(ctx, db, id); err != nil {
			return fmt.Errorf("delete document %s: %w", id, err)
		}
	}
	return nil
}

// DeleteAll removes the claim's generated documents and its attachment records, for claim deletion.
func (p *Pipeline) DeleteAll(ctx context.Context, db *gorm.DB, claim *claimdomain.Claim) error {
	for i := range claim.Attachments {
		if err := p.deleteDocument(ctx, db, &claim.Attachments[i]); err != nil {
			return err
		}
	}
	claim.Attachments = nil
	return nil
}

// synchronise ensures one history attachment and exactly one invoice copy per referenced invoice.
func (p *Pipeline) synchronise(ctx context.Context, db *gorm.DB, claim *claimdomain.Claim, invoices InvoiceSource) error {
	hasHistory := false
	for i := range claim.Attachments {
		if claim.Attachments[i].Type == claimdomain.AttachmentTypeHistory {
			hasHistory = true
			break
		}
	}
	if !hasHistory {
		claim.Attachments = append(claim.Attachments, claimdomain.Attachment{
			ID:           p.genID.Generate(),
			ClaimID:      claim.ID,
			Name:         claimdomain.HistoryAttachmentName,
			Type:         claimdomain.AttachmentTypeHistory,
			Status:       claimdomain.AttachmentStatusPending,
			OriginalType: claimdomain.OriginalTypeClinicalEvent,
			StartTime:    p.clock.Now(),
		})
	}

	refs := invoices.InvoiceRefs()
	wanted := make(map[snowflake.ID]struct{}, len(refs))
	for _, id := range refs {
		wanted[id] = struct{}{}
	}

	kept := claim.Attachments[:0]
	var removed []claimdomain.Attachment
	for _, a := range claim.Attachments {
		if a.Type == claimdomain.AttachmentTypeInvoice {
			if a.OriginalID == nil {
				removed = append(removed, a)
				continue
			}
			if _, ok := wanted[*a.OriginalID]; !ok {
				removed = append(removed, a)
				continue
			}
		}
		kept = append(kept, a)
	}
	claim.Attachments = kept
	for i := range removed {
		if err := p.deleteDocument(ctx, db, &removed[i]); err != nil {
			return err
		}
	}

	for _, id := range refs {
		if _, ok := claim.AttachmentByOriginal(claimdomain.OriginalTypeInvoice, id); ok {
			continue
		}
		invoice, err := invoices.Invoice(ctx, id)
		if err != nil {
			return err
		}
		name := "Invoice " + id.String()
		startTime := p.clock.Now()
		if invoice != nil {
			name = "Invoice " + invoice.Number
			startTime = invoice.CreatedAt
		}
		invoiceID := id
		claim.Attachments = append(claim.Attachments, claimdomain.Attachment{
			ID:           p.genID.Generate(),
			ClaimID:      claim.ID,
			Name:         name,
			Type:         claimdomain.AttachmentTypeInvoice,
			Status:       claimdomain.AttachmentStatusPending,
			OriginalType: claimdomain.OriginalTypeInvoice,
			OriginalID:   &invoiceID,
			StartTime:    startTime,
		})
	}
	return nil
}

func (p *Pipeline) complete(a *claimdomain.Attachment, doc *documentdomain.Document) {
	id := doc.ID
	a.DocumentID = &id
	a.FileName = doc.Name
	a.MimeType = doc.MimeType
	a.Status = claimdomain.AttachmentStatusPending
	a.Error = ""
}

func (p *Pipeline) fail(a *claimdomain.Attachment, message string, maxLength int) {
	a.Status = claimdomain.AttachmentStatusError
	a.Error = lifecycle.Abbreviate(message, maxLength)
	p.metrics.IncAttachment(a.Type, metrics.OutcomeError)
}

func (p *Pipeline) deleteDocument(ctx context.Context, db *gorm.DB, a *claimdomain.Attachment) error {
	if a.DocumentID == nil {
		return nil
	}
	if err := p.store.Delete(ctx, db, *a.DocumentID); err != nil {
		return fmt.Errorf("delete document for %s: %w", a.Name, err)
	}
	a.DocumentID = nil
	a.FileName = ""
	a.MimeType = ""
	return nil
}
