package attachment

import (
	"context"

	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/document"
	documentdomain "github.com/smallbiznis/claimflow/internal/document/domain"
	"github.com/smallbiznis/claimflow/internal/history"
	invoicedomain "github.com/smallbiznis/claimflow/internal/invoice/domain"
	"github.com/smallbiznis/claimflow/internal/render"
	"go.uber.org/fx"
)

type StrategyParams struct {
	fx.In

	Store     *document.Store
	Renderer  render.Service
	Converter render.Converter
	History   *history.Source
	Invoices  invoicedomain.Repository
}

// NewRegistry wires the built-in strategy for every attachment type.
func NewRegistry(p StrategyParams) Registry {
	return Registry{
		claimdomain.AttachmentTypeHistory:       historyStrategy(p),
		claimdomain.AttachmentTypeInvoice:       invoiceStrategy(p),
		claimdomain.AttachmentTypeInvestigation: investigationStrategy(p),
		claimdomain.AttachmentTypeDocument:      documentStrategy(p),
	}
}

func historyStrategy(p StrategyParams) Strategy {
	return StrategyFunc(func(ctx context.Context, job *Job) (*documentdomain.Document, error) {
		summary, err := p.History.Summary(ctx, job.DB, job.Claim.PatientID)
		if err != nil {
			return nil, err
		}
		out, err := p.Renderer.Render(ctx, render.Request{
			Template: render.TemplateMedicalRecords,
			Source:   summary,
			Format:   job.Format,
		})
		if err != nil {
			return nil, err
		}
		return p.Store.Create(ctx, job.DB, job.Attachment.Name, out.MimeType, out.Content)
	})
}

func invoiceStrategy(p StrategyParams) Strategy {
	return StrategyFunc(func(ctx context.Context, job *Job) (*documentdomain.Document, error) {
		a := job.Attachment
		if a.OriginalID == nil {
			return nil, problemf("attachment %s has no source invoice", a.Name)
		}
		invoice, err := job.Invoices.Invoice(ctx, *a.OriginalID)
		if err != nil {
			return nil, err
		}
		if invoice == nil {
			return nil, problemf("invoice %s not found", a.OriginalID)
		}
		items, err := p.Invoices.ListItems(ctx, job.DB, invoice.ID)
		if err != nil {
			return nil, err
		}
		withItems := *invoice
		withItems.Items = items

		out, err := p.Renderer.Render(ctx, render.Request{
			Template: render.TemplateClaimInvoice,
			Source:   &withItems,
			Params:   map[string]any{render.ParamClaim: job.Claim},
			Format:   job.Format,
		})
		if err != nil {
			return nil, err
		}
		return p.Store.Create(ctx, job.DB, a.Name, out.MimeType, out.Content)
	})
}

func investigationStrategy(p StrategyParams) Strategy {
	return StrategyFunc(func(ctx context.Context, job *Job) (*documentdomain.Document, error) {
		source, err := sourceDocument(ctx, p, job)
		if err != nil {
			return nil, err
		}
		if source.DocumentID == nil {
			return nil, problemf("no investigation document")
		}
		return p.Store.Copy(ctx, job.DB, *source.DocumentID)
	})
}

func documentStrategy(p StrategyParams) Strategy {
	return StrategyFunc(func(ctx context.Context, job *Job) (*documentdomain.Document, error) {
		source, err := sourceDocument(ctx, p, job)
		if err != nil {
			return nil, err
		}
		if source.DocumentID == nil {
			template := source.TemplateName
			if template == "" {
				template = render.TemplateLetter
			}
			if !p.Renderer.HasTemplate(template) {
				return nil, problemf("no template %s for %s", template, source.Name)
			}
			out, err := p.Renderer.Render(ctx, render.Request{Template: template, Source: source, Format: job.Format})
			if err != nil {
				return nil, err
			}
			return p.Store.Create(ctx, job.DB, source.Name, out.MimeType, out.Content)
		}

		stored, err := p.Store.Find(ctx, job.DB, *source.DocumentID)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, problemf("document for %s not found", source.Name)
		}
		if stored.MimeType == job.Format || !p.Converter.CanConvert(stored.MimeType, job.Format) {
			return p.Store.Copy(ctx, job.DB, stored.ID)
		}
		_, content, err := p.Store.Read(ctx, job.DB, stored.ID)
		if err != nil {
			return nil, err
		}
		converted, err := p.Converter.Convert(ctx, source.Name, stored.MimeType, content, job.Format)
		if err != nil {
			return nil, problemf("failed to convert %s: %v", source.Name, err)
		}
		return p.Store.Create(ctx, job.DB, source.Name, job.Format, converted)
	})
}

func sourceDocument(ctx context.Context, p StrategyParams, job *Job) (*documentdomain.PatientDocument, error) {
	a := job.Attachment
	if a.OriginalID == nil {
		return nil, problemf("attachment %s has no source document", a.Name)
	}
	source, err := p.Store.PatientDocument(ctx, job.DB, *a.OriginalID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, problemf("source document for %s not found", a.Name)
	}
	return source, nil
}
