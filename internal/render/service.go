// Package render produces the PDF documents attached to claims.
package render

import (
	"context"
	"errors"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/core/entity"
	"github.com/johnfercher/maroto/v2/pkg/props"
	claimcfg "github.com/smallbiznis/claimflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Template names.
const (
	TemplateMedicalRecords = "INSURANCE_CLAIM_MEDICAL_RECORDS"
	TemplateClaimInvoice   = "INSURANCE_CLAIM_INVOICE"
	TemplateLetter         = "PATIENT_LETTER"
	TemplateClaim          = "INSURANCE_CLAIM"
)

// ParamClaim carries the claim being assembled into invoice reports.
const ParamClaim = "claim"

// ParamPolicy carries the policy printed on the claim form.
const ParamPolicy = "policy"

var (
	ErrUnknownTemplate    = errors.New("unknown_template")
	ErrUnsupportedFormat  = errors.New("unsupported_format")
	ErrInvalidSource      = errors.New("invalid_render_source")
	ErrConversionNotFound = errors.New("conversion_not_supported")
)

type Request struct {
	Template string
	Source   any
	Params   map[string]any
	// Format is the requested MIME type. Empty means PDF.
	Format string
}

type Output struct {
	Content  []byte
	MimeType string
}

type Service interface {
	Render(ctx context.Context, req Request) (*Output, error)
	HasTemplate(name string) bool
}

// template lays out rows for one source type.
type template func(m core.Maroto, req Request) error

type Params struct {
	fx.In

	Log *zap.Logger
}

type service struct {
	log       *zap.Logger
	templates map[string]template
}

func NewService(p Params) Service {
	return &service{
		log: p.Log.Named("render.service"),
		templates: map[string]template{
			TemplateMedicalRecords: medicalRecords,
			TemplateClaimInvoice:   claimInvoice,
			TemplateLetter:         letter,
			TemplateClaim:          claimForm,
		},
	}
}

func (s *service) HasTemplate(name string) bool {
	_, ok := s.templates[name]
	return ok
}

func (s *service) Render(ctx context.Context, req Request) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format := req.Format
	if format == "" {
		format = claimcfg.MimeTypePDF
	}
	if format != claimcfg.MimeTypePDF {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	tpl, ok := s.templates[req.Template]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, req.Template)
	}

	m := maroto.New(pageConfig())
	if err := tpl(m, req); err != nil {
		return nil, err
	}
	doc, err := m.Generate()
	if err != nil {
		s.log.Error("pdf generation failed", zap.String("template", req.Template), zap.Error(err))
		return nil, fmt.Errorf("render %s: %w", req.Template, err)
	}
	return &Output{Content: doc.GetBytes(), MimeType: claimcfg.MimeTypePDF}, nil
}

func pageConfig() *entity.Config {
	return config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
}
