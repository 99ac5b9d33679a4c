// Package attachment keeps a claim's attachments in step with its charges and generates their content.
package attachment

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	documentdomain "github.com/smallbiznis/claimflow/internal/document/domain"
	invoicedomain "github.com/smallbiznis/claimflow/internal/invoice/domain"
	"gorm.io/gorm"
)

// InvoiceSource is the slice of the charge ledger the pipeline reads.
type InvoiceSource interface {
	InvoiceRefs() []snowflake.ID
	Invoice(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error)
}

// Job is one attachment to generate.
type Job struct {
	DB         *gorm.DB
	Claim      *claimdomain.Claim
	Attachment *claimdomain.Attachment
	Invoices   InvoiceSource
	Format     string
}

// Strategy produces the document for one attachment type.
// A *Problem error is recorded on the attachment; any other error aborts the pass.
type Strategy interface {
	Generate(ctx context.Context, job *Job) (*documentdomain.Document, error)
}

type StrategyFunc func(ctx context.Context, job *Job) (*documentdomain.Document, error)

func (f StrategyFunc) Generate(ctx context.Context, job *Job) (*documentdomain.Document, error) {
	return f(ctx, job)
}

// Problem is an attachment-level failure, such as a missing source document.
type Problem struct {
	Message string
}

func (p *Problem) Error() string { return p.Message }

func problemf(format string, args ...any) error {
	return &Problem{Message: fmt.Sprintf(format, args...)}
}

// IsProblem reports whether err should be recorded on the attachment rather than abort generation.
func IsProblem(err error) bool {
	var p *Problem
	return errors.As(err, &p)
}

// Registry maps attachment types to their strategy. It is built once at startup.
type Registry map[claimdomain.AttachmentType]Strategy

func (r Registry) Lookup(t claimdomain.AttachmentType) (Strategy, bool) {
	s, ok := r[t]
	return s, ok
}
