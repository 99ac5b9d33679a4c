package submission_test

import (
	"context"
	"errors"
	"testing"

	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/claimtest"
	documentdomain "github.com/smallbiznis/claimflow/internal/document/domain"
	"github.com/smallbiznis/claimflow/internal/render"
	"github.com/smallbiznis/claimflow/internal/submission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) Render(ctx context.Context, req render.Request) (*render.Output, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*render.Output), args.Error(1)
}

func (m *mockRenderer) HasTemplate(name string) bool {
	return m.Called(name).Bool(0)
}

func newStorePrinter(t *testing.T) (*claimtest.Engine, *mockRenderer, *submission.StorePrinter, *claimdomain.Claim) {
	t.Helper()
	e := claimtest.NewEngine(t, nil)
	renderer := &mockRenderer{}
	printer := submission.NewStorePrinter(submission.PrinterParams{
		DB:       e.DB,
		Log:      zap.NewNop(),
		Store:    e.Store,
		Renderer: renderer,
		Policies: e.Policies,
	})
	insurer := e.Insurer(t, "Paper Mutual", "")
	patientID := e.Node.Generate()
	_, items := e.Invoice(t, patientID, "INV-9", true, 9000)
	claim := e.Draft(t, insurer, false, patientID, items...).Claim()
	return e, renderer, printer, claim
}

func isClaimForm(claim *claimdomain.Claim) func(render.Request) bool {
	return func(req render.Request) bool {
		pol, ok := req.Params[render.ParamPolicy].(*claimdomain.Policy)
		return req.Template == render.TemplateClaim && req.Source == claim && ok && pol.PolicyNumber == "PS-100200300"
	}
}

func TestStorePrinterFilesClaimForm(t *testing.T) {
	ctx := context.Background()
	e, renderer, printer, claim := newStorePrinter(t)

	renderer.On("Render", mock.Anything, mock.MatchedBy(isClaimForm(claim))).
		Return(&render.Output{Content: []byte("%PDF-1.4"), MimeType: "application/pdf"}, nil).Once()

	require.NoError(t, printer.Print(ctx, claim, []submission.PrintItem{{Kind: submission.PrintClaim, Name: "Claim"}}))
	renderer.AssertExpectations(t)

	var docs []documentdomain.Document
	require.NoError(t, e.DB.Find(&docs).Error)
	require.Len(t, docs, 1)
	assert.Equal(t, "claim-"+claim.ID.String()+".pdf", docs[0].Name)
	assert.Equal(t, 1, e.Blobs.Len())
}

func TestStorePrinterReadsAttachments(t *testing.T) {
	ctx := context.Background()
	e, renderer, printer, claim := newStorePrinter(t)

	doc, err := e.Store.Create(ctx, e.DB, "history", "application/pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	withContent := &claimdomain.Attachment{ID: e.Node.Generate(), Name: "Medical Records", DocumentID: &doc.ID}
	withoutContent := &claimdomain.Attachment{ID: e.Node.Generate(), Name: "Radiograph"}

	require.NoError(t, printer.Print(ctx, claim, []submission.PrintItem{
		{Kind: submission.PrintAttachment, Name: withContent.Name, Attachment: withContent},
	}))

	err = printer.Print(ctx, claim, []submission.PrintItem{
		{Kind: submission.PrintAttachment, Name: withoutContent.Name, Attachment: withoutContent},
	})
	assert.ErrorIs(t, err, claimdomain.ErrAttachmentMissing)
	renderer.AssertNotCalled(t, "Render", mock.Anything, mock.Anything)
}

func TestStorePrinterStopsOnRenderFailure(t *testing.T) {
	ctx := context.Background()
	e, renderer, printer, claim := newStorePrinter(t)

	renderer.On("Render", mock.Anything, mock.Anything).Return(nil, errors.New("template broken")).Once()

	err := printer.Print(ctx, claim, []submission.PrintItem{{Kind: submission.PrintClaim, Name: "Claim"}})
	assert.EqualError(t, err, "template broken")
	assert.Zero(t, e.Blobs.Len())
}
