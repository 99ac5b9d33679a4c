package render

import (
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	documentdomain "github.com/smallbiznis/claimflow/internal/document/domain"
	historydomain "github.com/smallbiznis/claimflow/internal/history/domain"
	invoicedomain "github.com/smallbiznis/claimflow/internal/invoice/domain"
)

const dateLayout = "02 Jan 2006"

var (
	titleText  = props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Left}
	headerText = props.Text{Size: 9, Style: fontstyle.Bold}
	bodyText   = props.Text{Size: 9}
	amountText = props.Text{Size: 9, Align: align.Right}
)

func medicalRecords(m core.Maroto, req Request) error {
	summary, ok := req.Source.(*historydomain.Summary)
	if !ok || summary == nil {
		return fmt.Errorf("%w: %s wants a history summary, got %T", ErrInvalidSource, req.Template, req.Source)
	}

	m.AddRow(12, text.NewCol(12, "Medical Records", titleText))
	m.AddRow(8, text.NewCol(12, "Patient "+summary.PatientID.String(), bodyText))
	if len(summary.Events) == 0 {
		m.AddRow(8, text.NewCol(12, "No clinical history recorded.", bodyText))
		return nil
	}
	for _, event := range summary.Events {
		m.AddRow(8,
			text.NewCol(3, event.StartTime.Format(dateLayout), headerText),
			text.NewCol(9, event.Title, headerText),
		)
		if event.Reason != "" {
			m.AddRow(6, col.New(3), text.NewCol(9, "Reason: "+event.Reason, bodyText))
		}
		for _, note := range event.Notes {
			m.AddRow(6, col.New(3), text.NewCol(9, note.Text, bodyText))
		}
	}
	return nil
}

func claimInvoice(m core.Maroto, req Request) error {
	invoice, ok := req.Source.(*invoicedomain.Invoice)
	if !ok || invoice == nil {
		return fmt.Errorf("%w: %s wants an invoice, got %T", ErrInvalidSource, req.Template, req.Source)
	}

	m.AddRow(12, text.NewCol(12, "Invoice "+invoice.Number, titleText))
	meta := []core.Component{text.New("Invoice date: "+invoiceDate(invoice), props.Text{Size: 9})}
	if claim, ok := req.Params[ParamClaim].(*claimdomain.Claim); ok && claim != nil {
		ref := "Claim: " + claim.ID.String()
		if claim.InsurerClaimID != "" {
			ref += " (" + claim.InsurerClaimID + ")"
		}
		meta = append(meta, text.New(ref, props.Text{Size: 9, Top: 5}))
	}
	m.AddRow(14, col.New(12).Add(meta...))

	m.AddRow(8,
		text.NewCol(6, "Description", headerText),
		text.NewCol(2, "Qty", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(2, "Tax", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
	)
	for _, item := range invoice.Items {
		m.AddRow(7,
			text.NewCol(6, item.Description, bodyText),
			text.NewCol(2, fmt.Sprintf("%d", item.Quantity), amountText),
			text.NewCol(2, FormatCents(item.Tax), amountText),
			text.NewCol(2, FormatCents(item.Total), amountText),
		)
	}
	m.AddRow(8, col.New(8), text.NewCol(2, "Tax", bodyText), text.NewCol(2, FormatCents(invoice.TaxAmount), amountText))
	m.AddRow(8, col.New(8), text.NewCol(2, "Total", headerText), text.NewCol(2, FormatCents(invoice.TotalAmount), amountText))
	m.AddRow(8, col.New(8), text.NewCol(2, "Paid", bodyText), text.NewCol(2, FormatCents(invoice.AllocatedAmount), amountText))
	return nil
}

func claimForm(m core.Maroto, req Request) error {
	claim, ok := req.Source.(*claimdomain.Claim)
	if !ok || claim == nil {
		return fmt.Errorf("%w: %s wants a claim, got %T", ErrInvalidSource, req.Template, req.Source)
	}

	m.AddRow(12, text.NewCol(12, "Insurance Claim "+claim.ID.String(), titleText))
	meta := []core.Component{text.New("Status: "+string(claim.Status), props.Text{Size: 9})}
	if pol, ok := req.Params[ParamPolicy].(*claimdomain.Policy); ok && pol != nil {
		insurer := ""
		if pol.Insurer != nil {
			insurer = pol.Insurer.Name + ", "
		}
		meta = append(meta, text.New(insurer+"policy "+pol.PolicyNumber, props.Text{Size: 9, Top: 5}))
	}
	if claim.IsGapClaim {
		meta = append(meta, text.New("Gap claim", props.Text{Size: 9, Top: 10}))
	}
	m.AddRow(18, col.New(12).Add(meta...))

	m.AddRow(8,
		text.NewCol(3, "Date", headerText),
		text.NewCol(5, "Diagnosis", headerText),
		text.NewCol(2, "Tax", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
	)
	for _, item := range claim.Items {
		m.AddRow(7,
			text.NewCol(3, item.StartTime.Format(dateLayout), bodyText),
			text.NewCol(5, item.Diagnosis, bodyText),
			text.NewCol(2, FormatCents(item.Tax), amountText),
			text.NewCol(2, FormatCents(item.Total), amountText),
		)
	}
	m.AddRow(8, col.New(8), text.NewCol(2, "Tax", bodyText), text.NewCol(2, FormatCents(claim.Tax), amountText))
	m.AddRow(8, col.New(8), text.NewCol(2, "Total", headerText), text.NewCol(2, FormatCents(claim.Amount), amountText))
	if len(claim.Attachments) > 0 {
		m.AddRow(8, text.NewCol(12, "Attachments", headerText))
		for _, a := range claim.Attachments {
			m.AddRow(6, text.NewCol(12, a.Name, bodyText))
		}
	}
	return nil
}

func letter(m core.Maroto, req Request) error {
	doc, ok := req.Source.(*documentdomain.PatientDocument)
	if !ok || doc == nil {
		return fmt.Errorf("%w: %s wants a patient document, got %T", ErrInvalidSource, req.Template, req.Source)
	}
	m.AddRow(12, text.NewCol(12, doc.Name, titleText))
	m.AddRow(8, text.NewCol(12, doc.StartTime.Format(dateLayout), bodyText))
	writeParagraphs(m, doc.Body)
	return nil
}

func writeParagraphs(m core.Maroto, body string) {
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			m.AddRow(4, col.New(12))
			continue
		}
		m.AddRow(6, text.NewCol(12, line, bodyText))
	}
}

func invoiceDate(invoice *invoicedomain.Invoice) string {
	if invoice.PostedAt != nil {
		return invoice.PostedAt.Format(dateLayout)
	}
	return invoice.CreatedAt.Format(dateLayout)
}

// FormatCents prints minor units as a decimal amount.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
