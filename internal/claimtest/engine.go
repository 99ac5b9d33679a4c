package claimtest

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/claimflow/internal/attachment"
	"github.com/smallbiznis/claimflow/internal/audit"
	auditdomain "github.com/smallbiznis/claimflow/internal/audit/domain"
	auditrepo "github.com/smallbiznis/claimflow/internal/audit/repository"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/claim/editor"
	"github.com/smallbiznis/claimflow/internal/claim/lifecycle"
	"github.com/smallbiznis/claimflow/internal/claim/repository"
	"github.com/smallbiznis/claimflow/internal/clock"
	"github.com/smallbiznis/claimflow/internal/document"
	"github.com/smallbiznis/claimflow/internal/document/blob"
	documentdomain "github.com/smallbiznis/claimflow/internal/document/domain"
	documentrepo "github.com/smallbiznis/claimflow/internal/document/repository"
	"github.com/smallbiznis/claimflow/internal/history"
	historydomain "github.com/smallbiznis/claimflow/internal/history/domain"
	historyrepo "github.com/smallbiznis/claimflow/internal/history/repository"
	"github.com/smallbiznis/claimflow/internal/insurance"
	invoicedomain "github.com/smallbiznis/claimflow/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/claimflow/internal/invoice/repository"
	"github.com/smallbiznis/claimflow/internal/policy"
	"github.com/smallbiznis/claimflow/internal/render"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Start is the fake clock's initial time in engine tests.
var Start = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

// Engine wires the claim engine over an in-memory database for package tests.
type Engine struct {
	DB       *gorm.DB
	Node     *snowflake.Node
	Clock    *clock.FakeClock
	Claims   claimdomain.Repository
	Invoices invoicedomain.Repository
	Store    *document.Store
	Blobs    *blob.Memory
	Pipeline *attachment.Pipeline
	Policies *policy.Rules
	Services *insurance.Services
	Machine  *lifecycle.Machine
	Audit    *audit.Recorder
	Editors  *editor.Factory
}

// EngineModels is every table the engine touches, plus any extra models.
func EngineModels(extra ...any) []any {
	models := append(ClaimModels(),
		&invoicedomain.Invoice{}, &invoicedomain.InvoiceItem{},
		&documentdomain.Document{}, &documentdomain.PatientDocument{},
		&historydomain.ClinicalEvent{}, &historydomain.ClinicalNote{},
		&auditdomain.AuditLog{},
	)
	return append(models, extra...)
}

func NewEngine(t testing.TB, registrations []insurance.Registration, extraModels ...any) *Engine {
	t.Helper()
	log := zap.NewNop()
	db := OpenDB(t, EngineModels(extraModels...)...)
	node := Node(t)
	clk := clock.NewFakeClock(Start)
	claims := repository.Provide()
	invoices := invoicerepo.Provide()
	blobs := blob.NewMemory()

	store := document.NewStore(document.Params{Log: log, Clock: clk, GenID: node, Repo: documentrepo.Provide(), Blobs: blobs})
	registry := attachment.NewRegistry(attachment.StrategyParams{
		Store:     store,
		Renderer:  render.NewService(render.Params{Log: log}),
		Converter: render.NewConverter(),
		History:   history.NewSource(history.Params{Repo: historyrepo.Provide()}),
		Invoices:  invoices,
	})
	pipeline := attachment.NewPipeline(attachment.Params{
		Log: log, Clock: clk, GenID: node, Claims: claims, Store: store, Registry: registry,
	})
	policies := policy.NewRules(policy.Params{Log: log, Clock: clk, GenID: node, Claims: claims})
	services, err := insurance.NewServices(insurance.ServicesParams{Log: log, Registrations: registrations})
	if err != nil {
		t.Fatalf("insurance services: %v", err)
	}

	return &Engine{
		DB:       db,
		Node:     node,
		Clock:    clk,
		Claims:   claims,
		Invoices: invoices,
		Store:    store,
		Blobs:    blobs,
		Pipeline: pipeline,
		Policies: policies,
		Services: services,
		Machine:  lifecycle.NewMachine(lifecycle.Params{Clock: clk, GenID: node}),
		Audit:    audit.NewRecorder(audit.Params{Log: log, Clock: clk, GenID: node, Repo: auditrepo.Provide()}),
		Editors: editor.NewFactory(editor.Params{
			DB: db, Log: log, Clock: clk, GenID: node,
			Claims: claims, Invoices: invoices, Pipeline: pipeline,
			Policies: policies, Services: services,
		}),
	}
}

// Insurer stores an active insurer. An empty serviceName makes it an offline insurer.
func (e *Engine) Insurer(t testing.TB, name, serviceName string) *claimdomain.Insurer {
	t.Helper()
	insurer := &claimdomain.Insurer{ID: e.Node.Generate(), Name: name, ServiceName: serviceName, Active: true}
	if err := e.DB.Create(insurer).Error; err != nil {
		t.Fatalf("create insurer: %v", err)
	}
	return insurer
}

// Invoice stores a posted invoice for patientID with one item per total. Paid sets the allocation
// to the full amount.
func (e *Engine) Invoice(t testing.TB, patientID snowflake.ID, number string, paid bool, totals ...int64) (*invoicedomain.Invoice, []*invoicedomain.InvoiceItem) {
	t.Helper()
	inv := &invoicedomain.Invoice{
		ID:         e.Node.Generate(),
		CustomerID: e.Node.Generate(),
		LocationID: e.Node.Generate(),
		Number:     number,
		Status:     invoicedomain.InvoiceStatusPosted,
		CreatedAt:  Start,
	}
	var items []*invoicedomain.InvoiceItem
	for _, total := range totals {
		items = append(items, &invoicedomain.InvoiceItem{
			ID:          e.Node.Generate(),
			InvoiceID:   inv.ID,
			PatientID:   patientID,
			Description: "Consultation",
			Quantity:    1,
			Total:       total,
			Tax:         total / 11,
			StartTime:   Start,
		})
		inv.TotalAmount += total
		inv.TaxAmount += total / 11
	}
	if paid {
		inv.AllocatedAmount = inv.TotalAmount
	}
	if err := e.DB.Create(inv).Error; err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	for _, item := range items {
		if err := e.DB.Create(item).Error; err != nil {
			t.Fatalf("create invoice item: %v", err)
		}
	}
	return inv, items
}

// Draft opens an editor for a new claim with one item holding the given invoice items, under a
// policy with insurer. The claim is saved.
func (e *Engine) Draft(t testing.TB, insurer *claimdomain.Insurer, gap bool, patientID snowflake.ID, invoiceItems ...*invoicedomain.InvoiceItem) *editor.Editor {
	t.Helper()
	ctx := context.Background()
	ed := e.Editors.Create(e.Node.Generate(), patientID, e.Node.Generate(), nil)
	if err := ed.SetGapClaim(gap); err != nil {
		t.Fatalf("set gap claim: %v", err)
	}
	if _, err := ed.SetPolicy(ctx, policy.Request{InsurerID: insurer.ID, PolicyNumber: "PS-100200300"}); err != nil {
		t.Fatalf("set policy: %v", err)
	}
	item, err := ed.AddItem(editor.ItemRequest{StartTime: Start, Diagnosis: "Otitis externa"})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	itemID := item.ID
	for _, ii := range invoiceItems {
		eligibility, err := ed.AddCharge(ctx, itemID, ii.ID)
		if err != nil {
			t.Fatalf("add charge: %v", err)
		}
		if !eligibility.Allowed {
			t.Fatalf("charge %s not claimable: %v", ii.ID, eligibility.Reason)
		}
	}
	if err := ed.Save(ctx); err != nil {
		t.Fatalf("save claim: %v", err)
	}
	return ed
}
