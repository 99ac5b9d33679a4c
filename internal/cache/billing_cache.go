package cache

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/claimflow/internal/clock"
	invoicedomain "github.com/smallbiznis/claimflow/internal/invoice/domain"
)

// BillingCache holds invoices and invoice items read during one claim editing session.
type BillingCache interface {
	GetInvoice(id snowflake.ID) (*invoicedomain.Invoice, bool)
	SetInvoice(invoice *invoicedomain.Invoice)
	GetItem(id snowflake.ID) (*invoicedomain.InvoiceItem, bool)
	SetItem(item *invoicedomain.InvoiceItem)
	Purge()
}

type billingCache struct {
	invoices Cache[snowflake.ID, *invoicedomain.Invoice]
	items    Cache[snowflake.ID, *invoicedomain.InvoiceItem]
	ttl      time.Duration
}

func NewBillingCache(maxEntries int, ttl time.Duration, clk clock.Clock) BillingCache {
	return &billingCache{
		invoices: NewTTLCache[snowflake.ID, *invoicedomain.Invoice](maxEntries, clk),
		items:    NewTTLCache[snowflake.ID, *invoicedomain.InvoiceItem](maxEntries, clk),
		ttl:      ttl,
	}
}

func (c *billingCache) GetInvoice(id snowflake.ID) (*invoicedomain.Invoice, bool) {
	return c.invoices.Get(id)
}

func (c *billingCache) SetInvoice(invoice *invoicedomain.Invoice) {
	if invoice == nil || invoice.ID == 0 {
		return
	}
	c.invoices.Set(invoice.ID, invoice, c.ttl)
}

func (c *billingCache) GetItem(id snowflake.ID) (*invoicedomain.InvoiceItem, bool) {
	return c.items.Get(id)
}

func (c *billingCache) SetItem(item *invoicedomain.InvoiceItem) {
	if item == nil || item.ID == 0 {
		return
	}
	c.items.Set(item.ID, item, c.ttl)
}

func (c *billingCache) Purge() {
	c.invoices.Purge()
	c.items.Purge()
}
