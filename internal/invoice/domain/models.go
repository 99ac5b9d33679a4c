// Package domain contains the billing records that claims are raised against.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusInProgress InvoiceStatus = "IN_PROGRESS"
	InvoiceStatusPosted     InvoiceStatus = "POSTED"
)

// Invoice is a customer invoice. Claims only ever read it.
type Invoice struct {
	ID              snowflake.ID      `gorm:"primaryKey"`
	CustomerID      snowflake.ID      `gorm:"not null;index"`
	LocationID      snowflake.ID      `gorm:"not null"`
	Number          string            `gorm:"type:text;not null"`
	Status          InvoiceStatus     `gorm:"type:text;not null;default:'IN_PROGRESS'"`
	Reversed        bool              `gorm:"not null;default:false"`
	TotalAmount     int64             `gorm:"not null;default:0"`
	TaxAmount       int64             `gorm:"not null;default:0"`
	AllocatedAmount int64             `gorm:"not null;default:0"`
	PostedAt        *time.Time        `gorm:""`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt       time.Time         `gorm:"not null"`

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// FullyAllocated reports whether payments cover the invoice total.
func (i *Invoice) FullyAllocated() bool {
	return i.AllocatedAmount >= i.TotalAmount
}

// Unpaid reports whether nothing has been allocated against the invoice yet.
func (i *Invoice) Unpaid() bool {
	return i.AllocatedAmount == 0
}

// InvoiceItem represents a line on an invoice.
type InvoiceItem struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	InvoiceID   snowflake.ID `gorm:"not null;index"`
	PatientID   snowflake.ID `gorm:"not null;index"`
	Description string       `gorm:"type:text"`
	Quantity    int64        `gorm:"not null;default:1"`
	Total       int64        `gorm:"not null"`
	Tax         int64        `gorm:"not null;default:0"`
	StartTime   time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

var ErrInvoiceNotFound = errors.New("invoice_not_found")

type Repository interface {
	FindInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindItem(ctx context.Context, db *gorm.DB, id snowflake.ID) (*InvoiceItem, error)
	ListItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceItem, error)
}
