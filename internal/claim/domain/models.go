package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Claim is the aggregate root. Items and attachments are owned and saved with it.
type Claim struct {
	ID             snowflake.ID  `json:"id" gorm:"primaryKey"`
	Version        int64         `json:"version" gorm:"not null;default:0"`
	Status         Status        `json:"status" gorm:"type:text;not null;index"`
	Amount         int64         `json:"amount" gorm:"not null;default:0"`
	Tax            int64         `json:"tax" gorm:"not null;default:0"`
	PolicyID       *snowflake.ID `json:"policy_id,omitempty" gorm:"index"`
	CustomerID     snowflake.ID  `json:"customer_id" gorm:"not null;index"`
	PatientID      snowflake.ID  `json:"patient_id" gorm:"not null;index"`
	LocationID     snowflake.ID  `json:"location_id" gorm:"not null"`
	ClinicianID    *snowflake.ID `json:"clinician_id,omitempty"`
	UserID         *snowflake.ID `json:"user_id,omitempty"`
	InsurerClaimID string        `json:"insurer_claim_id,omitempty" gorm:"type:text"`
	Message        string        `json:"message,omitempty" gorm:"type:text"`

	IsGapClaim    bool      `json:"is_gap_claim" gorm:"not null;default:false"`
	BenefitAmount int64     `json:"benefit_amount" gorm:"not null;default:0"`
	BenefitNotes  string    `json:"benefit_notes,omitempty" gorm:"type:text"`
	GapStatus     GapStatus `json:"gap_status,omitempty" gorm:"type:text"`
	PaidAmount    int64     `json:"paid_amount" gorm:"not null;default:0"`

	StartTime time.Time  `json:"start_time" gorm:"not null"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	CreatedAt time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"not null"`

	Items       []ClaimItem  `json:"items" gorm:"foreignKey:ClaimID"`
	Attachments []Attachment `json:"attachments" gorm:"foreignKey:ClaimID"`
}

func (Claim) TableName() string { return "claims" }

// GapAmount is the portion of the total the insurer will not pay.
func (c *Claim) GapAmount() int64 {
	gap := c.Amount - c.BenefitAmount
	if gap < 0 {
		return 0
	}
	return gap
}

// GapAllowed reports whether a gap payment can be taken given what has been paid so far.
func (c *Claim) GapAllowed(paid int64) bool {
	return paid <= c.GapAmount() && c.BenefitAmount != 0
}

// Allocated is the amount already paid toward the claim.
func (c *Claim) Allocated() int64 {
	return c.PaidAmount
}

// Outstanding is what remains to be paid for the full claim.
func (c *Claim) Outstanding() int64 {
	remaining := c.Amount - c.PaidAmount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ChargeReferences flattens the charges of every item.
func (c *Claim) ChargeReferences() []ChargeReference {
	var out []ChargeReference
	for _, item := range c.Items {
		out = append(out, item.Charges...)
	}
	return out
}

func (c *Claim) AttachmentByOriginal(originalType string, originalID snowflake.ID) (*Attachment, bool) {
	for i := range c.Attachments {
		a := &c.Attachments[i]
		if a.OriginalType == originalType && a.OriginalID != nil && *a.OriginalID == originalID {
			return a, true
		}
	}
	return nil, false
}

// ClaimItem is one clinical problem being claimed.
type ClaimItem struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	ClaimID     snowflake.ID `json:"claim_id" gorm:"not null;index"`
	StartTime   time.Time    `json:"start_time" gorm:"not null"`
	EndTime     *time.Time   `json:"end_time,omitempty"`
	Diagnosis   string       `json:"diagnosis,omitempty" gorm:"type:text"`
	Reason      string       `json:"reason,omitempty" gorm:"type:text"`
	Description string       `json:"description,omitempty" gorm:"type:text"`
	Status      string       `json:"status,omitempty" gorm:"type:text"`
	Total       int64        `json:"total" gorm:"not null;default:0"`
	Tax         int64        `json:"tax" gorm:"not null;default:0"`

	Charges []ChargeReference `json:"charges" gorm:"foreignKey:ClaimItemID"`
}

func (ClaimItem) TableName() string { return "claim_items" }

// ChargeReference points a claim item at a billing line-item.
type ChargeReference struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	ClaimID       snowflake.ID `json:"claim_id" gorm:"not null;index"`
	ClaimItemID   snowflake.ID `json:"claim_item_id" gorm:"not null;index"`
	InvoiceID     snowflake.ID `json:"invoice_id" gorm:"not null;index"`
	InvoiceItemID snowflake.ID `json:"invoice_item_id" gorm:"not null;index"`
	Amount        int64        `json:"amount" gorm:"not null"`
	Tax           int64        `json:"tax" gorm:"not null;default:0"`
}

func (ChargeReference) TableName() string { return "claim_charges" }

// Attachment is a document slot on the claim.
type Attachment struct {
	ID           snowflake.ID     `json:"id" gorm:"primaryKey"`
	ClaimID      snowflake.ID     `json:"claim_id" gorm:"not null;index"`
	Name         string           `json:"name" gorm:"type:text;not null"`
	Type         AttachmentType   `json:"type" gorm:"type:text;not null"`
	Status       AttachmentStatus `json:"status" gorm:"type:text;not null"`
	Error        string           `json:"error,omitempty" gorm:"type:text"`
	DocumentID   *snowflake.ID    `json:"document_id,omitempty"`
	FileName     string           `json:"file_name,omitempty" gorm:"type:text"`
	MimeType     string           `json:"mime_type,omitempty" gorm:"type:text"`
	OriginalType string           `json:"original_type,omitempty" gorm:"type:text"`
	OriginalID   *snowflake.ID    `json:"original_id,omitempty"`
	StartTime    time.Time        `json:"start_time" gorm:"not null"`
}

func (Attachment) TableName() string { return "claim_attachments" }

func (a *Attachment) HasContent() bool {
	return a.DocumentID != nil
}

// ClaimAdjustment records the benefit credit created when the gap is paid.
type ClaimAdjustment struct {
	ID         snowflake.ID  `json:"id" gorm:"primaryKey"`
	ClaimID    snowflake.ID  `json:"claim_id" gorm:"not null;index"`
	PracticeID snowflake.ID  `json:"practice_id" gorm:"not null"`
	LocationID snowflake.ID  `json:"location_id" gorm:"not null"`
	UserID     *snowflake.ID `json:"user_id,omitempty"`
	Amount     int64         `json:"amount" gorm:"not null"`
	Notes      string        `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt  time.Time     `json:"created_at" gorm:"not null"`
}

func (ClaimAdjustment) TableName() string { return "claim_adjustments" }

// Policy is the customer/patient/insurer agreement a claim is made against.
type Policy struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	InsurerID    snowflake.ID `json:"insurer_id" gorm:"not null;index"`
	CustomerID   snowflake.ID `json:"customer_id" gorm:"not null;index"`
	PatientID    snowflake.ID `json:"patient_id" gorm:"not null;index"`
	PolicyNumber string       `json:"policy_number" gorm:"type:text;not null"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null"`

	Insurer *Insurer `json:"insurer,omitempty" gorm:"foreignKey:InsurerID"`
}

func (Policy) TableName() string { return "policies" }

// Insurer is read-only reference data. ServiceName selects the online service, empty for offline insurers.
type Insurer struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"type:text;not null"`
	ServiceName string       `json:"service_name,omitempty" gorm:"type:text"`
	Active      bool         `json:"active" gorm:"not null;default:true"`
}

func (Insurer) TableName() string { return "insurers" }
