package domain

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusPosted     Status = "POSTED"
	StatusSubmitted  Status = "SUBMITTED"
	StatusAccepted   Status = "ACCEPTED"
	StatusSettled    Status = "SETTLED"
	StatusDeclined   Status = "DECLINED"
	StatusCancelling Status = "CANCELLING"
	StatusCancelled  Status = "CANCELLED"
)

// IsTerminal reports whether no further status change is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusSettled, StatusDeclined:
		return true
	default:
		return false
	}
}

// IsActive reports whether a claim in this status still holds its charges.
func (s Status) IsActive() bool {
	return s != StatusCancelled && s != StatusDeclined
}

// GapStatus tracks benefit adjudication and payment for gap claims.
type GapStatus string

const (
	GapStatusPending  GapStatus = "PENDING"
	GapStatusReceived GapStatus = "RECEIVED"
	GapStatusPaid     GapStatus = "PAID"
	GapStatusNotified GapStatus = "NOTIFIED"
)

type AttachmentStatus string

const (
	AttachmentStatusPending  AttachmentStatus = "PENDING"
	AttachmentStatusComplete AttachmentStatus = "COMPLETE"
	AttachmentStatusError    AttachmentStatus = "ERROR"
)

// AttachmentType is the discriminator used to select a generation strategy.
type AttachmentType string

const (
	AttachmentTypeHistory       AttachmentType = "clinical_history"
	AttachmentTypeInvoice       AttachmentType = "invoice_copy"
	AttachmentTypeInvestigation AttachmentType = "investigation_copy"
	AttachmentTypeDocument      AttachmentType = "generic_document"
)

// Source types recorded in Attachment.OriginalType.
const (
	OriginalTypeClinicalEvent   = "clinical_event"
	OriginalTypeInvoice         = "invoice"
	OriginalTypePatientDocument = "patient_document"
)

const HistoryAttachmentName = "Patient History"
