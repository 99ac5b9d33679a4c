// Package domain defines stored documents and the patient records that own them.
package domain

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Document is the metadata of a stored file. Content lives in a BlobStore under ObjectKey.
type Document struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	MimeType  string       `json:"mime_type" gorm:"type:text;not null"`
	Size      int64        `json:"size" gorm:"not null;default:0"`
	ObjectKey string       `json:"object_key" gorm:"type:text;not null;uniqueIndex"`
	Checksum  string       `json:"checksum" gorm:"type:text"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (Document) TableName() string { return "documents" }

// PatientDocument kinds.
const (
	KindInvestigation = "investigation"
	KindLetter        = "letter"
	KindForm          = "form"
	KindAttachment    = "attachment"
)

// PatientDocument is a clinical record that may carry its own document, or a template to render one.
type PatientDocument struct {
	ID           snowflake.ID  `json:"id" gorm:"primaryKey"`
	PatientID    snowflake.ID  `json:"patient_id" gorm:"not null;index"`
	Kind         string        `json:"kind" gorm:"type:text;not null"`
	Name         string        `json:"name" gorm:"type:text;not null"`
	Body         string        `json:"body,omitempty" gorm:"type:text"`
	TemplateName string        `json:"template_name,omitempty" gorm:"type:text"`
	DocumentID   *snowflake.ID `json:"document_id,omitempty"`
	StartTime    time.Time     `json:"start_time" gorm:"not null"`
	CreatedAt    time.Time     `json:"created_at" gorm:"not null"`
}

func (PatientDocument) TableName() string { return "patient_documents" }

var (
	ErrDocumentNotFound = errors.New("document_not_found")
	ErrEmptyContent     = errors.New("empty_document_content")
)

// BlobStore keeps document content.
type BlobStore interface {
	Put(ctx context.Context, key string, content io.Reader, size int64, mimeType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, doc *Document) error
	Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Document, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindPatientDocument(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PatientDocument, error)
}
