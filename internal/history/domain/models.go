// Package domain holds the clinical records a claim's history attachment summarises.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ClinicalEvent is one visit or problem in a patient's record.
type ClinicalEvent struct {
	ID          snowflake.ID  `json:"id" gorm:"primaryKey"`
	PatientID   snowflake.ID  `json:"patient_id" gorm:"not null;index"`
	ClinicianID *snowflake.ID `json:"clinician_id,omitempty"`
	Title       string        `json:"title" gorm:"type:text;not null"`
	Reason      string        `json:"reason,omitempty" gorm:"type:text"`
	StartTime   time.Time     `json:"start_time" gorm:"not null;index"`
	EndTime     *time.Time    `json:"end_time,omitempty"`

	Notes []ClinicalNote `json:"notes" gorm:"foreignKey:EventID"`
}

func (ClinicalEvent) TableName() string { return "clinical_events" }

type ClinicalNote struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	EventID   snowflake.ID `json:"event_id" gorm:"not null;index"`
	Text      string       `json:"text" gorm:"type:text;not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (ClinicalNote) TableName() string { return "clinical_notes" }

// Summary is the input of the medical records template.
type Summary struct {
	PatientID snowflake.ID
	Events    []ClinicalEvent
}

type Repository interface {
	// Recent returns up to limit events, newest first, with their notes.
	Recent(ctx context.Context, db *gorm.DB, patientID snowflake.ID, limit int) ([]ClinicalEvent, error)
}
