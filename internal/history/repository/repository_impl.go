package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/claimflow/internal/history/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Recent(ctx context.Context, db *gorm.DB, patientID snowflake.ID, limit int) ([]domain.ClinicalEvent, error) {
	var events []domain.ClinicalEvent
	q := db.WithContext(ctx).
		Preload("Notes", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC, id ASC")
		}).
		Where("patient_id = ?", patientID).
		Order("start_time DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
