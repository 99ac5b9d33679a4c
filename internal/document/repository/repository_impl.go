package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/claimflow/internal/document/domain"
	dbpkg "github.com/smallbiznis/claimflow/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, doc *domain.Document) error {
	return db.WithContext(ctx).Create(doc).Error
}

// Find returns nil when the document does not exist.
func (r *repo) Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Document, error) {
	var doc domain.Document
	err := db.WithContext(ctx).First(&doc, "id = ?", id).Error
	if dbpkg.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Delete(&domain.Document{}, "id = ?", id).Error
}

func (r *repo) FindPatientDocument(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PatientDocument, error) {
	var doc domain.PatientDocument
	err := db.WithContext(ctx).First(&doc, "id = ?", id).Error
	if dbpkg.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
