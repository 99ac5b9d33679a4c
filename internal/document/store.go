// Package document stores generated and copied claim documents.
package document

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/claimflow/internal/clock"
	"github.com/smallbiznis/claimflow/internal/document/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Clock clock.Clock
	GenID *snowflake.Node
	Repo  domain.Repository
	Blobs domain.BlobStore
}

// Store writes document metadata through gorm and content through the blob store.
type Store struct {
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
	repo  domain.Repository
	blobs domain.BlobStore
}

func NewStore(p Params) *Store {
	return &Store{
		log:   p.Log.Named("document.store"),
		clock: p.Clock,
		genID: p.GenID,
		repo:  p.Repo,
		blobs: p.Blobs,
	}
}

// Create stores content under a fresh object key. Content goes first so a failed
// insert leaves at worst an unreferenced object.
func (s *Store) Create(ctx context.Context, db *gorm.DB, name, mimeType string, content []byte) (*domain.Document, error) {
	if len(content) == 0 {
		return nil, domain.ErrEmptyContent
	}
	sum := sha256.Sum256(content)
	doc := &domain.Document{
		ID:        s.genID.Generate(),
		Name:      FileName(name, mimeType),
		MimeType:  mimeType,
		Size:      int64(len(content)),
		ObjectKey: ulid.Make().String(),
		Checksum:  hex.EncodeToString(sum[:]),
		CreatedAt: s.clock.Now(),
	}
	if err := s.blobs.Put(ctx, doc.ObjectKey, bytes.NewReader(content), doc.Size, mimeType); err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, db, doc); err != nil {
		if rmErr := s.blobs.Remove(ctx, doc.ObjectKey); rmErr != nil {
			s.log.Warn("orphaned document content", zap.String("object_key", doc.ObjectKey), zap.Error(rmErr))
		}
		return nil, err
	}
	return doc, nil
}

// Copy duplicates a document so the copy can be deleted independently of its source.
func (s *Store) Copy(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Document, error) {
	src, content, err := s.Read(ctx, db, id)
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, db, src.Name, src.MimeType, content)
}

// Read returns the metadata and full content of a document.
func (s *Store) Read(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Document, []byte, error) {
	doc, err := s.repo.Find(ctx, db, id)
	if err != nil {
		return nil, nil, err
	}
	if doc == nil {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, id)
	}
	r, err := s.blobs.Get(ctx, doc.ObjectKey)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read document %s: %w", id, err)
	}
	return doc, content, nil
}

// Find returns nil when the document does not exist.
func (s *Store) Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Document, error) {
	return s.repo.Find(ctx, db, id)
}

// Delete removes metadata and content. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	doc, err := s.repo.Find(ctx, db, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	if err := s.repo.Delete(ctx, db, id); err != nil {
		return err
	}
	if err := s.blobs.Remove(ctx, doc.ObjectKey); err != nil {
		s.log.Warn("failed to remove document content", zap.String("object_key", doc.ObjectKey), zap.Error(err))
	}
	return nil
}

func (s *Store) PatientDocument(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PatientDocument, error) {
	return s.repo.FindPatientDocument(ctx, db, id)
}

var extensions = map[string]string{
	"application/pdf": ".pdf",
	"text/plain":      ".txt",
	"text/html":       ".html",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
}

// FileName slugs the base name and fixes the extension to match mimeType.
func FileName(name, mimeType string) string {
	ext := extensions[mimeType]
	base := strings.TrimSuffix(name, path.Ext(name))
	if ext == "" {
		ext = path.Ext(name)
	}
	s := slug.Make(base)
	if s == "" {
		s = "document"
	}
	return s + ext
}
