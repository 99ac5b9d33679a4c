package document_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/claimflow/internal/claimtest"
	"github.com/smallbiznis/claimflow/internal/clock"
	"github.com/smallbiznis/claimflow/internal/document"
	"github.com/smallbiznis/claimflow/internal/document/blob"
	"github.com/smallbiznis/claimflow/internal/document/domain"
	"github.com/smallbiznis/claimflow/internal/document/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newStore(t *testing.T) (*document.Store, *blob.Memory) {
	t.Helper()
	blobs := blob.NewMemory()
	return document.NewStore(document.Params{
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		GenID: claimtest.Node(t),
		Repo:  repository.Provide(),
		Blobs: blobs,
	}), blobs
}

func TestCreateCopyDelete(t *testing.T) {
	ctx := context.Background()
	db := claimtest.OpenDB(t, &domain.Document{})
	store, blobs := newStore(t)

	doc, err := store.Create(ctx, db, "Blood Panel Results.txt", "application/pdf", []byte("%PDF-1.4 results"))
	require.NoError(t, err)
	assert.Equal(t, "blood-panel-results.pdf", doc.Name)
	assert.Equal(t, int64(16), doc.Size)
	assert.NotEmpty(t, doc.Checksum)

	copied, err := store.Copy(ctx, db, doc.ID)
	require.NoError(t, err)
	assert.NotEqual(t, doc.ID, copied.ID)
	assert.NotEqual(t, doc.ObjectKey, copied.ObjectKey)
	assert.Equal(t, doc.Checksum, copied.Checksum)
	assert.Equal(t, 2, blobs.Len())

	require.NoError(t, store.Delete(ctx, db, doc.ID))
	assert.Equal(t, 1, blobs.Len())
	_, _, err = store.Read(ctx, db, doc.ID)
	assert.True(t, errors.Is(err, domain.ErrDocumentNotFound))

	_, content, err := store.Read(ctx, db, copied.ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 results", string(content))

	require.NoError(t, store.Delete(ctx, db, doc.ID))
}

func TestCreateRejectsEmptyContent(t *testing.T) {
	db := claimtest.OpenDB(t, &domain.Document{})
	store, _ := newStore(t)

	_, err := store.Create(context.Background(), db, "empty", "text/plain", nil)
	assert.True(t, errors.Is(err, domain.ErrEmptyContent))
}

func TestCreateFailsWhenBlobStoreFails(t *testing.T) {
	db := claimtest.OpenDB(t, &domain.Document{})
	store, blobs := newStore(t)
	blobs.FailPut = errors.New("bucket unavailable")

	_, err := store.Create(context.Background(), db, "history", "application/pdf", []byte("x"))
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&domain.Document{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "patient-history.pdf", document.FileName("Patient History", "application/pdf"))
	assert.Equal(t, "scan.jpg", document.FileName("Scan.jpeg", "image/jpeg"))
	assert.Equal(t, "x-ray.dcm", document.FileName("X-Ray.dcm", "application/dicom"))
	assert.Equal(t, "document.pdf", document.FileName("", "application/pdf"))
}
