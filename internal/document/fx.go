package document

import (
	"context"

	"github.com/smallbiznis/claimflow/internal/config"
	"github.com/smallbiznis/claimflow/internal/document/blob"
	"github.com/smallbiznis/claimflow/internal/document/domain"
	"github.com/smallbiznis/claimflow/internal/document/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("document",
	fx.Provide(repository.Provide),
	fx.Provide(provideBlobStore),
	fx.Provide(NewStore),
)

func provideBlobStore(cfg config.Config, log *zap.Logger) (domain.BlobStore, error) {
	if !cfg.Storage.Enabled {
		log.Named("document.blob").Warn("object storage disabled, keeping documents in memory")
		return blob.NewMemory(), nil
	}
	return blob.NewMinio(context.Background(), cfg.Storage, log)
}
