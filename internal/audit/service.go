// Package audit records who changed a claim and why.
package audit

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/claimflow/internal/audit/domain"
	"github.com/smallbiznis/claimflow/internal/audit/masking"
	"github.com/smallbiznis/claimflow/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Clock clock.Clock
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Recorder struct {
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
	repo  domain.Repository
}

func NewRecorder(p Params) *Recorder {
	return &Recorder{
		log:   p.Log.Named("audit.recorder"),
		clock: p.Clock,
		genID: p.GenID,
		repo:  p.Repo,
	}
}

// Record writes entry through db, so it commits or rolls back with the caller's transaction.
func (r *Recorder) Record(ctx context.Context, db *gorm.DB, entry domain.Entry) error {
	if r == nil {
		return nil
	}
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return domain.ErrInvalidAction
	}
	if entry.ClaimID == 0 {
		return domain.ErrInvalidClaim
	}
	actor := entry.Actor
	if actor == "" {
		actor = domain.ActorTypeSystem
	}

	log := &domain.AuditLog{
		ID:        r.genID.Generate(),
		ClaimID:   entry.ClaimID,
		ActorType: actor,
		ActorID:   normalize(entry.ActorID),
		Action:    action,
		Message:   entry.Message,
		CreatedAt: r.clock.Now().UTC(),
	}
	if masked := masking.MaskMetadata(entry.Metadata); masked != nil {
		log.Metadata = datatypes.JSONMap(masked)
	}

	if err := r.repo.Insert(ctx, db, log); err != nil {
		r.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("claim_id", entry.ClaimID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (r *Recorder) List(ctx context.Context, db *gorm.DB, claimID snowflake.ID, limit int) ([]*domain.AuditLog, error) {
	if limit <= 0 || limit > 250 {
		limit = 50
	}
	return r.repo.ListByClaim(ctx, db, claimID, limit)
}

func normalize(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
