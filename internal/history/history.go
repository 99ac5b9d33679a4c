// Package history builds the bounded clinical history summary attached to every claim.
package history

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/claimflow/internal/config"
	"github.com/smallbiznis/claimflow/internal/history/domain"
	"github.com/smallbiznis/claimflow/internal/history/repository"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("history",
	fx.Provide(repository.Provide),
	fx.Provide(NewSource),
)

type Params struct {
	fx.In

	Repo   domain.Repository
	Config *config.ClaimsConfigHolder `optional:"true"`
}

type Source struct {
	repo   domain.Repository
	config *config.ClaimsConfigHolder
}

func NewSource(p Params) *Source {
	cfg := p.Config
	if cfg == nil {
		cfg = config.NewStaticClaimsConfigHolder(config.DefaultClaimsConfig())
	}
	return &Source{repo: p.Repo, config: cfg}
}

// Summary loads the most recent events, limited by the configured history depth.
func (s *Source) Summary(ctx context.Context, db *gorm.DB, patientID snowflake.ID) (*domain.Summary, error) {
	events, err := s.repo.Recent(ctx, db, patientID, s.config.Get().HistoryDepth)
	if err != nil {
		return nil, err
	}
	return &domain.Summary{PatientID: patientID, Events: events}, nil
}
