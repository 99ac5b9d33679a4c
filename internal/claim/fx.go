package claim

import (
	"github.com/smallbiznis/claimflow/internal/claim/lifecycle"
	"github.com/smallbiznis/claimflow/internal/claim/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("claim",
	fx.Provide(repository.Provide),
	fx.Provide(lifecycle.NewMachine),
)
