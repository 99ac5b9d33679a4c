package attachment

import "go.uber.org/fx"

var Module = fx.Module("attachment",
	fx.Provide(NewRegistry),
	fx.Provide(NewPipeline),
)
