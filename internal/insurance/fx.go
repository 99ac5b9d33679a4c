package insurance

import "go.uber.org/fx"

var Module = fx.Module("insurance",
	fx.Provide(NewServices),
)
