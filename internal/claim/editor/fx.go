package editor

import "go.uber.org/fx"

var Module = fx.Module("claim.editor",
	fx.Provide(NewFactory),
)
