package poller

import "go.uber.org/fx"

var Module = fx.Module("gap.poller",
	fx.Provide(New),
)
