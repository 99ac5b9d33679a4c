package submission

import "go.uber.org/fx"

var Module = fx.Module("submission",
	fx.Provide(fx.Annotate(NewStorePrinter, fx.As(new(Printer)))),
	fx.Provide(NewCoordinator),
)
