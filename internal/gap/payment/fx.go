package payment

import "go.uber.org/fx"

var Module = fx.Module("gap.payment",
	fx.Provide(NewReconciler),
)
