package sandbox

import (
	"github.com/smallbiznis/claimflow/internal/insurance"
	"go.uber.org/fx"
)

var Module = fx.Module("insurance.sandbox",
	fx.Provide(New),
	fx.Provide(fx.Annotate(register, fx.ResultTags(`group:"insurance.services"`))),
)

func register(s *Service) insurance.Registration {
	return insurance.Registration{ServiceName: ServiceName, Service: s}
}
