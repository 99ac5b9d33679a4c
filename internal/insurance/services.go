// Package insurance resolves insurer integrations by service name.
package insurance

import (
	"fmt"
	"sort"

	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/insurance/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Registration adds a service to the registry through the fx group "insurance.services".
type Registration struct {
	ServiceName string
	Service     domain.InsuranceService
}

type ServicesParams struct {
	fx.In

	Log           *zap.Logger
	Registrations []Registration `group:"insurance.services"`
}

// Services is the registry of online insurers, keyed by Insurer.ServiceName.
type Services struct {
	services map[string]domain.InsuranceService
}

func NewServices(p ServicesParams) (*Services, error) {
	s := &Services{services: make(map[string]domain.InsuranceService, len(p.Registrations))}
	for _, r := range p.Registrations {
		if err := s.Register(r.ServiceName, r.Service); err != nil {
			return nil, err
		}
	}
	p.Log.Named("insurance.services").Info("insurance services registered", zap.Strings("services", s.Names()))
	return s, nil
}

func (s *Services) Register(name string, svc domain.InsuranceService) error {
	if name == "" || svc == nil {
		return fmt.Errorf("invalid insurance service registration %q", name)
	}
	if _, ok := s.services[name]; ok {
		return fmt.Errorf("insurance service %q registered twice", name)
	}
	s.services[name] = svc
	return nil
}

// CanSubmit reports whether claims for the insurer go online.
func (s *Services) CanSubmit(insurer *claimdomain.Insurer) bool {
	_, ok := s.Service(insurer)
	return ok
}

// Service returns the insurer's online service, if it has one.
func (s *Services) Service(insurer *claimdomain.Insurer) (domain.InsuranceService, bool) {
	if insurer == nil || insurer.ServiceName == "" {
		return nil, false
	}
	svc, ok := s.services[insurer.ServiceName]
	return svc, ok
}

// GapService returns the insurer's service when it handles gap claims.
func (s *Services) GapService(insurer *claimdomain.Insurer) (domain.GapInsuranceService, bool) {
	svc, ok := s.Service(insurer)
	if !ok {
		return nil, false
	}
	gap, ok := svc.(domain.GapInsuranceService)
	return gap, ok
}

func (s *Services) Names() []string {
	names := make([]string, 0, len(s.services))
	for name := range s.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
