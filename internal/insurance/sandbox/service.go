// Package sandbox is an online insurer that adjudicates claims on timers, for development and demos.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	"github.com/smallbiznis/claimflow/internal/clock"
	"github.com/smallbiznis/claimflow/internal/insurance/domain"
	"github.com/smallbiznis/claimflow/internal/insurance/notification"
	"github.com/smallbiznis/claimflow/internal/scheduler"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const ServiceName = "sandbox"

// Config controls how quickly the sandbox answers.
type Config struct {
	AcceptDelay    time.Duration
	BenefitDelay   time.Duration
	SettleDelay    time.Duration
	CancelDelay    time.Duration
	BenefitPercent int64
	// Gap claims are accepted between OpenHour and CloseHour local time.
	OpenHour  int
	CloseHour int
	// MaxAmount is the largest claim the sandbox accepts, in cents.
	MaxAmount int64
}

func DefaultConfig() Config {
	return Config{
		AcceptDelay:    2 * time.Second,
		BenefitDelay:   5 * time.Second,
		SettleDelay:    10 * time.Second,
		CancelDelay:    2 * time.Second,
		BenefitPercent: 75,
		OpenHour:       7,
		CloseHour:      22,
		MaxAmount:      5_000_000,
	}
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Loop      *scheduler.Loop
	Publisher notification.Publisher
	Config    *Config `optional:"true"`
}

// Service implements domain.GapInsuranceService.
type Service struct {
	log       *zap.Logger
	clock     clock.Clock
	loop      *scheduler.Loop
	publisher notification.Publisher
	cfg       Config

	mu      sync.Mutex
	pending map[snowflake.ID][]*scheduler.Ticket
}

var _ domain.GapInsuranceService = (*Service)(nil)

func New(p Params) *Service {
	cfg := DefaultConfig()
	if p.Config != nil {
		cfg = *p.Config
	}
	return &Service{
		log:       p.Log.Named("insurance.sandbox"),
		clock:     p.Clock,
		loop:      p.Loop,
		publisher: p.Publisher,
		cfg:       cfg,
		pending:   make(map[snowflake.ID][]*scheduler.Ticket),
	}
}

func (s *Service) Name() string { return "Sandbox Insurance" }

func (s *Service) CanValidateClaims() bool { return true }

func (s *Service) Validate(_ context.Context, claim *claimdomain.Claim) (domain.ValidationStatus, error) {
	switch {
	case claim.Amount > s.cfg.MaxAmount:
		return domain.ValidationStatus{
			Severity: domain.SeverityError,
			Message:  fmt.Sprintf("claims over %d cents must be lodged manually", s.cfg.MaxAmount),
		}, nil
	case len(claim.Items) > 1:
		return domain.ValidationStatus{
			Severity: domain.SeverityWarning,
			Message:  "claims with several conditions may take longer to assess",
		}, nil
	}
	return domain.Valid(), nil
}

func (s *Service) Declaration(context.Context, *claimdomain.Claim) (*domain.Declaration, error) {
	return &domain.Declaration{
		Text: "I declare the information in this claim is true and correct, and I authorise the practice to submit it on my behalf.",
	}, nil
}

func (s *Service) Submit(_ context.Context, claim *claimdomain.Claim, declaration *domain.Declaration) (domain.SubmitResult, error) {
	if declaration == nil {
		return domain.SubmitResult{}, &claimdomain.RemoteError{Service: ServiceName, Op: "submit", Err: fmt.Errorf("declaration not accepted")}
	}
	insurerClaimID := "SBX-" + strings.ToUpper(uuid.NewString()[:8])
	claimID := claim.ID

	s.schedule(claimID, s.cfg.AcceptDelay, notification.Message{
		Kind:           notification.KindAccepted,
		ClaimID:        claimID,
		InsurerClaimID: insurerClaimID,
	})
	if claim.IsGapClaim {
		benefit := claim.Amount * s.cfg.BenefitPercent / 100
		s.schedule(claimID, s.cfg.BenefitDelay, notification.Message{
			Kind:          notification.KindBenefit,
			ClaimID:       claimID,
			BenefitAmount: benefit,
			BenefitNotes:  fmt.Sprintf("Benefit assessed at %d%% of the claimed amount", s.cfg.BenefitPercent),
		})
	} else {
		s.schedule(claimID, s.cfg.SettleDelay, notification.Message{
			Kind:    notification.KindSettled,
			ClaimID: claimID,
			Message: "Benefit paid to policy holder",
		})
	}

	s.log.Info("claim submitted", zap.String("claim_id", claimID.String()), zap.String("insurer_claim_id", insurerClaimID))
	return domain.SubmitResult{InsurerClaimID: insurerClaimID}, nil
}

func (s *Service) CanCancel(_ context.Context, claim *claimdomain.Claim) bool {
	switch claim.Status {
	case claimdomain.StatusSubmitted:
		return true
	case claimdomain.StatusAccepted:
		return claim.GapStatus != claimdomain.GapStatusPaid && claim.GapStatus != claimdomain.GapStatusNotified
	}
	return false
}

// Cancel stops outstanding adjudication and confirms the cancellation after CancelDelay.
func (s *Service) Cancel(ctx context.Context, claim *claimdomain.Claim, reason string) (claimdomain.Status, error) {
	if !s.CanCancel(ctx, claim) {
		return claim.Status, domain.ErrCannotCancel
	}
	s.stop(claim.ID)
	s.schedule(claim.ID, s.cfg.CancelDelay, notification.Message{
		Kind:    notification.KindCancelled,
		ClaimID: claim.ID,
		Message: reason,
	})
	return claimdomain.StatusCancelling, nil
}

// SupportsGapClaims is false for policy numbers starting with NOGAP.
func (s *Service) SupportsGapClaims(_ context.Context, insurer *claimdomain.Insurer, policyNumber string, _ snowflake.ID) (bool, error) {
	if insurer == nil || !insurer.Active {
		return false, nil
	}
	policyNumber = strings.TrimSpace(policyNumber)
	return policyNumber != "" && !strings.HasPrefix(strings.ToUpper(policyNumber), "NOGAP"), nil
}

func (s *Service) GapClaimSubmitTimes(_ context.Context, _ *claimdomain.Insurer, now time.Time, _ snowflake.ID) (*domain.Times, error) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	earliest := day.Add(time.Duration(s.cfg.OpenHour) * time.Hour)
	latest := day.Add(time.Duration(s.cfg.CloseHour) * time.Hour)
	return &domain.Times{Earliest: &earliest, Latest: &latest}, nil
}

// NotifyPayment settles the claim once the practice has taken the gap.
func (s *Service) NotifyPayment(_ context.Context, claim *claimdomain.Claim) error {
	if claim.GapStatus != claimdomain.GapStatusPaid {
		return &claimdomain.RemoteError{Service: ServiceName, Op: "notify payment", Err: claimdomain.ErrGapStatus}
	}
	s.schedule(claim.ID, s.cfg.SettleDelay, notification.Message{
		Kind:    notification.KindSettled,
		ClaimID: claim.ID,
		Message: "Benefit paid to practice",
	})
	return nil
}

func (s *Service) schedule(claimID snowflake.ID, delay time.Duration, msg notification.Message) {
	msg.ID = uuid.NewString()
	msg.Service = ServiceName
	ticket := s.loop.After(delay, func(ctx context.Context) {
		msg.SentAt = s.clock.Now()
		if err := s.publisher.Publish(ctx, msg); err != nil {
			s.log.Warn("failed to publish notification",
				zap.String("kind", string(msg.Kind)),
				zap.String("claim_id", claimID.String()),
				zap.Error(err),
			)
		}
		if msg.Kind == notification.KindSettled || msg.Kind == notification.KindCancelled {
			s.forget(claimID)
		}
	})

	s.mu.Lock()
	s.pending[claimID] = append(s.pending[claimID], ticket)
	s.mu.Unlock()
}

func (s *Service) stop(claimID snowflake.ID) {
	for _, t := range s.forget(claimID) {
		t.Cancel()
	}
}

func (s *Service) forget(claimID snowflake.ID) []*scheduler.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	tickets := s.pending[claimID]
	delete(s.pending, claimID)
	return tickets
}
