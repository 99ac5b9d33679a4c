//go:generate mockgen -destination=../mock/service_mock.go -package=mock github.com/smallbiznis/claimflow/internal/insurance/domain GapInsuranceService

// Package domain defines what the claim engine needs from an insurer integration.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
)

var (
	ErrServiceNotFound = errors.New("insurance_service_not_found")
	ErrNotSubmitted    = errors.New("claim_not_submitted_to_insurer")
	ErrCannotCancel    = errors.New("insurer_cannot_cancel_claim")
)

// Declaration is insurer text the submitting user must accept.
type Declaration struct {
	Text string
}

type Severity string

const (
	SeverityOK      Severity = "OK"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// ValidationStatus is the insurer's verdict on a claim before submission.
type ValidationStatus struct {
	Severity Severity
	Message  string
}

func Valid() ValidationStatus { return ValidationStatus{Severity: SeverityOK} }

// SubmitResult carries what the insurer assigned on submission.
type SubmitResult struct {
	InsurerClaimID string
}

// Times bounds when gap claims may be submitted. A nil bound is open.
type Times struct {
	Earliest *time.Time
	Latest   *time.Time
}

// Check reports whether now falls inside the window.
func (t *Times) Check(now time.Time) error {
	if t == nil {
		return nil
	}
	if t.Earliest != nil && now.Before(*t.Earliest) {
		return fmt.Errorf("%w: gap claims cannot be submitted until %s", claimdomain.ErrSubmitWindowClosed, t.Earliest.Format(time.Kitchen))
	}
	if t.Latest != nil && now.After(*t.Latest) {
		return fmt.Errorf("%w: gap claims can no longer be submitted today, the cutoff was %s", claimdomain.ErrSubmitWindowClosed, t.Latest.Format(time.Kitchen))
	}
	return nil
}

// InsuranceService submits and manages claims with one online insurer.
type InsuranceService interface {
	Name() string
	CanValidateClaims() bool
	Validate(ctx context.Context, claim *claimdomain.Claim) (ValidationStatus, error)
	// Declaration returns nil when the insurer has none.
	Declaration(ctx context.Context, claim *claimdomain.Claim) (*Declaration, error)
	Submit(ctx context.Context, claim *claimdomain.Claim, declaration *Declaration) (SubmitResult, error)
	CanCancel(ctx context.Context, claim *claimdomain.Claim) bool
	// Cancel returns the status the insurer reports, CANCELLING while it processes the request.
	Cancel(ctx context.Context, claim *claimdomain.Claim, reason string) (claimdomain.Status, error)
}

// GapInsuranceService also supports gap claims, where the insurer pays the practice directly.
type GapInsuranceService interface {
	InsuranceService
	SupportsGapClaims(ctx context.Context, insurer *claimdomain.Insurer, policyNumber string, locationID snowflake.ID) (bool, error)
	// GapClaimSubmitTimes returns nil when submission is unrestricted.
	GapClaimSubmitTimes(ctx context.Context, insurer *claimdomain.Insurer, now time.Time, locationID snowflake.ID) (*Times, error)
	// NotifyPayment tells the insurer the gap has been paid.
	NotifyPayment(ctx context.Context, claim *claimdomain.Claim) error
}
