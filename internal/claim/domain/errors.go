package domain

import (
	"errors"
	"fmt"
)

var (
	ErrClaimNotFound       = errors.New("claim_not_found")
	ErrStaleClaim          = errors.New("stale_claim")
	ErrInvalidStatus       = errors.New("invalid_claim_status")
	ErrIllegalTransition   = errors.New("illegal_status_transition")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrMissingPolicy       = errors.New("missing_policy")
	ErrDuplicateCharge     = errors.New("duplicate_charge")
	ErrChargeNotClaimable  = errors.New("charge_not_claimable")
	ErrAttachmentError     = errors.New("attachment_error")
	ErrAttachmentMissing   = errors.New("attachment_missing_content")
	ErrNotGapClaim         = errors.New("not_gap_claim")
	ErrGapStatus           = errors.New("invalid_gap_status")
	ErrGapNotSupported     = errors.New("gap_claims_not_supported")
	ErrSubmitWindowClosed  = errors.New("gap_claim_submit_window_closed")
	ErrInvalidPayment      = errors.New("invalid_payment")
	ErrRemoteService       = errors.New("remote_service_error")
	ErrClaimLocked         = errors.New("claim_locked")
	ErrInvalidPolicyNumber = errors.New("invalid_policy_number")
)

// TransitionError names the edge that was refused.
type TransitionError struct {
	From   Status
	To     Status
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("cannot change claim status from %s to %s", e.From, e.To)
	}
	return fmt.Sprintf("cannot change claim status from %s to %s: %s", e.From, e.To, e.Reason)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// AttachmentFailure names the attachments blocking submission.
type AttachmentFailure struct {
	Names []string
	Err   error
}

func (e *AttachmentFailure) Error() string {
	return fmt.Sprintf("%v: %v", e.Err, e.Names)
}

func (e *AttachmentFailure) Unwrap() error { return e.Err }

// RemoteError wraps a failure raised by an insurance service.
type RemoteError struct {
	Service string
	Op      string
	Err     error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *RemoteError) Unwrap() []error { return []error{ErrRemoteService, e.Err} }
