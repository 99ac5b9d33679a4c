package lifecycle

import (
	"github.com/smallbiznis/claimflow/internal/claim/domain"
)

// guard vets a claim before an edge is taken. A nil guard always passes.
type guard func(c *domain.Claim) error

type edge struct {
	to    domain.Status
	guard guard
}

// transitions lists every legal source to target edge.
var transitions = map[domain.Status][]edge{
	domain.StatusPending: {
		{to: domain.StatusPosted, guard: readyToFinalise},
		{to: domain.StatusCancelling},
		{to: domain.StatusCancelled},
	},
	domain.StatusPosted: {
		{to: domain.StatusSubmitted, guard: positiveAmount},
		{to: domain.StatusCancelling},
		{to: domain.StatusCancelled},
	},
	domain.StatusSubmitted: {
		{to: domain.StatusAccepted},
		{to: domain.StatusDeclined},
		{to: domain.StatusSettled},
		{to: domain.StatusCancelling},
		{to: domain.StatusCancelled},
	},
	domain.StatusAccepted: {
		{to: domain.StatusSettled},
		{to: domain.StatusDeclined},
		{to: domain.StatusCancelling},
		{to: domain.StatusCancelled},
	},
	domain.StatusCancelling: {
		{to: domain.StatusCancelled},
	},
}

func lookup(from, to domain.Status) (edge, bool) {
	for _, e := range transitions[from] {
		if e.to == to {
			return e, true
		}
	}
	return edge{}, false
}

func positiveAmount(c *domain.Claim) error {
	if c.Amount <= 0 {
		return domain.ErrInvalidAmount
	}
	return nil
}

// readyToFinalise requires a positive amount and every attachment generated without error.
func readyToFinalise(c *domain.Claim) error {
	if err := positiveAmount(c); err != nil {
		return err
	}
	var failed, missing []string
	for i := range c.Attachments {
		a := &c.Attachments[i]
		switch {
		case a.Status == domain.AttachmentStatusError:
			failed = append(failed, a.Name)
		case !a.HasContent():
			missing = append(missing, a.Name)
		}
	}
	if len(failed) > 0 {
		return &domain.AttachmentFailure{Names: failed, Err: domain.ErrAttachmentError}
	}
	if len(missing) > 0 {
		return &domain.AttachmentFailure{Names: missing, Err: domain.ErrAttachmentMissing}
	}
	return nil
}
