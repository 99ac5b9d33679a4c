// Package notification carries insurer status updates back into claims.
package notification

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/goccy/go-json"
)

type Kind string

const (
	KindAccepted  Kind = "accepted"
	KindDeclined  Kind = "declined"
	KindSettled   Kind = "settled"
	KindCancelled Kind = "cancelled"
	KindBenefit   Kind = "benefit"
)

var ErrMalformed = errors.New("malformed_notification")

// Message is the payload an insurer integration publishes about one claim.
type Message struct {
	ID             string       `json:"id"`
	Kind           Kind         `json:"kind"`
	Service        string       `json:"service"`
	ClaimID        snowflake.ID `json:"claim_id"`
	InsurerClaimID string       `json:"insurer_claim_id,omitempty"`
	Message        string       `json:"message,omitempty"`
	BenefitAmount  int64        `json:"benefit_amount,omitempty"`
	BenefitNotes   string       `json:"benefit_notes,omitempty"`
	SentAt         time.Time    `json:"sent_at"`
}

func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

func Decode(body []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.ClaimID == 0 {
		return Message{}, fmt.Errorf("%w: missing claim_id", ErrMalformed)
	}
	switch m.Kind {
	case KindAccepted, KindDeclined, KindSettled, KindCancelled:
	case KindBenefit:
		if m.BenefitAmount < 0 {
			return Message{}, fmt.Errorf("%w: negative benefit", ErrMalformed)
		}
	default:
		return Message{}, fmt.Errorf("%w: unknown kind %q", ErrMalformed, m.Kind)
	}
	return m, nil
}
