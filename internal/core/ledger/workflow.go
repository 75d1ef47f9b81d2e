package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ojedapedro/colegiopay/internal/core/domain"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrReasonRequired    = errors.New("rejection reason is required")
	ErrUnknownInstrument = errors.New("unknown payment instrument")
	ErrUnknownAction     = errors.New("unknown action")
)

// Action is a reviewer decision on a payment.
type Action string

const (
	ActionVerify     Action = "verify"
	ActionReject     Action = "reject"
	ActionReactivate Action = "reactivate"
)

// InitialStatus decides the status a new payment starts in. Cash-like
// instruments are settled on the spot; electronic ones wait for review.
var InitialStatus = map[domain.Instrument]domain.PaymentStatus{
	domain.Cash:        domain.StatusVerified,
	domain.PointOfSale: domain.StatusVerified,
	domain.PagoMovil:   domain.StatusPending,
	domain.Transfer:    domain.StatusPending,
	domain.Zelle:       domain.StatusPending,
}

// transitions lists every legal move. Verified has no outgoing edge.
var transitions = map[domain.PaymentStatus]map[Action]domain.PaymentStatus{
	domain.StatusPending: {
		ActionVerify: domain.StatusVerified,
		ActionReject: domain.StatusRejected,
	},
	domain.StatusRejected: {
		ActionReactivate: domain.StatusPending,
	},
}

// ParseAction accepts the action names used by the API.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionVerify, ActionReject, ActionReactivate:
		return a, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownAction, s)
}

func initialStatusFor(instrument domain.Instrument) (domain.PaymentStatus, error) {
	status, ok := InitialStatus[instrument]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownInstrument, instrument)
	}
	return status, nil
}

// Transition applies action to a copy of record and returns it. The input is
// never modified; an illegal move returns ErrInvalidTransition.
func Transition(record domain.PaymentRecord, action Action, reason string, now time.Time) (domain.PaymentRecord, error) {
	next, ok := transitions[record.Status][action]
	if !ok {
		return record, fmt.Errorf("%w: cannot %s a %s payment (%s)", ErrInvalidTransition, action, strings.ToLower(string(record.Status)), record.ID)
	}

	out := record
	switch action {
	case ActionReject:
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return record, ErrReasonRequired
		}
		out.RejectionReason = reason
	case ActionReactivate:
		out.RejectionReason = ""
	}
	out.Status = next
	out.UpdatedAt = now
	return out, nil
}

// Verify, Reject and Reactivate are shorthands for Transition.
func Verify(record domain.PaymentRecord, now time.Time) (domain.PaymentRecord, error) {
	return Transition(record, ActionVerify, "", now)
}

func Reject(record domain.PaymentRecord, reason string, now time.Time) (domain.PaymentRecord, error) {
	return Transition(record, ActionReject, reason, now)
}

func Reactivate(record domain.PaymentRecord, now time.Time) (domain.PaymentRecord, error) {
	return Transition(record, ActionReactivate, "", now)
}
