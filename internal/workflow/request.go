package workflow

import (
	"fmt"
	"time"

	"github.com/spec-kit/request-service/internal/domain"
)

var allowedTransitions = map[domain.RequestStatus][]domain.RequestStatus{
	domain.RequestStatusDraft:       {domain.RequestStatusSubmitted, domain.RequestStatusCancelled},
	domain.RequestStatusSubmitted:   {domain.RequestStatusUnderReview, domain.RequestStatusRejected, domain.RequestStatusCancelled},
	domain.RequestStatusUnderReview: {domain.RequestStatusApproved, domain.RequestStatusRejected, domain.RequestStatusOnHold, domain.RequestStatusCancelled},
	domain.RequestStatusApproved:    {domain.RequestStatusInProgress, domain.RequestStatusCancelled},
	domain.RequestStatusInProgress:  {domain.RequestStatusCompleted, domain.RequestStatusOnHold, domain.RequestStatusCancelled},
	domain.RequestStatusOnHold:      {domain.RequestStatusInProgress, domain.RequestStatusUnderReview, domain.RequestStatusCancelled},
	domain.RequestStatusCompleted:   {domain.RequestStatusDelivered},
	domain.RequestStatusRejected:    {},
	domain.RequestStatusDelivered:   {},
	domain.RequestStatusCancelled:   {},
}

// InitialStatus is the status every new request starts in.
const InitialStatus = domain.RequestStatusDraft

// AllowedTransitions returns the destinations reachable from the given status.
func AllowedTransitions(from domain.RequestStatus) []domain.RequestStatus {
	next := allowedTransitions[from]
	out := make([]domain.RequestStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is an edge of the workflow.
func CanTransition(from, to domain.RequestStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves the status.
func IsTerminal(status domain.RequestStatus) bool {
	next, known := allowedTransitions[status]
	return known && len(next) == 0
}

// TransitionError reports a move that is not in the table.
type TransitionError struct {
	From    domain.RequestStatus
	To      domain.RequestStatus
	Allowed []domain.RequestStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition request from %s to %s", e.From, e.To)
}

// Reason is the bilingual text captured on rejection or cancellation.
type Reason struct {
	Text   string
	TextAr string
}

// Apply moves req to the given status and applies the side effects of the
// destination. On error req is left untouched.
func Apply(req *domain.ServiceRequest, to domain.RequestStatus, reason Reason, now time.Time) error {
	if !CanTransition(req.Status, to) {
		return &TransitionError{From: req.Status, To: to, Allowed: AllowedTransitions(req.Status)}
	}

	switch to {
	case domain.RequestStatusRejected:
		req.RejectionReason = reason.Text
		req.RejectionReasonAr = reason.TextAr
	case domain.RequestStatusCancelled:
		req.CancellationReason = reason.Text
		req.CancellationReasonAr = reason.TextAr
	case domain.RequestStatusCompleted:
		if req.CompletedAt == nil {
			stamp := now
			req.CompletedAt = &stamp
		}
	case domain.RequestStatusDelivered:
		if req.DeliveredAt == nil {
			stamp := now
			req.DeliveredAt = &stamp
		}
	}
	req.Status = to
	return nil
}
