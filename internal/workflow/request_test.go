package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/request-service/internal/domain"
)

var expectedEdges = map[domain.RequestStatus][]domain.RequestStatus{
	domain.RequestStatusDraft:       {domain.RequestStatusSubmitted, domain.RequestStatusCancelled},
	domain.RequestStatusSubmitted:   {domain.RequestStatusUnderReview, domain.RequestStatusRejected, domain.RequestStatusCancelled},
	domain.RequestStatusUnderReview: {domain.RequestStatusApproved, domain.RequestStatusRejected, domain.RequestStatusOnHold, domain.RequestStatusCancelled},
	domain.RequestStatusApproved:    {domain.RequestStatusInProgress, domain.RequestStatusCancelled},
	domain.RequestStatusInProgress:  {domain.RequestStatusCompleted, domain.RequestStatusOnHold, domain.RequestStatusCancelled},
	domain.RequestStatusOnHold:      {domain.RequestStatusInProgress, domain.RequestStatusUnderReview, domain.RequestStatusCancelled},
	domain.RequestStatusCompleted:   {domain.RequestStatusDelivered},
}

func isExpected(from, to domain.RequestStatus) bool {
	for _, s := range expectedEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}

func TestApplyEveryPair(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, from := range domain.RequestStatuses {
		for _, to := range domain.RequestStatuses {
			from, to := from, to
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				t.Parallel()
				req := &domain.ServiceRequest{Status: from}
				err := Apply(req, to, Reason{Text: "why", TextAr: "لماذا"}, now)

				if !isExpected(from, to) {
					var terr *TransitionError
					require.ErrorAs(t, err, &terr)
					assert.Equal(t, from, req.Status, "status must not change")
					assert.ElementsMatch(t, expectedEdges[from], terr.Allowed)
					assert.Nil(t, req.CompletedAt)
					assert.Nil(t, req.DeliveredAt)
					assert.Empty(t, req.RejectionReason)
					assert.Empty(t, req.CancellationReason)
					return
				}

				require.NoError(t, err)
				assert.Equal(t, to, req.Status)
				switch to {
				case domain.RequestStatusRejected:
					assert.Equal(t, "why", req.RejectionReason)
					assert.Equal(t, "لماذا", req.RejectionReasonAr)
					assert.Empty(t, req.CancellationReason)
				case domain.RequestStatusCancelled:
					assert.Equal(t, "why", req.CancellationReason)
					assert.Equal(t, "لماذا", req.CancellationReasonAr)
					assert.Empty(t, req.RejectionReason)
				default:
					assert.Empty(t, req.RejectionReason)
					assert.Empty(t, req.CancellationReason)
				}
				if to == domain.RequestStatusCompleted {
					require.NotNil(t, req.CompletedAt)
					assert.Equal(t, now, *req.CompletedAt)
					assert.Nil(t, req.DeliveredAt)
				} else {
					assert.Nil(t, req.CompletedAt)
				}
				if to == domain.RequestStatusDelivered {
					require.NotNil(t, req.DeliveredAt)
					assert.Equal(t, now, *req.DeliveredAt)
				} else {
					assert.Nil(t, req.DeliveredAt)
				}
			})
		}
	}
}

func TestDeliveredKeepsCompletedAt(t *testing.T) {
	completed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	delivered := completed.Add(48 * time.Hour)
	req := &domain.ServiceRequest{Status: domain.RequestStatusCompleted, CompletedAt: &completed}

	require.NoError(t, Apply(req, domain.RequestStatusDelivered, Reason{}, delivered))
	assert.Equal(t, completed, *req.CompletedAt)
	assert.Equal(t, delivered, *req.DeliveredAt)
}

func TestTerminalStates(t *testing.T) {
	for _, s := range domain.RequestStatuses {
		want := s == domain.RequestStatusRejected || s == domain.RequestStatusDelivered || s == domain.RequestStatusCancelled
		assert.Equal(t, want, IsTerminal(s), s)
	}
	assert.False(t, IsTerminal("UNKNOWN"))
}

func TestAllowedTransitionsReturnsCopy(t *testing.T) {
	got := AllowedTransitions(domain.RequestStatusSubmitted)
	assert.Equal(t, []domain.RequestStatus{domain.RequestStatusUnderReview, domain.RequestStatusRejected, domain.RequestStatusCancelled}, got)
	got[0] = domain.RequestStatusDelivered
	assert.True(t, CanTransition(domain.RequestStatusSubmitted, domain.RequestStatusUnderReview))
}
