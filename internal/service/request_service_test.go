package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/events"
	"github.com/spec-kit/request-service/internal/repository"
)

func TestCreateRequestStartsAsDraft(t *testing.T) {
	h := newHarness(t)
	customer := h.customer(t, "owner@example.com")

	req := h.draft(t, customer)
	assert.Equal(t, domain.RequestStatusDraft, req.Status)
	assert.Equal(t, domain.RequestPriorityMedium, req.Priority)
	assert.Equal(t, "REQ-2025-0001", req.RequestNumber)

	second := h.draft(t, customer)
	assert.Equal(t, "REQ-2025-0002", second.RequestNumber)

	created := h.eventsOf(events.EventRequestCreated)
	require.Len(t, created, 2)
	assert.Equal(t, req.ID, created[0].EntityID)
}

func TestCreateRequestRejectsInactiveService(t *testing.T) {
	h := newHarness(t)
	customer := h.customer(t, "owner@example.com")
	svc := h.service(t)
	inactive := false
	_, err := h.catalog.Update(h.ctx, h.admin, svc.ID, ServiceInput{IsActive: &inactive})
	require.NoError(t, err)

	_, err = h.requests.Create(h.ctx, customer.ID, RequestCreateInput{ServiceID: svc.ID, Title: "x"})
	requireCode(t, err, "BAD_REQUEST")

	_, err = h.requests.Create(h.ctx, customer.ID, RequestCreateInput{ServiceID: svc.ID})
	requireCode(t, err, "VALIDATION_FAILED")
}

func TestWorkflowRejectsSkippedStep(t *testing.T) {
	h := newHarness(t)
	req := h.draft(t, h.customer(t, "owner@example.com"))
	req = h.advanceTo(t, req, domain.RequestStatusSubmitted)

	_, err := h.requests.UpdateStatus(h.ctx, h.admin, req.ID, StatusChangeInput{Status: domain.RequestStatusDelivered})
	de := requireCode(t, err, "BAD_REQUEST")
	assert.Equal(t, domain.RequestStatusSubmitted, de.Details["from"])
	assert.Equal(t, domain.RequestStatusDelivered, de.Details["to"])
	assert.Equal(t, []domain.RequestStatus{
		domain.RequestStatusUnderReview,
		domain.RequestStatusRejected,
		domain.RequestStatusCancelled,
	}, de.Details["allowed"])

	unchanged, err := h.requests.FindOne(h.ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusSubmitted, unchanged.Status)
}

func TestWorkflowHappyPathStampsTimes(t *testing.T) {
	h := newHarness(t)
	req := h.draft(t, h.customer(t, "owner@example.com"))

	req = h.advanceTo(t, req,
		domain.RequestStatusSubmitted,
		domain.RequestStatusUnderReview,
		domain.RequestStatusApproved,
		domain.RequestStatusInProgress,
		domain.RequestStatusCompleted,
	)
	require.NotNil(t, req.CompletedAt)
	assert.Nil(t, req.DeliveredAt)

	h.advance(48 * time.Hour)
	req = h.advanceTo(t, req, domain.RequestStatusDelivered)
	require.NotNil(t, req.DeliveredAt)
	assert.True(t, req.DeliveredAt.After(*req.CompletedAt))

	changes := h.eventsOf(events.EventRequestStatusChanged)
	require.Len(t, changes, 6)
	last := changes[5].Payload.(events.RequestStatusChangedPayload)
	assert.Equal(t, domain.RequestStatusCompleted, last.OldStatus)
	assert.Equal(t, domain.RequestStatusDelivered, last.NewStatus)

	_, err := h.requests.UpdateStatus(h.ctx, h.admin, req.ID, StatusChangeInput{Status: domain.RequestStatusCancelled})
	de := requireCode(t, err, "BAD_REQUEST")
	assert.Empty(t, de.Details["allowed"])
}

func TestRejectionStoresBilingualReason(t *testing.T) {
	h := newHarness(t)
	req := h.advanceTo(t, h.draft(t, h.customer(t, "owner@example.com")), domain.RequestStatusSubmitted)

	rejected, err := h.requests.UpdateStatus(h.ctx, h.admin, req.ID, StatusChangeInput{
		Status: domain.RequestStatusRejected, Reason: " incomplete ", ReasonAr: "غير مكتمل",
	})
	require.NoError(t, err)
	assert.Equal(t, "incomplete", rejected.RejectionReason)
	assert.Equal(t, "غير مكتمل", rejected.RejectionReasonAr)
}

func TestCustomerSubmitAndCancel(t *testing.T) {
	h := newHarness(t)
	owner := h.customer(t, "owner@example.com")
	other := h.customer(t, "other@example.com")
	req := h.draft(t, owner)

	_, err := h.requests.Submit(h.ctx, other, req.ID)
	requireCode(t, err, "NOT_FOUND")

	submitted, err := h.requests.Submit(h.ctx, owner, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusSubmitted, submitted.Status)

	cancelled, err := h.requests.Cancel(h.ctx, owner, req.ID, "changed my mind", "")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusCancelled, cancelled.Status)
	assert.Equal(t, "changed my mind", cancelled.CancellationReason)

	late := h.advanceTo(t, h.draft(t, owner), domain.RequestStatusSubmitted, domain.RequestStatusUnderReview)
	_, err = h.requests.Cancel(h.ctx, owner, late.ID, "", "")
	requireCode(t, err, "BAD_REQUEST")
}

func TestCustomerEditsOnlyOwnDrafts(t *testing.T) {
	h := newHarness(t)
	owner := h.customer(t, "owner@example.com")
	req := h.draft(t, owner)
	title := "Updated title"

	updated, err := h.requests.Update(h.ctx, owner, req.ID, RequestUpdateInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	_, err = h.requests.Update(h.ctx, h.customer(t, "other@example.com"), req.ID, RequestUpdateInput{Title: &title})
	requireCode(t, err, "NOT_FOUND")

	h.advanceTo(t, req, domain.RequestStatusSubmitted)
	_, err = h.requests.Update(h.ctx, owner, req.ID, RequestUpdateInput{Title: &title})
	requireCode(t, err, "BAD_REQUEST")

	_, err = h.requests.Update(h.ctx, h.admin, req.ID, RequestUpdateInput{Title: &title})
	assert.NoError(t, err)
}

// submitFirst lets a submit land between the caller's read and the locked
// details write.
type submitFirst struct {
	repository.RequestRepository
}

func (r submitFirst) UpdateDetails(ctx context.Context, id string, mutate repository.RequestMutation) (*domain.ServiceRequest, error) {
	if _, err := r.Transition(ctx, id, func(req *domain.ServiceRequest) error {
		req.Status = domain.RequestStatusSubmitted
		return nil
	}); err != nil {
		return nil, err
	}
	return r.RequestRepository.UpdateDetails(ctx, id, mutate)
}

func TestCustomerEditLosesToSubmit(t *testing.T) {
	h := newHarness(t)
	owner := h.customer(t, "owner@example.com")
	req := h.draft(t, owner)

	requests := NewRequestService(RequestDependencies{
		RequestRepo: submitFirst{h.repos.Requests}, CatalogRepo: h.repos.Catalog, InvoiceRepo: h.repos.Invoices,
		DocumentRepo: h.repos.Documents, Blobs: h.blobs, Audit: h.audit, Clock: h.clock,
	})
	title := "Edited after submit"
	_, err := requests.Update(h.ctx, owner, req.ID, RequestUpdateInput{Title: &title})
	requireCode(t, err, "BAD_REQUEST")

	stored, err := h.requests.FindOne(h.ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusSubmitted, stored.Status)
	assert.Equal(t, req.Title, stored.Title)
}

func TestConcurrentTransitionsSerialize(t *testing.T) {
	h := newHarness(t)
	req := h.advanceTo(t, h.draft(t, h.customer(t, "owner@example.com")), domain.RequestStatusSubmitted)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, to := range []domain.RequestStatus{domain.RequestStatusUnderReview, domain.RequestStatusRejected} {
		wg.Add(1)
		go func(i int, to domain.RequestStatus) {
			defer wg.Done()
			_, results[i] = h.requests.UpdateStatus(h.ctx, h.admin, req.ID, StatusChangeInput{Status: to})
		}(i, to)
	}
	wg.Wait()

	// UNDER_REVIEW -> REJECTED is legal too, so both may succeed.
	final, err := h.requests.FindOne(h.ctx, req.ID)
	require.NoError(t, err)
	assert.Contains(t, []domain.RequestStatus{domain.RequestStatusUnderReview, domain.RequestStatusRejected}, final.Status)
	assert.True(t, results[0] == nil || results[1] == nil)
}

func TestRemoveBlockedByInvoices(t *testing.T) {
	h := newHarness(t)
	req := h.advanceTo(t, h.draft(t, h.customer(t, "owner@example.com")), domain.RequestStatusSubmitted)
	_, err := h.invoices.Create(h.ctx, h.admin, InvoiceCreateInput{RequestID: req.ID, Subtotal: 1000})
	require.NoError(t, err)

	err = h.requests.Remove(h.ctx, h.admin, req.ID)
	requireCode(t, err, "CONFLICT")

	plain := h.draft(t, h.customer(t, "second@example.com"))
	require.NoError(t, h.requests.Remove(h.ctx, h.admin, plain.ID))
	_, err = h.requests.FindOne(h.ctx, plain.ID)
	requireCode(t, err, "NOT_FOUND")
}

func TestListForCustomerScopesToOwner(t *testing.T) {
	h := newHarness(t)
	owner := h.customer(t, "owner@example.com")
	other := h.customer(t, "other@example.com")
	h.draft(t, owner)
	h.draft(t, owner)
	h.draft(t, other)

	items, total, err := h.requests.ListForCustomer(h.ctx, owner.ID, repository.RequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, item := range items {
		assert.Equal(t, owner.ID, item.CustomerID)
	}

	_, _, err = h.requests.FindAll(h.ctx, repository.RequestFilter{Statuses: []domain.RequestStatus{"BOGUS"}})
	requireCode(t, err, "VALIDATION_FAILED")
}
