package memory

import (
	"context"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/repository"
)

// scratchID returns id backed by a buffer the caller later overwrites, the
// way fiber reuses request memory behind c.Params values.
func scratchID(id string) (string, func()) {
	buf := []byte(id)
	return unsafe.String(&buf[0], len(buf)), func() {
		for i := range buf {
			buf[i] = 'x'
		}
	}
}

type fixture struct {
	ctx      context.Context
	repos    repository.Set
	customer *domain.Customer
	request  *domain.ServiceRequest
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{ctx: context.Background(), repos: NewStore().Repositories()}
	f.customer = &domain.Customer{
		Email: "owner@example.com", FullName: "Owner", CustomerType: domain.CustomerTypeIndividual,
		NationalID: "1012345678", Status: domain.PrincipalStatusActive,
	}
	require.NoError(t, f.repos.Customers.Create(f.ctx, f.customer))
	svc := &domain.Service{Code: "SVC-001", Name: "Study", NameAr: "دراسة", Category: "consulting", IsActive: true}
	require.NoError(t, f.repos.Catalog.Create(f.ctx, svc))
	f.request = &domain.ServiceRequest{
		CustomerID: f.customer.ID, ServiceID: svc.ID, Status: domain.RequestStatusDraft,
		Priority: domain.RequestPriorityMedium, Title: "Market study",
	}
	require.NoError(t, f.repos.Requests.Create(f.ctx, f.request))
	return f
}

func TestWritesSurviveReusedCallerIDs(t *testing.T) {
	f := newFixture(t)

	id, scribble := scratchID(f.request.ID)
	_, err := f.repos.Requests.Transition(f.ctx, id, func(req *domain.ServiceRequest) error {
		req.Status = domain.RequestStatusSubmitted
		return nil
	})
	require.NoError(t, err)
	scribble()

	got, err := f.repos.Requests.GetByID(f.ctx, f.request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusSubmitted, got.Status)
	_, err = f.repos.Requests.Transition(f.ctx, f.request.ID, func(req *domain.ServiceRequest) error {
		req.Status = domain.RequestStatusUnderReview
		return nil
	})
	require.NoError(t, err)

	id, scribble = scratchID(f.customer.ID)
	require.NoError(t, f.repos.Customers.RecordLogin(f.ctx, id, time.Now()))
	scribble()
	customer, err := f.repos.Customers.GetByID(f.ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, customer.LoginCount)

	note := &domain.Notification{RecipientID: f.customer.ID, RecipientType: domain.SubjectTypeCustomer, Type: domain.NotificationRequestStatusChanged}
	require.NoError(t, f.repos.Notifications.Create(f.ctx, note))
	id, scribble = scratchID(note.ID)
	require.NoError(t, f.repos.Notifications.MarkRead(f.ctx, id, f.customer, time.Now()))
	scribble()
	assert.NoError(t, f.repos.Notifications.MarkRead(f.ctx, note.ID, f.customer, time.Now()))
}

func TestNumbersFollowCreationYear(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repos := store.Repositories()
	customer := &domain.Customer{Email: "year@example.com", FullName: "Year", CustomerType: domain.CustomerTypeIndividual, Status: domain.PrincipalStatusActive}
	require.NoError(t, repos.Customers.Create(ctx, customer))
	svc := &domain.Service{Code: "SVC-002", Name: "Audit", Category: "consulting", IsActive: true}
	require.NoError(t, repos.Catalog.Create(ctx, svc))

	numberAt := func(at time.Time) string {
		req := &domain.ServiceRequest{
			CustomerID: customer.ID, ServiceID: svc.ID, Status: domain.RequestStatusDraft,
			Priority: domain.RequestPriorityLow, Title: "Year end", CreatedAt: at,
		}
		require.NoError(t, repos.Requests.Create(ctx, req))
		if !at.IsZero() {
			assert.Equal(t, at, req.CreatedAt)
		}
		return req.RequestNumber
	}

	store.SetClock(func() time.Time { return time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC) })
	assert.Equal(t, "REQ-2025-0001", numberAt(time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, "REQ-2025-0002", numberAt(time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)))
	assert.Equal(t, "REQ-2026-0001", numberAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "REQ-2030-0001", numberAt(time.Time{}))
}

func TestRoleNamesUniqueIgnoringCase(t *testing.T) {
	ctx := context.Background()
	roles := NewStore().Repositories().Roles

	reviewer := &domain.Role{Name: "Reviewer"}
	require.NoError(t, roles.Create(ctx, reviewer, nil))
	err := roles.Create(ctx, &domain.Role{Name: "reviewer"}, nil)
	require.Error(t, err)

	other := &domain.Role{Name: "Auditor"}
	require.NoError(t, roles.Create(ctx, other, nil))
	other.Name = "REVIEWER"
	require.Error(t, roles.Update(ctx, other, nil))

	found, err := roles.GetByName(ctx, "REVIEWER")
	require.NoError(t, err)
	assert.Equal(t, reviewer.ID, found.ID)
}
