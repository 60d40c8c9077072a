package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/request-service/internal/config"
	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/events"
	"github.com/spec-kit/request-service/internal/repository"
	"github.com/spec-kit/request-service/internal/repository/memory"
	"github.com/spec-kit/request-service/internal/storage"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

const testBcryptCost = 4

type harness struct {
	ctx   context.Context
	repos repository.Set
	blobs *storage.MemoryStore

	mu     sync.Mutex
	now    time.Time
	events []events.Event

	audit         *AuditService
	permissions   *PermissionService
	roles         *RoleService
	employees     *EmployeeService
	customers     *CustomerService
	catalog       *CatalogService
	requests      *RequestService
	assignments   *AssignmentService
	invoices      *InvoiceService
	payments      *PaymentService
	documents     *DocumentService
	notifications *NotificationService
	auth          *AuthService
	dashboard     *DashboardService

	adminRole *domain.Role
	admin     *domain.Employee
	seq       int
}

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:                 "test-secret",
			AccessTokenTTLMinutes:     15,
			RefreshTokenTTLHours:      24,
			PasswordResetTTLMinutes:   30,
			EmailVerificationTTLHours: 48,
			BcryptCost:                testBcryptCost,
		},
		Billing: config.BillingConfig{VATBasisPoints: 1500, Currency: "SAR", DefaultDueDays: 30},
		Storage: config.StorageConfig{
			MaxUploadBytes:   1024,
			AllowedMimeTypes: []string{"application/pdf", "image/png"},
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ctx:   context.Background(),
		blobs: storage.NewMemoryStore(),
		now:   time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
	}
	store := memory.NewStore()
	store.SetClock(h.clock)
	h.repos = store.Repositories()
	cfg := testConfig()

	dispatcher := events.NewInMemoryDispatcher(nil)
	for _, eventType := range events.AllTypes {
		dispatcher.Subscribe(eventType, func(_ context.Context, e events.Event) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.events = append(h.events, e)
			return nil
		})
	}

	h.audit = NewAuditService(h.repos.Audit, nil)
	h.permissions = NewPermissionService(h.repos.Permissions, h.audit, nil)
	h.roles = NewRoleService(RoleDependencies{
		RoleRepo: h.repos.Roles, PermissionRepo: h.repos.Permissions, EmployeeRepo: h.repos.Employees, Audit: h.audit,
	})
	h.employees = NewEmployeeService(EmployeeDependencies{
		EmployeeRepo: h.repos.Employees, RoleRepo: h.repos.Roles, RefreshTokenRepo: h.repos.RefreshTokens,
		Audit: h.audit, BcryptCost: testBcryptCost,
	})
	h.customers = NewCustomerService(h.repos.Customers, h.repos.RefreshTokens, h.audit, nil)
	h.catalog = NewCatalogService(h.repos.Catalog, h.audit, "SAR")
	h.requests = NewRequestService(RequestDependencies{
		RequestRepo: h.repos.Requests, CatalogRepo: h.repos.Catalog, InvoiceRepo: h.repos.Invoices,
		DocumentRepo: h.repos.Documents, Blobs: h.blobs, Dispatcher: dispatcher, Audit: h.audit, Clock: h.clock,
	})
	h.assignments = NewAssignmentService(AssignmentDependencies{
		RequestRepo: h.repos.Requests, EmployeeRepo: h.repos.Employees, Dispatcher: dispatcher, Audit: h.audit, Clock: h.clock,
	})
	h.invoices = NewInvoiceService(InvoiceDependencies{
		InvoiceRepo: h.repos.Invoices, RequestRepo: h.repos.Requests, Dispatcher: dispatcher, Audit: h.audit,
		Clock: h.clock, Billing: cfg.Billing,
	})
	h.payments = NewPaymentService(PaymentDependencies{
		PaymentRepo: h.repos.Payments, InvoiceRepo: h.repos.Invoices, Dispatcher: dispatcher, Audit: h.audit, Clock: h.clock,
	})
	h.documents = NewDocumentService(DocumentDependencies{
		DocumentRepo: h.repos.Documents, RequestRepo: h.repos.Requests, Blobs: h.blobs, Dispatcher: dispatcher,
		Audit: h.audit, Storage: cfg.Storage,
	})
	h.notifications = NewNotificationService(h.repos.Notifications, dispatcher, nil, cfg.Notification)
	h.notifications.RegisterHandlers()
	h.auth = NewAuthService(cfg, AuthDependencies{
		CustomerRepo: h.repos.Customers, EmployeeRepo: h.repos.Employees, RefreshTokenRepo: h.repos.RefreshTokens,
		PasswordResetRepo: h.repos.PasswordResets, EmailVerificationRepo: h.repos.EmailVerifications,
		Audit: h.audit, Clock: h.clock,
	})
	h.dashboard = NewDashboardService(DashboardDependencies{
		RequestRepo: h.repos.Requests, CustomerRepo: h.repos.Customers, EmployeeRepo: h.repos.Employees,
		InvoiceRepo: h.repos.Invoices, Clock: h.clock,
	})

	require.NoError(t, Bootstrap(h.ctx, cfg.Auth, BootstrapDependencies{
		Permissions: h.permissions, RoleRepo: h.repos.Roles, EmployeeRepo: h.repos.Employees,
	}))
	admin, err := h.repos.Roles.GetAdmin(h.ctx)
	require.NoError(t, err)
	h.adminRole = admin
	h.admin, err = EnsureAdminEmployee(h.ctx, h.repos.Employees, admin, AdminAccount{
		Email: "admin@example.com", Password: "admin-pass-1", EmployeeCode: "EMP-0001",
	}, testBcryptCost)
	require.NoError(t, err)
	return h
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
}

func (h *harness) eventsOf(eventType events.EventType) []events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []events.Event
	for _, e := range h.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (h *harness) customer(t *testing.T, email string) *domain.Customer {
	t.Helper()
	c, _, err := h.auth.RegisterCustomer(h.ctx, RegisterCustomerInput{
		Email:        email,
		Password:     "customer-pass",
		FullName:     "Test Customer",
		CustomerType: domain.CustomerTypeIndividual,
		NationalID:   "1012345678",
	})
	require.NoError(t, err)
	return c
}

func (h *harness) role(t *testing.T, name string, perms ...string) *domain.Role {
	t.Helper()
	var ids []string
	all, err := h.permissions.List(h.ctx)
	require.NoError(t, err)
	for _, want := range perms {
		for _, p := range all {
			if p.Name == want {
				ids = append(ids, p.ID)
			}
		}
	}
	require.Len(t, ids, len(perms))
	role, err := h.roles.Create(h.ctx, h.admin, RoleCreateInput{Name: name, PermissionIDs: ids})
	require.NoError(t, err)
	return role
}

func (h *harness) employee(t *testing.T, roleID string) *domain.Employee {
	t.Helper()
	h.seq++
	e, err := h.employees.Create(h.ctx, h.admin, EmployeeCreateInput{
		EmployeeCode: fmt.Sprintf("EMP-%04d", h.seq+100),
		Email:        fmt.Sprintf("staff%d@example.com", h.seq),
		Password:     "staff-pass-1",
		FullName:     "Staff Member",
		RoleID:       roleID,
	})
	require.NoError(t, err)
	return e
}

func (h *harness) service(t *testing.T) *domain.Service {
	t.Helper()
	h.seq++
	code := fmt.Sprintf("SVC-%03d", h.seq)
	name, nameAr, category := "Feasibility study", "دراسة جدوى", "consulting"
	price := int64(500000)
	svc, err := h.catalog.Create(h.ctx, h.admin, ServiceInput{
		Code: &code, Name: &name, NameAr: &nameAr, Category: &category, BasePrice: &price,
	})
	require.NoError(t, err)
	return svc
}

func (h *harness) draft(t *testing.T, customer *domain.Customer) *domain.ServiceRequest {
	t.Helper()
	req, err := h.requests.Create(h.ctx, customer.ID, RequestCreateInput{
		ServiceID: h.service(t).ID,
		Title:     "Market study",
	})
	require.NoError(t, err)
	return req
}

// advanceTo walks req through the given statuses as the admin.
func (h *harness) advanceTo(t *testing.T, req *domain.ServiceRequest, path ...domain.RequestStatus) *domain.ServiceRequest {
	t.Helper()
	for _, status := range path {
		var err error
		req, err = h.requests.UpdateStatus(h.ctx, h.admin, req.ID, StatusChangeInput{Status: status})
		require.NoError(t, err)
	}
	return req
}

func requireCode(t *testing.T, err error, code string) *apperrors.DomainError {
	t.Helper()
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	require.Equal(t, code, de.Code, de.Message)
	return de
}
