package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/request-service/internal/api/http/handlers"
	"github.com/spec-kit/request-service/internal/auth"
	"github.com/spec-kit/request-service/internal/config"
	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/events"
	"github.com/spec-kit/request-service/internal/observability"
	"github.com/spec-kit/request-service/internal/persistence"
	"github.com/spec-kit/request-service/internal/repository/memory"
	"github.com/spec-kit/request-service/internal/service"
	"github.com/spec-kit/request-service/internal/storage"
)

type testServer struct {
	app     *fiber.App
	metrics *observability.Metrics
	roles   *service.RoleService
	perms   *service.PermissionService
	staff   *service.EmployeeService
	owner   *domain.Employee
	admin   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	cfg := config.Config{
		App: config.AppConfig{Name: "request-service", Version: "test"},
		Auth: config.AuthConfig{
			JWTSecret:                 "router-secret",
			AccessTokenTTLMinutes:     15,
			RefreshTokenTTLHours:      24,
			PasswordResetTTLMinutes:   30,
			EmailVerificationTTLHours: 48,
			BcryptCost:                4,
		},
		Billing: config.BillingConfig{VATBasisPoints: 1500, Currency: "SAR", DefaultDueDays: 30},
		Storage: config.StorageConfig{MaxUploadBytes: 1024, AllowedMimeTypes: []string{"application/pdf"}},
	}
	repos := memory.NewStore().Repositories()
	blobs := storage.NewMemoryStore()
	dispatcher := events.NewInMemoryDispatcher(nil)
	metrics := observability.NewMetrics()

	audit := service.NewAuditService(repos.Audit, nil)
	permissions := service.NewPermissionService(repos.Permissions, audit, nil)
	require.NoError(t, service.Bootstrap(ctx, cfg.Auth, service.BootstrapDependencies{
		Permissions: permissions, RoleRepo: repos.Roles, EmployeeRepo: repos.Employees,
	}))
	adminRole, err := repos.Roles.GetAdmin(ctx)
	require.NoError(t, err)
	owner, err := service.EnsureAdminEmployee(ctx, repos.Employees, adminRole, service.AdminAccount{
		Email: "admin@example.com", Password: "admin-pass-1", EmployeeCode: "EMP-0001",
	}, 4)
	require.NoError(t, err)

	authService := service.NewAuthService(cfg, service.AuthDependencies{
		CustomerRepo: repos.Customers, EmployeeRepo: repos.Employees, RefreshTokenRepo: repos.RefreshTokens,
		PasswordResetRepo: repos.PasswordResets, EmailVerificationRepo: repos.EmailVerifications, Audit: audit,
	})
	roles := service.NewRoleService(service.RoleDependencies{
		RoleRepo: repos.Roles, PermissionRepo: repos.Permissions, EmployeeRepo: repos.Employees, Audit: audit,
	})
	employees := service.NewEmployeeService(service.EmployeeDependencies{
		EmployeeRepo: repos.Employees, RoleRepo: repos.Roles, RefreshTokenRepo: repos.RefreshTokens,
		Audit: audit, BcryptCost: 4,
	})
	requests := service.NewRequestService(service.RequestDependencies{
		RequestRepo: repos.Requests, CatalogRepo: repos.Catalog, InvoiceRepo: repos.Invoices,
		DocumentRepo: repos.Documents, Blobs: blobs, Dispatcher: dispatcher, Audit: audit, Metrics: metrics,
	})
	assignments := service.NewAssignmentService(service.AssignmentDependencies{
		RequestRepo: repos.Requests, EmployeeRepo: repos.Employees, Dispatcher: dispatcher, Audit: audit,
	})
	invoices := service.NewInvoiceService(service.InvoiceDependencies{
		InvoiceRepo: repos.Invoices, RequestRepo: repos.Requests, Dispatcher: dispatcher, Audit: audit, Billing: cfg.Billing,
	})
	payments := service.NewPaymentService(service.PaymentDependencies{
		PaymentRepo: repos.Payments, InvoiceRepo: repos.Invoices, Dispatcher: dispatcher, Audit: audit,
	})
	documents := service.NewDocumentService(service.DocumentDependencies{
		DocumentRepo: repos.Documents, RequestRepo: repos.Requests, Blobs: blobs, Dispatcher: dispatcher,
		Audit: audit, Storage: cfg.Storage,
	})
	notifications := service.NewNotificationService(repos.Notifications, dispatcher, nil, cfg.Notification)
	notifications.RegisterHandlers()
	dashboard := service.NewDashboardService(service.DashboardDependencies{
		RequestRepo: repos.Requests, CustomerRepo: repos.Customers, EmployeeRepo: repos.Employees, InvoiceRepo: repos.Invoices,
	})

	gate := auth.NewGate(repos.Roles, repos.Permissions)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterMiddlewares(app, zap.NewNop(), metrics, MiddlewareConfig{CORSAllowOrigins: "*"})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, &persistence.Postgres{}, nil),
		Auth:           handlers.NewAuthHandler(authService, gate),
		Customers:      handlers.NewCustomersHandler(service.NewCustomerService(repos.Customers, repos.RefreshTokens, audit, nil)),
		Employees:      handlers.NewEmployeesHandler(employees),
		Roles:          handlers.NewRolesHandler(roles, permissions),
		Catalog:        handlers.NewCatalogHandler(service.NewCatalogService(repos.Catalog, audit, cfg.Billing.Currency)),
		Requests:       handlers.NewRequestsHandler(requests, assignments),
		Billing:        handlers.NewBillingHandler(invoices, payments),
		Documents:      handlers.NewDocumentsHandler(documents),
		Notifications:  handlers.NewNotificationsHandler(notifications),
		Reports:        handlers.NewReportsHandler(dashboard, audit),
		AuthMiddleware: auth.NewMiddleware(authService.TokenManager(), repos.Customers, repos.Employees),
		Gate:           gate,
		Metrics:        metrics,
	})

	s := &testServer{app: app, metrics: metrics, roles: roles, perms: permissions, staff: employees, owner: owner}
	s.admin = s.login(t, "/auth/employees/login", "admin@example.com", "admin-pass-1")
	return s
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code      string         `json:"code"`
		Message   string         `json:"message"`
		MessageAr string         `json:"messageAr"`
		Details   map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func (s *testServer) login(t *testing.T, path, email, password string) string {
	t.Helper()
	status, env := s.do(t, fiber.MethodPost, path, "", map[string]string{"email": email, "password": password})
	require.Equal(t, fiber.StatusOK, status)
	var out struct {
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.NotEmpty(t, out.Tokens.AccessToken)
	return out.Tokens.AccessToken
}

func (s *testServer) registerCustomer(t *testing.T, email string) string {
	t.Helper()
	status, _ := s.do(t, fiber.MethodPost, "/auth/customers/register", "", map[string]string{
		"email":         email,
		"password":      "customer-pass",
		"full_name":     "Test Customer",
		"customer_type": "individual",
		"national_id":   "1012345678",
	})
	require.Equal(t, fiber.StatusCreated, status)
	return s.login(t, "/auth/customers/login", email, "customer-pass")
}

func (s *testServer) createService(t *testing.T) string {
	t.Helper()
	status, env := s.do(t, fiber.MethodPost, "/admin/services", s.admin, map[string]any{
		"code": "SVC-001", "name": "Feasibility study", "name_ar": "دراسة جدوى", "category": "consulting", "base_price": 500000,
	})
	require.Equal(t, fiber.StatusCreated, status)
	var svc struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &svc))
	return svc.ID
}

func idOf(t *testing.T, env envelope) string {
	t.Helper()
	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out.ID
}

func TestHealthProbes(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)

	req := httptest.NewRequest(fiber.MethodGet, "/health/ready", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var ready struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ready))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, "memory", ready.Dependencies["postgres"])
	assert.Equal(t, "disabled", ready.Dependencies["redis"])

	metricsResp, err := s.app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	body, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, metricsResp.StatusCode)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestErrorEnvelope(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, fiber.MethodGet, "/portal/requests", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
	assert.NotEmpty(t, env.Error.MessageAr)

	status, env = s.do(t, fiber.MethodGet, "/portal/requests", "not-a-jwt", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, env = s.do(t, fiber.MethodGet, "/no/such/route", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	customer := s.registerCustomer(t, "owner@example.com")
	status, env = s.do(t, fiber.MethodPost, "/portal/requests", customer, map[string]string{})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.ElementsMatch(t, []any{"service_id", "title"}, env.Error.Details["fields"])

	status, env = s.do(t, fiber.MethodPost, "/portal/requests", customer, "{broken")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)

	status, env = s.do(t, fiber.MethodGet, "/portal/requests/"+uuid.NewString(), customer, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	status, env = s.do(t, fiber.MethodGet, "/portal/requests/not-a-uuid", customer, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestPrincipalKindsAreSeparated(t *testing.T) {
	s := newTestServer(t)
	customer := s.registerCustomer(t, "owner@example.com")

	status, env := s.do(t, fiber.MethodGet, "/admin/requests", customer, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, env = s.do(t, fiber.MethodGet, "/portal/requests", s.admin, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, env = s.do(t, fiber.MethodGet, "/auth/me", customer, nil)
	assert.Equal(t, fiber.StatusOK, status)
	var me struct {
		Kind        string   `json:"kind"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, string(domain.SubjectTypeCustomer), me.Kind)
	assert.Contains(t, me.Permissions, auth.CapRequestsCreateOwn)
}

func TestPermissionGate(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	all, err := s.perms.List(ctx)
	require.NoError(t, err)
	var readID string
	for _, p := range all {
		if p.Name == auth.PermRequestsRead {
			readID = p.ID
		}
	}
	require.NotEmpty(t, readID)

	role, err := s.roles.Create(ctx, s.owner, service.RoleCreateInput{Name: "Viewer", PermissionIDs: []string{readID}})
	require.NoError(t, err)
	_, err = s.staff.Create(ctx, s.owner, service.EmployeeCreateInput{
		EmployeeCode: "EMP-0002", Email: "viewer@example.com", Password: "staff-pass-1", FullName: "Viewer", RoleID: role.ID,
	})
	require.NoError(t, err)
	viewer := s.login(t, "/auth/employees/login", "viewer@example.com", "staff-pass-1")

	status, _ := s.do(t, fiber.MethodGet, "/admin/requests", viewer, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, env := s.do(t, fiber.MethodGet, "/admin/dashboard", viewer, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, []any{auth.PermDashboardRead}, env.Error.Details["missing"])

	status, _ = s.do(t, fiber.MethodGet, "/admin/dashboard", s.admin, nil)
	assert.Equal(t, fiber.StatusOK, status)

	families, err := s.metrics.Registry().Gather()
	require.NoError(t, err)
	var denied float64
	for _, mf := range families {
		if mf.GetName() != "authorization_denials_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			denied += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(1), denied)
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	serviceID := s.createService(t)
	customer := s.registerCustomer(t, "owner@example.com")

	status, env := s.do(t, fiber.MethodGet, "/services", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(env.Data), serviceID)

	status, env = s.do(t, fiber.MethodPost, "/portal/requests", customer, map[string]string{
		"service_id": serviceID, "title": "Market study",
	})
	require.Equal(t, fiber.StatusCreated, status)
	requestID := idOf(t, env)

	status, _ = s.do(t, fiber.MethodPost, "/portal/requests/"+requestID+"/submit", customer, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, env = s.do(t, fiber.MethodGet, "/admin/requests/"+requestID, s.admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, requestID, idOf(t, env))

	status, env = s.do(t, fiber.MethodPatch, "/admin/requests/"+requestID+"/status", s.admin, map[string]string{"status": "delivered"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)
	assert.Equal(t, "SUBMITTED", env.Error.Details["from"])

	status, env = s.do(t, fiber.MethodPatch, "/admin/requests/"+requestID+"/status", s.admin, map[string]string{"status": "under_review"})
	require.Equal(t, fiber.StatusOK, status)
	var updated struct {
		Status             string   `json:"status"`
		AllowedTransitions []string `json:"allowed_transitions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "UNDER_REVIEW", updated.Status)
	assert.Contains(t, updated.AllowedTransitions, "APPROVED")

	status, env = s.do(t, fiber.MethodGet, "/notifications/unread-count", customer, nil)
	assert.Equal(t, fiber.StatusOK, status)
	var inbox struct {
		Unread int `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &inbox))
	assert.Equal(t, 2, inbox.Unread)
}
