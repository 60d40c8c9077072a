package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/request-service/internal/api/http/handlers"
	"github.com/spec-kit/request-service/internal/auth"
	"github.com/spec-kit/request-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Customers      *handlers.CustomersHandler
	Employees      *handlers.EmployeesHandler
	Roles          *handlers.RolesHandler
	Catalog        *handlers.CatalogHandler
	Requests       *handlers.RequestsHandler
	Billing        *handlers.BillingHandler
	Documents      *handlers.DocumentsHandler
	Notifications  *handlers.NotificationsHandler
	Reports        *handlers.ReportsHandler
	AuthMiddleware *auth.Middleware
	Gate           *auth.Gate
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	app.Get("/services", cfg.Catalog.ListActive)
	app.Get("/services/:id", cfg.Catalog.GetActive)

	authGroup := app.Group("/auth")
	authGroup.Post("/customers/register", cfg.Auth.RegisterCustomer)
	authGroup.Post("/customers/login", cfg.Auth.LoginCustomer)
	authGroup.Post("/employees/login", cfg.Auth.LoginEmployee)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Post("/password/reset/request", cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Auth.ConfirmPasswordReset)
	authGroup.Post("/email/verify", cfg.Auth.VerifyEmail)

	authed := authGroup.Group("", cfg.AuthMiddleware.Handle)
	authed.Get("/me", cfg.Auth.Me)
	authed.Post("/password/change", cfg.Auth.ChangePassword)
	authed.Post("/email/resend", auth.RequireCustomer(), cfg.Auth.ResendVerification)

	notifications := app.Group("/notifications", cfg.AuthMiddleware.Handle)
	notifications.Get("/", cfg.Notifications.List)
	notifications.Get("/unread-count", cfg.Notifications.UnreadCount)
	notifications.Post("/read-all", cfg.Notifications.MarkAllRead)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)

	registerPortalRoutes(app, cfg)
	registerAdminRoutes(app, cfg)
}

// registerPortalRoutes exposes the customer's own data.
func registerPortalRoutes(app *fiber.App, cfg RouteConfig) {
	portal := app.Group("/portal", cfg.AuthMiddleware.Handle, auth.RequireCustomer())
	portal.Get("/profile", cfg.Customers.GetProfile)
	portal.Patch("/profile", cfg.Customers.UpdateProfile)

	portal.Post("/requests", cfg.Requests.Create)
	portal.Get("/requests", cfg.Requests.ListMine)
	portal.Get("/requests/:id", cfg.Requests.GetMine)
	portal.Patch("/requests/:id", cfg.Requests.Update)
	portal.Post("/requests/:id/submit", cfg.Requests.Submit)
	portal.Post("/requests/:id/cancel", cfg.Requests.Cancel)

	portal.Get("/requests/:id/documents", cfg.Documents.List)
	portal.Post("/requests/:id/documents", cfg.Documents.Upload)
	portal.Get("/documents/:id/download", cfg.Documents.Download)
	portal.Delete("/documents/:id", cfg.Documents.Delete)

	portal.Get("/invoices", cfg.Billing.ListMyInvoices)
	portal.Get("/invoices/:id", cfg.Billing.GetMyInvoice)
	portal.Post("/invoices/:id/payments", cfg.Billing.SubmitPayment)
}

// registerAdminRoutes exposes employee operations, each gated by permission.
func registerAdminRoutes(app *fiber.App, cfg RouteConfig) {
	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireEmployee())
	can := func(perms ...string) fiber.Handler {
		return auth.RequirePermissions(cfg.Gate, cfg.Metrics, perms...)
	}

	admin.Get("/permissions", can(auth.PermPermissionsRead), cfg.Roles.ListPermissions)
	admin.Post("/permissions", can(auth.PermPermissionsCreate), cfg.Roles.CreatePermission)

	admin.Get("/roles", can(auth.PermRolesRead), cfg.Roles.List)
	admin.Post("/roles", can(auth.PermRolesCreate), cfg.Roles.Create)
	admin.Get("/roles/:id", can(auth.PermRolesRead), cfg.Roles.Get)
	admin.Patch("/roles/:id", can(auth.PermRolesUpdate), cfg.Roles.Update)
	admin.Delete("/roles/:id", can(auth.PermRolesDelete), cfg.Roles.Delete)

	admin.Get("/employees", can(auth.PermEmployeesRead), cfg.Employees.List)
	admin.Post("/employees", can(auth.PermEmployeesCreate), cfg.Employees.Create)
	admin.Get("/employees/:id", can(auth.PermEmployeesRead), cfg.Employees.Get)
	admin.Patch("/employees/:id", can(auth.PermEmployeesUpdate), cfg.Employees.Update)
	admin.Delete("/employees/:id", can(auth.PermEmployeesDelete), cfg.Employees.Delete)

	admin.Get("/customers", can(auth.PermCustomersRead), cfg.Customers.List)
	admin.Get("/customers/:id", can(auth.PermCustomersRead), cfg.Customers.Get)
	admin.Patch("/customers/:id/status", can(auth.PermCustomersUpdate), cfg.Customers.SetStatus)
	admin.Delete("/customers/:id", can(auth.PermCustomersDelete), cfg.Customers.Delete)

	admin.Get("/services", can(auth.PermServicesRead), cfg.Catalog.List)
	admin.Post("/services", can(auth.PermServicesCreate), cfg.Catalog.Create)
	admin.Get("/services/:id", can(auth.PermServicesRead), cfg.Catalog.Get)
	admin.Patch("/services/:id", can(auth.PermServicesUpdate), cfg.Catalog.Update)
	admin.Delete("/services/:id", can(auth.PermServicesDelete), cfg.Catalog.Delete)

	admin.Get("/requests", can(auth.PermRequestsRead), cfg.Requests.List)
	admin.Get("/requests/:id", can(auth.PermRequestsRead), cfg.Requests.Get)
	admin.Patch("/requests/:id", can(auth.PermRequestsUpdate), cfg.Requests.Update)
	admin.Patch("/requests/:id/status", can(auth.PermRequestsUpdateStatus), cfg.Requests.UpdateStatus)
	admin.Post("/requests/:id/assign", can(auth.PermRequestsAssign), cfg.Requests.Assign)
	admin.Delete("/requests/:id", can(auth.PermRequestsDelete), cfg.Requests.Delete)

	admin.Get("/requests/:id/documents", can(auth.PermDocumentsRead), cfg.Documents.List)
	admin.Post("/requests/:id/documents", can(auth.PermDocumentsUpload), cfg.Documents.Upload)
	admin.Get("/documents/:id/download", can(auth.PermDocumentsRead), cfg.Documents.Download)
	admin.Delete("/documents/:id", can(auth.PermDocumentsDelete), cfg.Documents.Delete)

	admin.Get("/invoices", can(auth.PermInvoicesRead), cfg.Billing.ListInvoices)
	admin.Post("/invoices", can(auth.PermInvoicesCreate), cfg.Billing.CreateInvoice)
	admin.Get("/invoices/:id", can(auth.PermInvoicesRead), cfg.Billing.GetInvoice)
	admin.Patch("/invoices/:id/status", can(auth.PermInvoicesUpdate), cfg.Billing.UpdateInvoiceStatus)
	admin.Get("/invoices/:id/payments", can(auth.PermPaymentsRead), cfg.Billing.ListPayments)
	admin.Post("/invoices/:id/payments", can(auth.PermPaymentsCreate), cfg.Billing.RecordPayment)
	admin.Post("/payments/:id/confirm", can(auth.PermPaymentsUpdate), cfg.Billing.ConfirmPayment)
	admin.Post("/payments/:id/reject", can(auth.PermPaymentsUpdate), cfg.Billing.RejectPayment)
	admin.Post("/payments/:id/refund", can(auth.PermPaymentsUpdate), cfg.Billing.RefundPayment)

	admin.Get("/dashboard", can(auth.PermDashboardRead), cfg.Reports.Dashboard)
	admin.Get("/audit", can(auth.PermAuditRead), cfg.Reports.AuditLog)
}
