package auth

import (
	"sort"

	"github.com/spec-kit/request-service/internal/domain"
)

// Registry permission names used by route declarations.
const (
	PermCustomersRead   = "customers:read"
	PermCustomersUpdate = "customers:update"
	PermCustomersDelete = "customers:delete"

	PermEmployeesRead   = "employees:read"
	PermEmployeesCreate = "employees:create"
	PermEmployeesUpdate = "employees:update"
	PermEmployeesDelete = "employees:delete"

	PermRolesRead   = "roles:read"
	PermRolesCreate = "roles:create"
	PermRolesUpdate = "roles:update"
	PermRolesDelete = "roles:delete"

	PermPermissionsRead   = "permissions:read"
	PermPermissionsCreate = "permissions:create"

	PermServicesRead   = "services:read"
	PermServicesCreate = "services:create"
	PermServicesUpdate = "services:update"
	PermServicesDelete = "services:delete"

	PermRequestsRead         = "requests:read"
	PermRequestsUpdate       = "requests:update"
	PermRequestsUpdateStatus = "requests:update_status"
	PermRequestsAssign       = "requests:assign"
	PermRequestsDelete       = "requests:delete"

	PermInvoicesRead   = "invoices:read"
	PermInvoicesCreate = "invoices:create"
	PermInvoicesUpdate = "invoices:update"

	PermPaymentsRead   = "payments:read"
	PermPaymentsCreate = "payments:create"
	PermPaymentsUpdate = "payments:update"

	PermDocumentsRead   = "documents:read"
	PermDocumentsUpload = "documents:upload"
	PermDocumentsDelete = "documents:delete"

	PermDashboardRead = "dashboard:read"
	PermAuditRead     = "audit:read"
)

// Customer capabilities. They never appear in the registry; every customer
// holds all of them.
const (
	CapRequestsCreateOwn  = "requests:create_own"
	CapRequestsReadOwn    = "requests:read_own"
	CapRequestsUpdateOwn  = "requests:update_own"
	CapRequestsSubmitOwn  = "requests:submit_own"
	CapRequestsCancelOwn  = "requests:cancel_own"
	CapDocumentsUploadOwn = "documents:upload_own"
	CapDocumentsReadOwn   = "documents:read_own"
	CapInvoicesReadOwn    = "invoices:read_own"
	CapPaymentsCreateOwn  = "payments:create_own"
)

var builtinDescriptions = map[string]string{
	PermCustomersRead:        "View customer accounts",
	PermCustomersUpdate:      "Activate or deactivate customer accounts",
	PermCustomersDelete:      "Delete customer accounts",
	PermEmployeesRead:        "View employees",
	PermEmployeesCreate:      "Create employees",
	PermEmployeesUpdate:      "Update employees",
	PermEmployeesDelete:      "Delete employees",
	PermRolesRead:            "View roles",
	PermRolesCreate:          "Create roles",
	PermRolesUpdate:          "Update roles and their permissions",
	PermRolesDelete:          "Delete roles",
	PermPermissionsRead:      "View the permission registry",
	PermPermissionsCreate:    "Register new permissions",
	PermServicesRead:         "View the full service catalog",
	PermServicesCreate:       "Create catalog services",
	PermServicesUpdate:       "Update catalog services",
	PermServicesDelete:       "Delete catalog services",
	PermRequestsRead:         "View all service requests",
	PermRequestsUpdate:       "Edit service request details",
	PermRequestsUpdateStatus: "Move service requests through the workflow",
	PermRequestsAssign:       "Assign service requests to employees",
	PermRequestsDelete:       "Delete service requests",
	PermInvoicesRead:         "View invoices",
	PermInvoicesCreate:       "Create invoices",
	PermInvoicesUpdate:       "Change invoice status",
	PermPaymentsRead:         "View payments",
	PermPaymentsCreate:       "Record payments",
	PermPaymentsUpdate:       "Confirm, reject and refund payments",
	PermDocumentsRead:        "View and download documents",
	PermDocumentsUpload:      "Upload documents",
	PermDocumentsDelete:      "Delete documents",
	PermDashboardRead:        "View dashboard statistics",
	PermAuditRead:            "View the audit log",
}

// BuiltinPermissions returns the catalog seeded at bootstrap, ordered by name.
func BuiltinPermissions() []domain.Permission {
	names := make([]string, 0, len(builtinDescriptions))
	for name := range builtinDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)

	perms := make([]domain.Permission, 0, len(names))
	for _, name := range names {
		module, action, _ := domain.ParsePermissionName(name)
		perms = append(perms, domain.Permission{
			Name:        name,
			Module:      module,
			Action:      action,
			Description: builtinDescriptions[name],
		})
	}
	return perms
}

// CustomerCapabilities returns the fixed capability set of every customer.
func CustomerCapabilities() PermissionSet {
	return NewPermissionSet(
		CapRequestsCreateOwn,
		CapRequestsReadOwn,
		CapRequestsUpdateOwn,
		CapRequestsSubmitOwn,
		CapRequestsCancelOwn,
		CapDocumentsUploadOwn,
		CapDocumentsReadOwn,
		CapInvoicesReadOwn,
		CapPaymentsCreateOwn,
	)
}
