package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/request-service/internal/api/dto"
	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/repository"
	"github.com/spec-kit/request-service/internal/service"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

// CustomersHandler serves the customer profile and customer administration.
type CustomersHandler struct {
	customers *service.CustomerService
}

// NewCustomersHandler constructs handler.
func NewCustomersHandler(customers *service.CustomerService) *CustomersHandler {
	return &CustomersHandler{customers: customers}
}

// GetProfile handles GET /portal/profile.
func (h *CustomersHandler) GetProfile(c *fiber.Ctx) error {
	p, err := customerPrincipal(c)
	if err != nil {
		return err
	}
	customer, err := h.customers.Get(c.UserContext(), p.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": customerResponse(customer)})
}

// UpdateProfile handles PATCH /portal/profile.
func (h *CustomersHandler) UpdateProfile(c *fiber.Ctx) error {
	p, err := customerPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CustomerProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	customer, err := h.customers.UpdateProfile(c.UserContext(), p.ID, service.CustomerProfileInput{
		FullName:           req.FullName,
		FullNameAr:         req.FullNameAr,
		Phone:              req.Phone,
		NationalID:         req.NationalID,
		OrganizationName:   req.OrganizationName,
		OrganizationNameAr: req.OrganizationNameAr,
		CommercialRegister: req.CommercialRegister,
		Address:            req.Address,
		City:               req.City,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": customerResponse(customer)})
}

// List handles GET /admin/customers.
func (h *CustomersHandler) List(c *fiber.Ctx) error {
	limit, offset := page(c)
	filter := repository.CustomerFilter{SearchTerm: optionalQuery(c, "search"), Limit: limit, Offset: offset}
	if v := optionalQuery(c, "status"); v != nil {
		status := domain.PrincipalStatus(strings.ToUpper(*v))
		filter.Status = &status
	}
	if v := optionalQuery(c, "type"); v != nil {
		kind := domain.CustomerType(strings.ToUpper(*v))
		filter.Type = &kind
	}
	items, total, err := h.customers.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	out := make([]*dto.CustomerResponse, 0, len(items))
	for i := range items {
		out = append(out, customerResponse(&items[i]))
	}
	return listResponse(c, out, total, limit, offset)
}

// Get handles GET /admin/customers/:id.
func (h *CustomersHandler) Get(c *fiber.Ctx) error {
	customer, err := h.customers.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": customerResponse(customer)})
}

// SetStatus handles PATCH /admin/customers/:id/status.
func (h *CustomersHandler) SetStatus(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.StatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	customer, err := h.customers.SetStatus(c.UserContext(), p, c.Params("id"), domain.PrincipalStatus(strings.ToUpper(req.Status)))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": customerResponse(customer)})
}

// Delete handles DELETE /admin/customers/:id.
func (h *CustomersHandler) Delete(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.customers.Delete(c.UserContext(), p, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// EmployeesHandler administers employee accounts.
type EmployeesHandler struct {
	employees *service.EmployeeService
}

// NewEmployeesHandler constructs handler.
func NewEmployeesHandler(employees *service.EmployeeService) *EmployeesHandler {
	return &EmployeesHandler{employees: employees}
}

// Create handles POST /admin/employees.
func (h *EmployeesHandler) Create(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.EmployeeCreateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	employee, err := h.employees.Create(c.UserContext(), p, service.EmployeeCreateInput{
		EmployeeCode: req.EmployeeCode,
		Email:        req.Email,
		Password:     req.Password,
		FullName:     req.FullName,
		FullNameAr:   req.FullNameAr,
		Phone:        req.Phone,
		Department:   req.Department,
		JobTitle:     req.JobTitle,
		RoleID:       req.RoleID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": employeeResponse(employee)})
}

// List handles GET /admin/employees.
func (h *EmployeesHandler) List(c *fiber.Ctx) error {
	limit, offset := page(c)
	filter := repository.EmployeeFilter{
		RoleID:     optionalQuery(c, "role_id"),
		Department: optionalQuery(c, "department"),
		SearchTerm: optionalQuery(c, "search"),
		Limit:      limit,
		Offset:     offset,
	}
	if v := optionalQuery(c, "status"); v != nil {
		status := domain.PrincipalStatus(strings.ToUpper(*v))
		filter.Status = &status
	}
	items, total, err := h.employees.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	out := make([]*dto.EmployeeResponse, 0, len(items))
	for i := range items {
		out = append(out, employeeResponse(&items[i]))
	}
	return listResponse(c, out, total, limit, offset)
}

// Get handles GET /admin/employees/:id.
func (h *EmployeesHandler) Get(c *fiber.Ctx) error {
	employee, err := h.employees.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": employeeResponse(employee)})
}

// Update handles PATCH /admin/employees/:id.
func (h *EmployeesHandler) Update(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.EmployeeUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	input := service.EmployeeUpdateInput{
		FullName:   req.FullName,
		FullNameAr: req.FullNameAr,
		Phone:      req.Phone,
		Department: req.Department,
		JobTitle:   req.JobTitle,
		RoleID:     req.RoleID,
	}
	if req.Status != nil {
		status := domain.PrincipalStatus(strings.ToUpper(*req.Status))
		input.Status = &status
	}
	employee, err := h.employees.Update(c.UserContext(), p, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": employeeResponse(employee)})
}

// Delete handles DELETE /admin/employees/:id.
func (h *EmployeesHandler) Delete(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.employees.Delete(c.UserContext(), p, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// RolesHandler administers roles and the permission registry.
type RolesHandler struct {
	roles       *service.RoleService
	permissions *service.PermissionService
}

// NewRolesHandler constructs handler.
func NewRolesHandler(roles *service.RoleService, permissions *service.PermissionService) *RolesHandler {
	return &RolesHandler{roles: roles, permissions: permissions}
}

// Create handles POST /admin/roles.
func (h *RolesHandler) Create(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.RoleCreateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	role, err := h.roles.Create(c.UserContext(), p, service.RoleCreateInput{
		Name:          req.Name,
		NameAr:        req.NameAr,
		Description:   req.Description,
		PermissionIDs: req.PermissionIDs,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": roleResponse(role)})
}

// List handles GET /admin/roles.
func (h *RolesHandler) List(c *fiber.Ctx) error {
	roles, err := h.roles.List(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]dto.RoleResponse, 0, len(roles))
	for i := range roles {
		out = append(out, roleResponse(&roles[i]))
	}
	return c.JSON(fiber.Map{"data": out})
}

// Get handles GET /admin/roles/:id.
func (h *RolesHandler) Get(c *fiber.Ctx) error {
	role, err := h.roles.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": roleResponse(role)})
}

// Update handles PATCH /admin/roles/:id.
func (h *RolesHandler) Update(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.RoleUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	role, err := h.roles.Update(c.UserContext(), p, c.Params("id"), service.RoleUpdateInput{
		Name:          req.Name,
		NameAr:        req.NameAr,
		Description:   req.Description,
		PermissionIDs: req.PermissionIDs,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": roleResponse(role)})
}

// Delete handles DELETE /admin/roles/:id.
func (h *RolesHandler) Delete(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.roles.Delete(c.UserContext(), p, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListPermissions handles GET /admin/permissions.
func (h *RolesHandler) ListPermissions(c *fiber.Ctx) error {
	perms, err := h.permissions.List(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]dto.PermissionResponse, 0, len(perms))
	for _, perm := range perms {
		out = append(out, permissionResponse(perm))
	}
	return c.JSON(fiber.Map{"data": out})
}

// CreatePermission handles POST /admin/permissions.
func (h *RolesHandler) CreatePermission(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.PermissionCreateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Name) == "" {
		return apperrors.NewValidationError("name required", "الاسم مطلوب", map[string]any{"fields": []string{"name"}})
	}
	perm, err := h.permissions.Create(c.UserContext(), p, req.Name, req.Description)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": permissionResponse(*perm)})
}
