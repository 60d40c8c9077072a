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

// RequestsHandler serves service requests to customers (their own) and to
// employees (all of them).
type RequestsHandler struct {
	requests    *service.RequestService
	assignments *service.AssignmentService
}

// NewRequestsHandler constructs handler.
func NewRequestsHandler(requests *service.RequestService, assignments *service.AssignmentService) *RequestsHandler {
	return &RequestsHandler{requests: requests, assignments: assignments}
}

// Create handles POST /portal/requests.
func (h *RequestsHandler) Create(c *fiber.Ctx) error {
	p, err := customerPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateRequestBody
	if err := parseBody(c, &req); err != nil {
		return err
	}
	created, err := h.requests.Create(c.UserContext(), p.ID, service.RequestCreateInput{
		ServiceID:     req.ServiceID,
		Priority:      domain.RequestPriority(strings.ToUpper(strings.TrimSpace(req.Priority))),
		Title:         req.Title,
		TitleAr:       req.TitleAr,
		Description:   req.Description,
		DescriptionAr: req.DescriptionAr,
		Notes:         req.Notes,
		NotesAr:       req.NotesAr,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": requestResponse(created)})
}

// ListMine handles GET /portal/requests.
func (h *RequestsHandler) ListMine(c *fiber.Ctx) error {
	p, err := customerPrincipal(c)
	if err != nil {
		return err
	}
	filter := parseRequestQuery(c)
	items, total, err := h.requests.ListForCustomer(c.UserContext(), p.ID, filter)
	if err != nil {
		return err
	}
	return listResponse(c, requestList(items), total, filter.Limit, filter.Offset)
}

// GetMine handles GET /portal/requests/:id.
func (h *RequestsHandler) GetMine(c *fiber.Ctx) error {
	p, err := customerPrincipal(c)
	if err != nil {
		return err
	}
	req, err := h.requests.GetForCustomer(c.UserContext(), p.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestResponse(req)})
}

// Update handles PATCH /portal/requests/:id and PATCH /admin/requests/:id.
func (h *RequestsHandler) Update(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateRequestBody
	if err := parseBody(c, &req); err != nil {
		return err
	}
	input := service.RequestUpdateInput{
		Title:         req.Title,
		TitleAr:       req.TitleAr,
		Description:   req.Description,
		DescriptionAr: req.DescriptionAr,
		Notes:         req.Notes,
		NotesAr:       req.NotesAr,
	}
	if req.Priority != nil {
		priority := domain.RequestPriority(strings.ToUpper(strings.TrimSpace(*req.Priority)))
		input.Priority = &priority
	}
	updated, err := h.requests.Update(c.UserContext(), p, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestResponse(updated)})
}

// Submit handles POST /portal/requests/:id/submit.
func (h *RequestsHandler) Submit(c *fiber.Ctx) error {
	p, err := customerPrincipal(c)
	if err != nil {
		return err
	}
	updated, err := h.requests.Submit(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestResponse(updated)})
}

// Cancel handles POST /portal/requests/:id/cancel.
func (h *RequestsHandler) Cancel(c *fiber.Ctx) error {
	p, err := customerPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CancelBody
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	updated, err := h.requests.Cancel(c.UserContext(), p, c.Params("id"), req.Reason, req.ReasonAr)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestResponse(updated)})
}

// List handles GET /admin/requests.
func (h *RequestsHandler) List(c *fiber.Ctx) error {
	filter := parseRequestQuery(c)
	filter.CustomerID = optionalQuery(c, "customer_id")
	filter.AssignedToID = optionalQuery(c, "assigned_to_id")
	items, total, err := h.requests.FindAll(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return listResponse(c, requestList(items), total, filter.Limit, filter.Offset)
}

// Get handles GET /admin/requests/:id.
func (h *RequestsHandler) Get(c *fiber.Ctx) error {
	req, err := h.requests.FindOne(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestResponse(req)})
}

// UpdateStatus handles PATCH /admin/requests/:id/status.
func (h *RequestsHandler) UpdateStatus(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.StatusChangeBody
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Status) == "" {
		return apperrors.NewValidationError("status required", "الحالة مطلوبة", map[string]any{"fields": []string{"status"}})
	}
	updated, err := h.requests.UpdateStatus(c.UserContext(), p, c.Params("id"), service.StatusChangeInput{
		Status:   domain.RequestStatus(strings.ToUpper(strings.TrimSpace(req.Status))),
		Reason:   req.Reason,
		ReasonAr: req.ReasonAr,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestResponse(updated)})
}

// Assign handles POST /admin/requests/:id/assign.
func (h *RequestsHandler) Assign(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.AssignBody
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.EmployeeID) == "" {
		return apperrors.NewValidationError("employee_id required", "معرف الموظف مطلوب",
			map[string]any{"fields": []string{"employee_id"}})
	}
	updated, err := h.assignments.AssignEmployee(c.UserContext(), p, c.Params("id"), req.EmployeeID, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestResponse(updated)})
}

// Delete handles DELETE /admin/requests/:id.
func (h *RequestsHandler) Delete(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.requests.Remove(c.UserContext(), p, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func parseRequestQuery(c *fiber.Ctx) repository.RequestFilter {
	limit, offset := page(c)
	filter := repository.RequestFilter{
		ServiceID:   optionalQuery(c, "service_id"),
		SearchTerm:  optionalQuery(c, "search"),
		CreatedFrom: parseTime(c.Query("created_from")),
		CreatedTo:   parseTime(c.Query("created_to")),
		Limit:       limit,
		Offset:      offset,
	}
	for _, st := range splitQuery(c, "status") {
		filter.Statuses = append(filter.Statuses, domain.RequestStatus(st))
	}
	for _, pr := range splitQuery(c, "priority") {
		filter.Priorities = append(filter.Priorities, domain.RequestPriority(pr))
	}
	return filter
}

// CatalogHandler serves the service catalog.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler constructs handler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListActive handles GET /services.
func (h *CatalogHandler) ListActive(c *fiber.Ctx) error {
	items, err := h.catalog.ListActive(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": serviceList(items)})
}

// GetActive handles GET /services/:id.
func (h *CatalogHandler) GetActive(c *fiber.Ctx) error {
	svc, err := h.catalog.GetActive(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": serviceResponse(svc)})
}

// List handles GET /admin/services.
func (h *CatalogHandler) List(c *fiber.Ctx) error {
	items, err := h.catalog.List(c.UserContext(), c.QueryBool("include_inactive", true))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": serviceList(items)})
}

// Get handles GET /admin/services/:id.
func (h *CatalogHandler) Get(c *fiber.Ctx) error {
	svc, err := h.catalog.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": serviceResponse(svc)})
}

// Create handles POST /admin/services.
func (h *CatalogHandler) Create(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.ServiceRequestBody
	if err := parseBody(c, &req); err != nil {
		return err
	}
	svc, err := h.catalog.Create(c.UserContext(), p, serviceInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": serviceResponse(svc)})
}

// Update handles PATCH /admin/services/:id.
func (h *CatalogHandler) Update(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.ServiceRequestBody
	if err := parseBody(c, &req); err != nil {
		return err
	}
	svc, err := h.catalog.Update(c.UserContext(), p, c.Params("id"), serviceInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": serviceResponse(svc)})
}

// Delete handles DELETE /admin/services/:id.
func (h *CatalogHandler) Delete(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.catalog.Delete(c.UserContext(), p, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func serviceInput(req dto.ServiceRequestBody) service.ServiceInput {
	return service.ServiceInput{
		Code:          req.Code,
		Name:          req.Name,
		NameAr:        req.NameAr,
		Description:   req.Description,
		DescriptionAr: req.DescriptionAr,
		Category:      req.Category,
		BasePrice:     req.BasePrice,
		Currency:      req.Currency,
		EstimatedDays: req.EstimatedDays,
		IsActive:      req.IsActive,
	}
}

func serviceList(items []domain.Service) []dto.ServiceResponse {
	out := make([]dto.ServiceResponse, 0, len(items))
	for i := range items {
		out = append(out, serviceResponse(&items[i]))
	}
	return out
}
