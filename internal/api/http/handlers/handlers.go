package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/request-service/internal/api/dto"
	"github.com/spec-kit/request-service/internal/auth"
	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/repository"
	"github.com/spec-kit/request-service/internal/service"
	"github.com/spec-kit/request-service/internal/workflow"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

func principal(c *fiber.Ctx) (*auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required", "المصادقة مطلوبة")
	}
	return p, nil
}

func customerPrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	p, err := principal(c)
	if err != nil {
		return nil, err
	}
	if !p.IsCustomer() {
		return nil, apperrors.NewForbidden("customer access required", "هذه العملية متاحة للعملاء فقط", nil)
	}
	return p, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", "البيانات المرسلة غير صالحة", nil)
	}
	return nil
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

// page reads page/limit query values into a limit and offset.
func page(c *fiber.Ctx) (limit, offset int) {
	limit, _ = repository.NormalizePage(parseInt(c.Query("limit"), 20), 0)
	return limit, (parseInt(c.Query("page"), 1) - 1) * limit
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return nil
	}
	return &val
}

func splitQuery(c *fiber.Ctx, key string) []string {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}

func listResponse(c *fiber.Ctx, items any, total, limit, offset int) error {
	return c.JSON(fiber.Map{
		"data": items,
		"meta": dto.PageMeta{Total: total, Limit: limit, Offset: offset},
	})
}

func tokenResponse(pair service.TokenPair) dto.TokenResponse {
	return dto.TokenResponse{
		AccessToken:      pair.AccessToken,
		TokenType:        "Bearer",
		ExpiresAt:        pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}

func customerResponse(c *domain.Customer) *dto.CustomerResponse {
	return &dto.CustomerResponse{
		ID:                 c.ID,
		Email:              c.Email,
		FullName:           c.FullName,
		FullNameAr:         c.FullNameAr,
		Phone:              c.Phone,
		CustomerType:       string(c.CustomerType),
		NationalID:         c.NationalID,
		OrganizationName:   c.OrganizationName,
		OrganizationNameAr: c.OrganizationNameAr,
		CommercialRegister: c.CommercialRegister,
		Address:            c.Address,
		City:               c.City,
		Status:             string(c.Status),
		EmailVerifiedAt:    c.EmailVerifiedAt,
		LastLoginAt:        c.LastLoginAt,
		LoginCount:         c.LoginCount,
		CreatedAt:          c.CreatedAt,
	}
}

func employeeResponse(e *domain.Employee) *dto.EmployeeResponse {
	return &dto.EmployeeResponse{
		ID:           e.ID,
		EmployeeCode: e.EmployeeCode,
		Email:        e.Email,
		FullName:     e.FullName,
		FullNameAr:   e.FullNameAr,
		Phone:        e.Phone,
		Department:   e.Department,
		JobTitle:     e.JobTitle,
		RoleID:       e.RoleID,
		Status:       string(e.Status),
		LastLoginAt:  e.LastLoginAt,
		LoginCount:   e.LoginCount,
		CreatedAt:    e.CreatedAt,
	}
}

func permissionResponse(p domain.Permission) dto.PermissionResponse {
	return dto.PermissionResponse{
		ID:          p.ID,
		Name:        p.Name,
		Module:      p.Module,
		Action:      p.Action,
		Description: p.Description,
	}
}

func roleResponse(r *domain.Role) dto.RoleResponse {
	perms := make([]dto.PermissionResponse, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, permissionResponse(p))
	}
	return dto.RoleResponse{
		ID:            r.ID,
		Name:          r.Name,
		NameAr:        r.NameAr,
		Description:   r.Description,
		IsAdmin:       r.IsAdmin,
		Permissions:   perms,
		EmployeeCount: r.EmployeeCount,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func serviceResponse(s *domain.Service) dto.ServiceResponse {
	return dto.ServiceResponse{
		ID:            s.ID,
		Code:          s.Code,
		Name:          s.Name,
		NameAr:        s.NameAr,
		Description:   s.Description,
		DescriptionAr: s.DescriptionAr,
		Category:      s.Category,
		BasePrice:     s.BasePrice,
		Currency:      s.Currency,
		EstimatedDays: s.EstimatedDays,
		IsActive:      s.IsActive,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func requestResponse(r *domain.ServiceRequest) dto.RequestResponse {
	allowed := workflow.AllowedTransitions(r.Status)
	next := make([]string, 0, len(allowed))
	for _, st := range allowed {
		next = append(next, string(st))
	}
	return dto.RequestResponse{
		ID:                   r.ID,
		RequestNumber:        r.RequestNumber,
		CustomerID:           r.CustomerID,
		ServiceID:            r.ServiceID,
		AssignedToID:         r.AssignedToID,
		Status:               string(r.Status),
		Priority:             string(r.Priority),
		Title:                r.Title,
		TitleAr:              r.TitleAr,
		Description:          r.Description,
		DescriptionAr:        r.DescriptionAr,
		Notes:                r.Notes,
		NotesAr:              r.NotesAr,
		AssignmentNotes:      r.AssignmentNotes,
		RejectionReason:      r.RejectionReason,
		RejectionReasonAr:    r.RejectionReasonAr,
		CancellationReason:   r.CancellationReason,
		CancellationReasonAr: r.CancellationReasonAr,
		AllowedTransitions:   next,
		AssignedAt:           r.AssignedAt,
		CompletedAt:          r.CompletedAt,
		DeliveredAt:          r.DeliveredAt,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

func requestList(items []domain.ServiceRequest) []dto.RequestResponse {
	out := make([]dto.RequestResponse, 0, len(items))
	for i := range items {
		out = append(out, requestResponse(&items[i]))
	}
	return out
}

func invoiceResponse(inv *domain.Invoice) *dto.InvoiceResponse {
	return &dto.InvoiceResponse{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		RequestID:     inv.RequestID,
		CustomerID:    inv.CustomerID,
		Subtotal:      inv.Subtotal,
		TaxAmount:     inv.TaxAmount,
		Total:         inv.Total,
		AmountPaid:    inv.AmountPaid,
		Outstanding:   inv.Outstanding(),
		Currency:      inv.Currency,
		Status:        string(inv.Status),
		IssuedAt:      inv.IssuedAt,
		DueDate:       inv.DueDate,
		PaidAt:        inv.PaidAt,
		Notes:         inv.Notes,
		NotesAr:       inv.NotesAr,
		CreatedAt:     inv.CreatedAt,
	}
}

func invoiceList(items []domain.Invoice) []*dto.InvoiceResponse {
	out := make([]*dto.InvoiceResponse, 0, len(items))
	for i := range items {
		out = append(out, invoiceResponse(&items[i]))
	}
	return out
}

func paymentResponse(p *domain.Payment) dto.PaymentResponse {
	return dto.PaymentResponse{
		ID:           p.ID,
		InvoiceID:    p.InvoiceID,
		Amount:       p.Amount,
		Method:       string(p.Method),
		Reference:    p.Reference,
		Status:       string(p.Status),
		PaidAt:       p.PaidAt,
		RecordedByID: p.RecordedByID,
		SubmittedBy:  p.SubmittedBy,
		Notes:        p.Notes,
		CreatedAt:    p.CreatedAt,
	}
}

func documentResponse(d *domain.Document) dto.DocumentResponse {
	return dto.DocumentResponse{
		ID:             d.ID,
		RequestID:      d.RequestID,
		UploadedByID:   d.UploadedByID,
		UploadedByType: string(d.UploadedByType),
		FileName:       d.FileName,
		MimeType:       d.MimeType,
		SizeBytes:      d.SizeBytes,
		Category:       string(d.Category),
		Description:    d.Description,
		CreatedAt:      d.CreatedAt,
	}
}

func notificationResponse(n *domain.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:         n.ID,
		Type:       string(n.Type),
		Title:      n.Title,
		TitleAr:    n.TitleAr,
		Message:    n.Message,
		MessageAr:  n.MessageAr,
		EntityType: n.EntityType,
		EntityID:   n.EntityID,
		ReadAt:     n.ReadAt,
		CreatedAt:  n.CreatedAt,
	}
}

func auditResponse(e *domain.AuditEntry) dto.AuditResponse {
	var actorType *string
	if e.ActorType != nil {
		t := string(*e.ActorType)
		actorType = &t
	}
	return dto.AuditResponse{
		ID:         e.ID,
		ActorID:    e.ActorID,
		ActorType:  actorType,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		OldValues:  e.OldValues,
		NewValues:  e.NewValues,
		IPAddress:  e.IPAddress,
		UserAgent:  e.UserAgent,
		CreatedAt:  e.CreatedAt,
	}
}
