package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/request-service/internal/api/dto"
	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/repository"
	"github.com/spec-kit/request-service/internal/service"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

// DocumentsHandler serves request documents to both principal kinds.
type DocumentsHandler struct {
	documents *service.DocumentService
}

// NewDocumentsHandler constructs handler.
func NewDocumentsHandler(documents *service.DocumentService) *DocumentsHandler {
	return &DocumentsHandler{documents: documents}
}

// Upload handles a multipart POST to a request's documents.
func (h *DocumentsHandler) Upload(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file is required", "الملف مطلوب", map[string]any{"fields": []string{"file"}})
	}
	file, err := header.Open()
	if err != nil {
		return apperrors.NewBadRequest("file could not be read", "تعذرت قراءة الملف", nil)
	}
	defer file.Close()

	doc, err := h.documents.Upload(c.UserContext(), p, c.Params("id"), service.UploadInput{
		FileName:    header.Filename,
		MimeType:    header.Header.Get(fiber.HeaderContentType),
		Size:        header.Size,
		Category:    domain.DocumentCategory(strings.ToUpper(strings.TrimSpace(c.FormValue("category")))),
		Description: c.FormValue("description"),
		Body:        file,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": documentResponse(doc)})
}

// List handles GET on a request's documents.
func (h *DocumentsHandler) List(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	docs, err := h.documents.ListByRequest(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return err
	}
	out := make([]dto.DocumentResponse, 0, len(docs))
	for i := range docs {
		out = append(out, documentResponse(&docs[i]))
	}
	return c.JSON(fiber.Map{"data": out})
}

// Download streams a document's bytes.
func (h *DocumentsHandler) Download(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	doc, body, err := h.documents.Open(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, doc.MimeType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", doc.FileName))
	return c.SendStream(body, int(doc.SizeBytes))
}

// Delete removes a document.
func (h *DocumentsHandler) Delete(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.documents.Delete(c.UserContext(), p, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// NotificationsHandler serves the caller's notification inbox.
type NotificationsHandler struct {
	notifications *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

// List handles GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	limit, offset := page(c)
	items, total, err := h.notifications.List(c.UserContext(), p, c.QueryBool("unread"), limit, offset)
	if err != nil {
		return err
	}
	out := make([]dto.NotificationResponse, 0, len(items))
	for i := range items {
		out = append(out, notificationResponse(&items[i]))
	}
	return listResponse(c, out, total, limit, offset)
}

// UnreadCount handles GET /notifications/unread-count.
func (h *NotificationsHandler) UnreadCount(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	count, err := h.notifications.UnreadCount(c.UserContext(), p)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"unread": count}})
}

// MarkRead handles POST /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.notifications.MarkRead(c.UserContext(), p, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// MarkAllRead handles POST /notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	count, err := h.notifications.MarkAllRead(c.UserContext(), p)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"marked": count}})
}

// ReportsHandler serves the dashboard and the audit trail.
type ReportsHandler struct {
	dashboard *service.DashboardService
	audit     *service.AuditService
}

// NewReportsHandler constructs handler.
func NewReportsHandler(dashboard *service.DashboardService, audit *service.AuditService) *ReportsHandler {
	return &ReportsHandler{dashboard: dashboard, audit: audit}
}

// Dashboard handles GET /admin/dashboard.
func (h *ReportsHandler) Dashboard(c *fiber.Ctx) error {
	stats, err := h.dashboard.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// AuditLog handles GET /admin/audit.
func (h *ReportsHandler) AuditLog(c *fiber.Ctx) error {
	limit, offset := page(c)
	filter := repository.AuditFilter{
		ActorID:    optionalQuery(c, "actor_id"),
		EntityType: optionalQuery(c, "entity_type"),
		EntityID:   optionalQuery(c, "entity_id"),
		Action:     optionalQuery(c, "action"),
		From:       parseTime(c.Query("from")),
		To:         parseTime(c.Query("to")),
		Limit:      limit,
		Offset:     offset,
	}
	items, total, err := h.audit.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	out := make([]dto.AuditResponse, 0, len(items))
	for i := range items {
		out = append(out, auditResponse(&items[i]))
	}
	return listResponse(c, out, total, limit, offset)
}
