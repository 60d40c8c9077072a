package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/request-service/internal/api/dto"
	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/repository"
	"github.com/spec-kit/request-service/internal/service"
)

// BillingHandler serves invoices and payments.
type BillingHandler struct {
	invoices *service.InvoiceService
	payments *service.PaymentService
}

// NewBillingHandler constructs handler.
func NewBillingHandler(invoices *service.InvoiceService, payments *service.PaymentService) *BillingHandler {
	return &BillingHandler{invoices: invoices, payments: payments}
}

// CreateInvoice handles POST /admin/invoices.
func (h *BillingHandler) CreateInvoice(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.InvoiceCreateBody
	if err := parseBody(c, &req); err != nil {
		return err
	}
	inv, err := h.invoices.Create(c.UserContext(), p, service.InvoiceCreateInput{
		RequestID: req.RequestID,
		Subtotal:  req.Subtotal,
		DueDate:   req.DueDate,
		Notes:     req.Notes,
		NotesAr:   req.NotesAr,
		Issue:     req.Issue,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": invoiceResponse(inv)})
}

// ListInvoices handles GET /admin/invoices.
func (h *BillingHandler) ListInvoices(c *fiber.Ctx) error {
	filter := parseInvoiceQuery(c)
	filter.CustomerID = optionalQuery(c, "customer_id")
	items, total, err := h.invoices.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return listResponse(c, invoiceList(items), total, filter.Limit, filter.Offset)
}

// GetInvoice handles GET /admin/invoices/:id.
func (h *BillingHandler) GetInvoice(c *fiber.Ctx) error {
	inv, err := h.invoices.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": invoiceResponse(inv)})
}

// UpdateInvoiceStatus handles PATCH /admin/invoices/:id/status.
func (h *BillingHandler) UpdateInvoiceStatus(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.InvoiceStatusBody
	if err := parseBody(c, &req); err != nil {
		return err
	}
	status := domain.InvoiceStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	inv, err := h.invoices.UpdateStatus(c.UserContext(), p, c.Params("id"), status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": invoiceResponse(inv)})
}

// ListMyInvoices handles GET /portal/invoices.
func (h *BillingHandler) ListMyInvoices(c *fiber.Ctx) error {
	p, err := customerPrincipal(c)
	if err != nil {
		return err
	}
	filter := parseInvoiceQuery(c)
	items, total, err := h.invoices.ListForCustomer(c.UserContext(), p.ID, filter)
	if err != nil {
		return err
	}
	return listResponse(c, invoiceList(items), total, filter.Limit, filter.Offset)
}

// GetMyInvoice handles GET /portal/invoices/:id.
func (h *BillingHandler) GetMyInvoice(c *fiber.Ctx) error {
	p, err := customerPrincipal(c)
	if err != nil {
		return err
	}
	inv, err := h.invoices.GetForCustomer(c.UserContext(), p.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": invoiceResponse(inv)})
}

// RecordPayment handles POST /admin/invoices/:id/payments.
func (h *BillingHandler) RecordPayment(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.PaymentBody
	if err := parseBody(c, &req); err != nil {
		return err
	}
	payment, inv, err := h.payments.Record(c.UserContext(), p, c.Params("id"), paymentInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.PaymentResult{Payment: paymentResponse(payment), Invoice: invoiceResponse(inv)},
	})
}

// SubmitPayment handles POST /portal/invoices/:id/payments.
func (h *BillingHandler) SubmitPayment(c *fiber.Ctx) error {
	p, err := customerPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.PaymentBody
	if err := parseBody(c, &req); err != nil {
		return err
	}
	payment, err := h.payments.Submit(c.UserContext(), p, c.Params("id"), paymentInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.PaymentResult{Payment: paymentResponse(payment)}})
}

// ListPayments handles GET /admin/invoices/:id/payments.
func (h *BillingHandler) ListPayments(c *fiber.Ctx) error {
	payments, err := h.payments.ListByInvoice(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	out := make([]dto.PaymentResponse, 0, len(payments))
	for i := range payments {
		out = append(out, paymentResponse(&payments[i]))
	}
	return c.JSON(fiber.Map{"data": out})
}

// ConfirmPayment handles POST /admin/payments/:id/confirm.
func (h *BillingHandler) ConfirmPayment(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	payment, inv, err := h.payments.Confirm(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.PaymentResult{Payment: paymentResponse(payment), Invoice: invoiceResponse(inv)}})
}

// RejectPayment handles POST /admin/payments/:id/reject.
func (h *BillingHandler) RejectPayment(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.PaymentNotesBody
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	payment, err := h.payments.Reject(c.UserContext(), p, c.Params("id"), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.PaymentResult{Payment: paymentResponse(payment)}})
}

// RefundPayment handles POST /admin/payments/:id/refund.
func (h *BillingHandler) RefundPayment(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.PaymentNotesBody
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	payment, inv, err := h.payments.Refund(c.UserContext(), p, c.Params("id"), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.PaymentResult{Payment: paymentResponse(payment), Invoice: invoiceResponse(inv)}})
}

func paymentInput(req dto.PaymentBody) service.PaymentInput {
	return service.PaymentInput{
		Amount:    req.Amount,
		Method:    domain.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.Method))),
		Reference: req.Reference,
		PaidAt:    req.PaidAt,
		Notes:     req.Notes,
	}
}

func parseInvoiceQuery(c *fiber.Ctx) repository.InvoiceFilter {
	limit, offset := page(c)
	filter := repository.InvoiceFilter{
		RequestID: optionalQuery(c, "request_id"),
		Limit:     limit,
		Offset:    offset,
	}
	for _, st := range splitQuery(c, "status") {
		filter.Statuses = append(filter.Statuses, domain.InvoiceStatus(st))
	}
	return filter
}
