package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/request-service/internal/config"
	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/events"
	"github.com/spec-kit/request-service/internal/repository"
	"github.com/spec-kit/request-service/internal/workflow"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

// InvoiceCreateInput describes a new invoice. Amounts are in minor units.
type InvoiceCreateInput struct {
	RequestID string
	Subtotal  int64
	DueDate   *time.Time
	Notes     string
	NotesAr   string
	Issue     bool
}

// InvoiceService manages invoices.
type InvoiceService struct {
	invoices   repository.InvoiceRepository
	requests   repository.RequestRepository
	dispatcher events.Dispatcher
	audit      *AuditService
	logger     *zap.Logger
	now        Clock
	billing    config.BillingConfig
}

// InvoiceDependencies bundles collaborators for the invoice service.
type InvoiceDependencies struct {
	InvoiceRepo repository.InvoiceRepository
	RequestRepo repository.RequestRepository
	Dispatcher  events.Dispatcher
	Audit       *AuditService
	Logger      *zap.Logger
	Clock       Clock
	Billing     config.BillingConfig
}

// NewInvoiceService creates the service.
func NewInvoiceService(deps InvoiceDependencies) *InvoiceService {
	return &InvoiceService{
		invoices:   deps.InvoiceRepo,
		requests:   deps.RequestRepo,
		dispatcher: deps.Dispatcher,
		audit:      deps.Audit,
		logger:     defaultLogger(deps.Logger),
		now:        defaultClock(deps.Clock),
		billing:    deps.Billing,
	}
}

// ComputeTax applies a basis-point rate, rounding half up.
func ComputeTax(subtotal int64, basisPoints int) int64 {
	return (subtotal*int64(basisPoints) + 5000) / 10000
}

// Create drafts an invoice for a request, issuing it immediately when asked.
func (s *InvoiceService) Create(ctx context.Context, actor domain.Subject, input InvoiceCreateInput) (*domain.Invoice, error) {
	if err := requireText(map[string]string{"request_id": input.RequestID}); err != nil {
		return nil, err
	}
	if input.Subtotal <= 0 {
		return nil, apperrors.NewValidationError("subtotal must be positive", "يجب أن يكون المبلغ موجباً",
			map[string]any{"subtotal": input.Subtotal})
	}
	req, err := s.requests.GetByID(ctx, input.RequestID)
	if err != nil {
		return nil, lookupError(err, "request", input.RequestID)
	}
	switch req.Status {
	case domain.RequestStatusDraft, domain.RequestStatusRejected, domain.RequestStatusCancelled:
		return nil, apperrors.NewBadRequest("request cannot be invoiced in its current status",
			"لا يمكن إصدار فاتورة للطلب في حالته الحالية", map[string]any{"status": req.Status})
	}

	now := s.now()
	due := now.AddDate(0, 0, s.billing.DefaultDueDays)
	if input.DueDate != nil {
		due = input.DueDate.UTC()
	}
	if due.Before(now.Truncate(24 * time.Hour)) {
		return nil, apperrors.NewValidationError("due date is in the past", "تاريخ الاستحقاق في الماضي",
			map[string]any{"due_date": due})
	}
	tax := ComputeTax(input.Subtotal, s.billing.VATBasisPoints)
	inv := &domain.Invoice{
		RequestID:   req.ID,
		CustomerID:  req.CustomerID,
		Subtotal:    input.Subtotal,
		TaxAmount:   tax,
		Total:       input.Subtotal + tax,
		Currency:    s.billing.Currency,
		Status:      domain.InvoiceStatusDraft,
		DueDate:     due,
		Notes:       strings.TrimSpace(input.Notes),
		NotesAr:     strings.TrimSpace(input.NotesAr),
		CreatedByID: actor.SubjectID(),
		CreatedAt:   now,
	}
	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditInvoiceCreated,
		EntityType: "invoice",
		EntityID:   inv.ID,
		NewValues:  map[string]any{"invoice_number": inv.InvoiceNumber, "total": inv.Total},
	})
	if input.Issue {
		return s.UpdateStatus(ctx, actor, inv.ID, domain.InvoiceStatusIssued)
	}
	return inv, nil
}

// UpdateStatus performs a manual status move. Paid states follow payments.
func (s *InvoiceService) UpdateStatus(ctx context.Context, actor domain.Subject, id string, to domain.InvoiceStatus) (*domain.Invoice, error) {
	var from domain.InvoiceStatus
	updated, err := s.invoices.Modify(ctx, id, func(inv *domain.Invoice, _ int64) error {
		from = inv.Status
		return workflow.ApplyInvoice(inv, to, s.now())
	})
	if err != nil {
		var transitionErr *workflow.InvoiceTransitionError
		if errors.As(err, &transitionErr) {
			return nil, apperrors.NewBadRequest("invoice status transition is not allowed",
				"الانتقال إلى حالة الفاتورة هذه غير مسموح",
				map[string]any{"from": transitionErr.From, "to": transitionErr.To, "allowed": transitionErr.Allowed})
		}
		return nil, lookupError(err, "invoice", id)
	}

	if updated.Status == domain.InvoiceStatusIssued {
		publish(ctx, s.dispatcher, s.logger, events.Event{
			Type:       events.EventInvoiceIssued,
			EntityType: "invoice",
			EntityID:   updated.ID,
			Actor:      events.ActorOf(actor),
			Payload: events.InvoiceIssuedPayload{
				InvoiceNumber: updated.InvoiceNumber,
				RequestID:     updated.RequestID,
				CustomerID:    updated.CustomerID,
				Total:         updated.Total,
				Currency:      updated.Currency,
				DueDate:       updated.DueDate,
			},
		})
	}
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditInvoiceStatusChanged,
		EntityType: "invoice",
		EntityID:   updated.ID,
		OldValues:  map[string]any{"status": from},
		NewValues:  map[string]any{"status": updated.Status},
	})
	return updated, nil
}

// Get returns an invoice by id.
func (s *InvoiceService) Get(ctx context.Context, id string) (*domain.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "invoice", id)
	}
	return inv, nil
}

// GetForCustomer returns an invoice the customer owns. Drafts stay hidden.
func (s *InvoiceService) GetForCustomer(ctx context.Context, customerID, id string) (*domain.Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.CustomerID != customerID || inv.Status == domain.InvoiceStatusDraft {
		return nil, apperrors.NewNotFound("invoice", map[string]any{"id": id})
	}
	return inv, nil
}

// List returns invoices matching filter.
func (s *InvoiceService) List(ctx context.Context, filter repository.InvoiceFilter) ([]domain.Invoice, int, error) {
	items, total, err := s.invoices.List(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return items, total, nil
}

// ListForCustomer returns the customer's non-draft invoices.
func (s *InvoiceService) ListForCustomer(ctx context.Context, customerID string, filter repository.InvoiceFilter) ([]domain.Invoice, int, error) {
	filter.CustomerID = &customerID
	if len(filter.Statuses) == 0 {
		filter.Statuses = []domain.InvoiceStatus{
			domain.InvoiceStatusIssued,
			domain.InvoiceStatusPartiallyPaid,
			domain.InvoiceStatusPaid,
			domain.InvoiceStatusOverdue,
			domain.InvoiceStatusCancelled,
		}
	} else {
		visible := filter.Statuses[:0:0]
		for _, st := range filter.Statuses {
			if st != domain.InvoiceStatusDraft {
				visible = append(visible, st)
			}
		}
		if len(visible) == 0 {
			return []domain.Invoice{}, 0, nil
		}
		filter.Statuses = visible
	}
	return s.List(ctx, filter)
}

// MarkOverdue flips unpaid invoices past their due date.
func (s *InvoiceService) MarkOverdue(ctx context.Context) (int, error) {
	n, err := s.invoices.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return n, nil
}
