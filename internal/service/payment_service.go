package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/events"
	"github.com/spec-kit/request-service/internal/repository"
	"github.com/spec-kit/request-service/internal/workflow"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

// PaymentInput describes a payment against an invoice.
type PaymentInput struct {
	Amount    int64
	Method    domain.PaymentMethod
	Reference string
	PaidAt    *time.Time
	Notes     string
}

// PaymentService records payments and keeps invoice balances derived from them.
type PaymentService struct {
	payments   repository.PaymentRepository
	invoices   repository.InvoiceRepository
	dispatcher events.Dispatcher
	audit      *AuditService
	logger     *zap.Logger
	now        Clock
}

// PaymentDependencies bundles collaborators for the payment service.
type PaymentDependencies struct {
	PaymentRepo repository.PaymentRepository
	InvoiceRepo repository.InvoiceRepository
	Dispatcher  events.Dispatcher
	Audit       *AuditService
	Logger      *zap.Logger
	Clock       Clock
}

// NewPaymentService creates the service.
func NewPaymentService(deps PaymentDependencies) *PaymentService {
	return &PaymentService{
		payments:   deps.PaymentRepo,
		invoices:   deps.InvoiceRepo,
		dispatcher: deps.Dispatcher,
		audit:      deps.Audit,
		logger:     defaultLogger(deps.Logger),
		now:        defaultClock(deps.Clock),
	}
}

// Record stores a completed payment taken by an employee. The balance check,
// the insert and the invoice settlement share the invoice lock.
func (s *PaymentService) Record(ctx context.Context, actor domain.Subject, invoiceID string, input PaymentInput) (*domain.Payment, *domain.Invoice, error) {
	if err := validatePaymentInput(input); err != nil {
		return nil, nil, err
	}
	paidAt := s.now()
	if input.PaidAt != nil {
		paidAt = input.PaidAt.UTC()
	}
	recorder := actor.SubjectID()
	payment := &domain.Payment{
		InvoiceID:    invoiceID,
		Amount:       input.Amount,
		Method:       input.Method,
		Reference:    strings.TrimSpace(input.Reference),
		Status:       domain.PaymentStatusCompleted,
		PaidAt:       &paidAt,
		RecordedByID: &recorder,
		Notes:        strings.TrimSpace(input.Notes),
	}
	updated, err := s.apply(ctx, payment)
	if err != nil {
		return nil, nil, lookupError(err, "invoice", invoiceID)
	}
	s.completed(ctx, actor, payment, updated)
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditPaymentRecorded,
		EntityType: "payment",
		EntityID:   payment.ID,
		NewValues:  map[string]any{"invoice_id": updated.ID, "amount": payment.Amount, "status": payment.Status},
	})
	return payment, updated, nil
}

// Submit stores a customer-declared payment awaiting confirmation.
func (s *PaymentService) Submit(ctx context.Context, customer domain.Subject, invoiceID string, input PaymentInput) (*domain.Payment, error) {
	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, lookupError(err, "invoice", invoiceID)
	}
	if inv.CustomerID != customer.SubjectID() || inv.Status == domain.InvoiceStatusDraft {
		return nil, apperrors.NewNotFound("invoice", map[string]any{"id": invoiceID})
	}
	if err := validatePaymentInput(input); err != nil {
		return nil, err
	}
	if err := checkPayable(inv, inv.AmountPaid, input.Amount); err != nil {
		return nil, err
	}
	submitter := customer.SubjectID()
	payment := &domain.Payment{
		InvoiceID:   inv.ID,
		Amount:      input.Amount,
		Method:      input.Method,
		Reference:   strings.TrimSpace(input.Reference),
		Status:      domain.PaymentStatusPending,
		SubmittedBy: &submitter,
		Notes:       strings.TrimSpace(input.Notes),
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.audit.Record(ctx, AuditRecord{
		Actor:      customer,
		Action:     AuditPaymentRecorded,
		EntityType: "payment",
		EntityID:   payment.ID,
		NewValues:  map[string]any{"invoice_id": inv.ID, "amount": payment.Amount, "status": payment.Status},
	})
	return payment, nil
}

// Confirm completes a pending payment.
func (s *PaymentService) Confirm(ctx context.Context, actor domain.Subject, paymentID string) (*domain.Payment, *domain.Invoice, error) {
	payment, err := s.get(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	if payment.Status != domain.PaymentStatusPending {
		return nil, nil, paymentStatusError(payment.Status, domain.PaymentStatusCompleted)
	}
	now := s.now()
	recorder := actor.SubjectID()
	payment.Status = domain.PaymentStatusCompleted
	payment.PaidAt = &now
	payment.RecordedByID = &recorder
	updated, err := s.apply(ctx, payment)
	if errors.Is(err, pgx.ErrNoRows) {
		// decided by someone else since it was read
		if current, getErr := s.get(ctx, paymentID); getErr == nil && current.Status != domain.PaymentStatusPending {
			return nil, nil, paymentStatusError(current.Status, domain.PaymentStatusCompleted)
		}
	}
	if err != nil {
		return nil, nil, lookupError(err, "invoice", payment.InvoiceID)
	}
	s.completed(ctx, actor, payment, updated)
	s.recordStatus(ctx, actor, payment, domain.PaymentStatusPending)
	return payment, updated, nil
}

// Reject fails a pending payment.
func (s *PaymentService) Reject(ctx context.Context, actor domain.Subject, paymentID, notes string) (*domain.Payment, error) {
	payment, err := s.get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.PaymentStatusPending {
		return nil, paymentStatusError(payment.Status, domain.PaymentStatusFailed)
	}
	recorder := actor.SubjectID()
	payment.Status = domain.PaymentStatusFailed
	payment.RecordedByID = &recorder
	if n := strings.TrimSpace(notes); n != "" {
		payment.Notes = n
	}
	if err := s.payments.UpdateStatus(ctx, payment); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordStatus(ctx, actor, payment, domain.PaymentStatusPending)
	return payment, nil
}

// Refund reverses a completed payment and recomputes the invoice.
func (s *PaymentService) Refund(ctx context.Context, actor domain.Subject, paymentID, notes string) (*domain.Payment, *domain.Invoice, error) {
	payment, err := s.get(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	if payment.Status != domain.PaymentStatusCompleted {
		return nil, nil, paymentStatusError(payment.Status, domain.PaymentStatusRefunded)
	}
	recorder := actor.SubjectID()
	payment.Status = domain.PaymentStatusRefunded
	payment.RecordedByID = &recorder
	if n := strings.TrimSpace(notes); n != "" {
		payment.Notes = n
	}
	if err := s.payments.UpdateStatus(ctx, payment); err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	updated, err := s.settle(ctx, payment.InvoiceID)
	if err != nil {
		return nil, nil, err
	}
	s.recordStatus(ctx, actor, payment, domain.PaymentStatusCompleted)
	return payment, updated, nil
}

// ListByInvoice returns the payments of an invoice in creation order.
func (s *PaymentService) ListByInvoice(ctx context.Context, invoiceID string) ([]domain.Payment, error) {
	if _, err := s.invoices.GetByID(ctx, invoiceID); err != nil {
		return nil, lookupError(err, "invoice", invoiceID)
	}
	payments, err := s.payments.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return payments, nil
}

func (s *PaymentService) get(ctx context.Context, id string) (*domain.Payment, error) {
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "payment", id)
	}
	return payment, nil
}

func validatePaymentInput(input PaymentInput) error {
	if !input.Method.Valid() {
		return apperrors.NewValidationError("payment method is invalid", "طريقة الدفع غير صالحة",
			map[string]any{"method": input.Method})
	}
	if input.Amount <= 0 {
		return apperrors.NewValidationError("amount must be positive", "يجب أن يكون المبلغ موجباً",
			map[string]any{"amount": input.Amount})
	}
	return nil
}

// checkPayable reports whether inv accepts amount on top of paid.
func checkPayable(inv *domain.Invoice, paid, amount int64) error {
	if !inv.AcceptsPayments() {
		return apperrors.NewBadRequest("invoice does not accept payments", "الفاتورة لا تقبل مدفوعات",
			map[string]any{"status": inv.Status})
	}
	outstanding := max(inv.Total-paid, 0)
	if amount > outstanding {
		return apperrors.NewBadRequest("amount exceeds the outstanding balance", "المبلغ يتجاوز الرصيد المستحق",
			map[string]any{"amount": amount, "outstanding": outstanding})
	}
	return nil
}

// apply checks and stores a completed payment under the invoice lock and
// settles the invoice with it.
func (s *PaymentService) apply(ctx context.Context, payment *domain.Payment) (*domain.Invoice, error) {
	return s.invoices.ApplyPayment(ctx, payment, func(inv *domain.Invoice, paid int64) error {
		if err := checkPayable(inv, paid, payment.Amount); err != nil {
			return err
		}
		workflow.Settle(inv, paid+payment.Amount, s.now())
		return nil
	})
}

// settle recomputes amountPaid and the payment state under the invoice lock.
func (s *PaymentService) settle(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	inv, err := s.invoices.Modify(ctx, invoiceID, func(inv *domain.Invoice, paid int64) error {
		workflow.Settle(inv, paid, s.now())
		return nil
	})
	if err != nil {
		return nil, lookupError(err, "invoice", invoiceID)
	}
	return inv, nil
}

func (s *PaymentService) completed(ctx context.Context, actor domain.Subject, payment *domain.Payment, inv *domain.Invoice) {
	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:       events.EventPaymentCompleted,
		EntityType: "payment",
		EntityID:   payment.ID,
		Actor:      events.ActorOf(actor),
		Payload: events.PaymentCompletedPayload{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			CustomerID:    inv.CustomerID,
			Amount:        payment.Amount,
			Currency:      inv.Currency,
		},
	})
}

func (s *PaymentService) recordStatus(ctx context.Context, actor domain.Subject, payment *domain.Payment, from domain.PaymentStatus) {
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditPaymentStatusChanged,
		EntityType: "payment",
		EntityID:   payment.ID,
		OldValues:  map[string]any{"status": from},
		NewValues:  map[string]any{"status": payment.Status},
	})
}

func paymentStatusError(from, to domain.PaymentStatus) error {
	return apperrors.NewBadRequest("payment status transition is not allowed", "الانتقال إلى حالة الدفعة هذه غير مسموح",
		map[string]any{"from": from, "to": to})
}
