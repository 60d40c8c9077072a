package memory

import (
	"context"
	"sort"
	"time"

	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/repository"
)

type invoiceRepo struct{ s *Store }

func (r *invoiceRepo) Create(ctx context.Context, inv *domain.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.requests[inv.RequestID]; !ok {
		return foreignKeyViolation("invoices_request_id_fkey")
	}
	now := r.s.createdAt(inv.CreatedAt)
	inv.ID = newID()
	inv.InvoiceNumber = r.s.nextNumberLocked(repository.InvoiceNumberPrefix, now)
	inv.CreatedAt = now
	inv.UpdatedAt = now
	r.s.track(inv.ID)
	r.s.invoices[inv.ID] = *inv
	return nil
}

func (r *invoiceRepo) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return nil, errNoRows
	}
	return &inv, nil
}

func (r *invoiceRepo) List(ctx context.Context, filter repository.InvoiceFilter) ([]domain.Invoice, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	statuses := make(map[domain.InvoiceStatus]struct{}, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses[st] = struct{}{}
	}
	matched := []domain.Invoice{}
	for _, inv := range r.s.invoices {
		if filter.CustomerID != nil && inv.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.RequestID != nil && inv.RequestID != *filter.RequestID {
			continue
		}
		if len(statuses) > 0 {
			if _, ok := statuses[inv.Status]; !ok {
				continue
			}
		}
		matched = append(matched, inv)
	}
	sort.Slice(matched, func(i, j int) bool {
		return r.s.newerFirst(matched[i].ID, matched[i].CreatedAt, matched[j].ID, matched[j].CreatedAt)
	})
	return page(matched, filter.Limit, filter.Offset), len(matched), nil
}

func (r *invoiceRepo) Modify(ctx context.Context, id string, mutate repository.InvoiceMutation) (*domain.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.modifyLocked(id, mutate, nil)
}

func (r *invoiceRepo) ApplyPayment(ctx context.Context, payment *domain.Payment, mutate repository.InvoiceMutation) (*domain.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.modifyLocked(payment.InvoiceID, mutate, func() error {
		if payment.ID == "" {
			r.s.insertPaymentLocked(payment)
			return nil
		}
		stored, ok := r.s.payments[payment.ID]
		if !ok || stored.Status != domain.PaymentStatusPending {
			return errNoRows
		}
		r.s.writePaymentStatusLocked(stored, payment)
		return nil
	})
}

func (r *invoiceRepo) modifyLocked(id string, mutate repository.InvoiceMutation, before func() error) (*domain.Invoice, error) {
	stored, ok := r.s.invoices[id]
	if !ok {
		return nil, errNoRows
	}
	var paid int64
	for _, p := range r.s.payments {
		if p.InvoiceID == id && p.Status == domain.PaymentStatusCompleted {
			paid += p.Amount
		}
	}
	working := stored
	if err := mutate(&working, paid); err != nil {
		return nil, err
	}
	if before != nil {
		if err := before(); err != nil {
			return nil, err
		}
	}
	stored.Subtotal = working.Subtotal
	stored.TaxAmount = working.TaxAmount
	stored.Total = working.Total
	stored.AmountPaid = working.AmountPaid
	stored.Status = working.Status
	stored.IssuedAt = working.IssuedAt
	stored.DueDate = working.DueDate
	stored.PaidAt = working.PaidAt
	stored.Notes = working.Notes
	stored.NotesAr = working.NotesAr
	stored.UpdatedAt = r.s.now()
	r.s.invoices[stored.ID] = stored
	return &stored, nil
}

func (r *invoiceRepo) CountByRequest(ctx context.Context, requestID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, inv := range r.s.invoices {
		if inv.RequestID == requestID {
			n++
		}
	}
	return n, nil
}

func (r *invoiceRepo) Totals(ctx context.Context) (repository.BillingTotals, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var totals repository.BillingTotals
	for _, inv := range r.s.invoices {
		if inv.Status == domain.InvoiceStatusDraft || inv.Status == domain.InvoiceStatusCancelled {
			continue
		}
		totals.Invoiced += inv.Total
		totals.Collected += min(inv.AmountPaid, inv.Total)
	}
	totals.Outstanding = totals.Invoiced - totals.Collected
	return totals, nil
}

func (r *invoiceRepo) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for id, inv := range r.s.invoices {
		if inv.Status != domain.InvoiceStatusIssued && inv.Status != domain.InvoiceStatusPartiallyPaid {
			continue
		}
		if !inv.DueDate.Before(now) {
			continue
		}
		inv.Status = domain.InvoiceStatusOverdue
		inv.UpdatedAt = r.s.now()
		r.s.invoices[id] = inv
		n++
	}
	return n, nil
}

type paymentRepo struct{ s *Store }

func (r *paymentRepo) Create(ctx context.Context, payment *domain.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.invoices[payment.InvoiceID]; !ok {
		return foreignKeyViolation("payments_invoice_id_fkey")
	}
	r.s.insertPaymentLocked(payment)
	return nil
}

func (s *Store) insertPaymentLocked(payment *domain.Payment) {
	now := s.now()
	payment.ID = newID()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	s.track(payment.ID)
	s.payments[payment.ID] = *payment
}

func (s *Store) writePaymentStatusLocked(stored domain.Payment, payment *domain.Payment) {
	stored.Status = payment.Status
	stored.PaidAt = payment.PaidAt
	stored.RecordedByID = payment.RecordedByID
	stored.Notes = payment.Notes
	stored.UpdatedAt = s.now()
	s.payments[stored.ID] = stored
	payment.UpdatedAt = stored.UpdatedAt
}

func (r *paymentRepo) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, errNoRows
	}
	return &p, nil
}

func (r *paymentRepo) ListByInvoice(ctx context.Context, invoiceID string) ([]domain.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Payment{}
	for _, p := range r.s.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.s.olderFirst(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt)
	})
	return out, nil
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, payment *domain.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.payments[payment.ID]
	if !ok {
		return errNoRows
	}
	r.s.writePaymentStatusLocked(stored, payment)
	return nil
}
