package workflow

import (
	"fmt"
	"time"

	"github.com/spec-kit/request-service/internal/domain"
)

// Manual invoice moves. Paid states are derived from payments by Settle.
var invoiceTransitions = map[domain.InvoiceStatus][]domain.InvoiceStatus{
	domain.InvoiceStatusDraft:         {domain.InvoiceStatusIssued, domain.InvoiceStatusCancelled},
	domain.InvoiceStatusIssued:        {domain.InvoiceStatusOverdue, domain.InvoiceStatusCancelled},
	domain.InvoiceStatusPartiallyPaid: {domain.InvoiceStatusOverdue},
	domain.InvoiceStatusOverdue:       {domain.InvoiceStatusCancelled},
	domain.InvoiceStatusPaid:          {},
	domain.InvoiceStatusCancelled:     {},
}

// AllowedInvoiceTransitions returns the manual destinations reachable from the status.
func AllowedInvoiceTransitions(from domain.InvoiceStatus) []domain.InvoiceStatus {
	next := invoiceTransitions[from]
	out := make([]domain.InvoiceStatus, len(next))
	copy(out, next)
	return out
}

// InvoiceTransitionError reports a manual invoice move that is not allowed.
type InvoiceTransitionError struct {
	From    domain.InvoiceStatus
	To      domain.InvoiceStatus
	Allowed []domain.InvoiceStatus
}

func (e *InvoiceTransitionError) Error() string {
	return fmt.Sprintf("cannot transition invoice from %s to %s", e.From, e.To)
}

// ApplyInvoice performs a manual status move, stamping IssuedAt on ISSUED.
func ApplyInvoice(inv *domain.Invoice, to domain.InvoiceStatus, now time.Time) error {
	allowed := false
	for _, candidate := range invoiceTransitions[inv.Status] {
		if candidate == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return &InvoiceTransitionError{From: inv.Status, To: to, Allowed: AllowedInvoiceTransitions(inv.Status)}
	}
	if to == domain.InvoiceStatusIssued && inv.IssuedAt == nil {
		stamp := now
		inv.IssuedAt = &stamp
	}
	inv.Status = to
	return nil
}

// Settle derives the payment state of an issued invoice from the amount
// paid so far. Draft and cancelled invoices are left alone.
func Settle(inv *domain.Invoice, amountPaid int64, now time.Time) {
	if inv.Status == domain.InvoiceStatusDraft || inv.Status == domain.InvoiceStatusCancelled {
		return
	}
	inv.AmountPaid = amountPaid
	switch {
	case amountPaid >= inv.Total:
		inv.Status = domain.InvoiceStatusPaid
		if inv.PaidAt == nil {
			stamp := now
			inv.PaidAt = &stamp
		}
		return
	case amountPaid > 0:
		inv.Status = domain.InvoiceStatusPartiallyPaid
	default:
		inv.Status = domain.InvoiceStatusIssued
	}
	inv.PaidAt = nil
	if now.After(inv.DueDate) {
		inv.Status = domain.InvoiceStatusOverdue
	}
}
