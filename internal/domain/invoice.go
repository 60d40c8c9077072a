package domain

import "time"

// InvoiceStatus enumerates billing states.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusIssued        InvoiceStatus = "ISSUED"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
)

// Invoice bills a customer for a service request. Amounts are in minor units.
type Invoice struct {
	ID            string
	InvoiceNumber string
	RequestID     string
	CustomerID    string
	Subtotal      int64
	TaxAmount     int64
	Total         int64
	AmountPaid    int64
	Currency      string
	Status        InvoiceStatus
	IssuedAt      *time.Time
	DueDate       time.Time
	PaidAt        *time.Time
	Notes         string
	NotesAr       string
	CreatedByID   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Outstanding is the amount still owed.
func (i *Invoice) Outstanding() int64 {
	if i.AmountPaid >= i.Total {
		return 0
	}
	return i.Total - i.AmountPaid
}

// AcceptsPayments reports whether payments may be recorded against the invoice.
func (i *Invoice) AcceptsPayments() bool {
	switch i.Status {
	case InvoiceStatusIssued, InvoiceStatusPartiallyPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}
