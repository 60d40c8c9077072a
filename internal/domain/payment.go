package domain

import "time"

// PaymentMethod enumerates supported payment channels.
type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCreditCard   PaymentMethod = "CREDIT_CARD"
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodCheque       PaymentMethod = "CHEQUE"
)

// Valid reports whether m is a known method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodBankTransfer, PaymentMethodCreditCard, PaymentMethodCash, PaymentMethodCheque:
		return true
	}
	return false
}

// PaymentStatus enumerates payment states.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// Payment is money received against an invoice.
type Payment struct {
	ID           string
	InvoiceID    string
	Amount       int64
	Method       PaymentMethod
	Reference    string
	Status       PaymentStatus
	PaidAt       *time.Time
	RecordedByID *string
	SubmittedBy  *string
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
