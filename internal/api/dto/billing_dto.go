package dto

import "time"

// InvoiceCreateBody payload. Amounts are in minor units.
type InvoiceCreateBody struct {
	RequestID string     `json:"request_id"`
	Subtotal  int64      `json:"subtotal"`
	DueDate   *time.Time `json:"due_date"`
	Notes     string     `json:"notes"`
	NotesAr   string     `json:"notes_ar"`
	Issue     bool       `json:"issue"`
}

// InvoiceStatusBody requests a manual invoice status move.
type InvoiceStatusBody struct {
	Status string `json:"status"`
}

// InvoiceResponse describes an invoice and its balance.
type InvoiceResponse struct {
	ID            string     `json:"id"`
	InvoiceNumber string     `json:"invoice_number"`
	RequestID     string     `json:"request_id"`
	CustomerID    string     `json:"customer_id"`
	Subtotal      int64      `json:"subtotal"`
	TaxAmount     int64      `json:"tax_amount"`
	Total         int64      `json:"total"`
	AmountPaid    int64      `json:"amount_paid"`
	Outstanding   int64      `json:"outstanding"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	IssuedAt      *time.Time `json:"issued_at"`
	DueDate       time.Time  `json:"due_date"`
	PaidAt        *time.Time `json:"paid_at"`
	Notes         string     `json:"notes"`
	NotesAr       string     `json:"notes_ar"`
	CreatedAt     time.Time  `json:"created_at"`
}

// PaymentBody records or submits a payment.
type PaymentBody struct {
	Amount    int64      `json:"amount"`
	Method    string     `json:"method"`
	Reference string     `json:"reference"`
	PaidAt    *time.Time `json:"paid_at"`
	Notes     string     `json:"notes"`
}

// PaymentNotesBody carries optional notes for reject and refund.
type PaymentNotesBody struct {
	Notes string `json:"notes"`
}

// PaymentResponse describes one payment.
type PaymentResponse struct {
	ID           string     `json:"id"`
	InvoiceID    string     `json:"invoice_id"`
	Amount       int64      `json:"amount"`
	Method       string     `json:"method"`
	Reference    string     `json:"reference"`
	Status       string     `json:"status"`
	PaidAt       *time.Time `json:"paid_at"`
	RecordedByID *string    `json:"recorded_by_id"`
	SubmittedBy  *string    `json:"submitted_by"`
	Notes        string     `json:"notes"`
	CreatedAt    time.Time  `json:"created_at"`
}

// PaymentResult pairs a payment with the invoice it changed.
type PaymentResult struct {
	Payment PaymentResponse  `json:"payment"`
	Invoice *InvoiceResponse `json:"invoice,omitempty"`
}
