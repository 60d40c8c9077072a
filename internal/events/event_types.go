package events

import (
	"time"

	"github.com/spec-kit/request-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestCreated       EventType = "request_created"
	EventRequestStatusChanged EventType = "request_status_changed"
	EventRequestAssigned      EventType = "request_assigned"
	EventInvoiceIssued        EventType = "invoice_issued"
	EventPaymentCompleted     EventType = "payment_completed"
	EventDocumentUploaded     EventType = "document_uploaded"
)

// AllTypes lists every event type, for sinks that export everything.
var AllTypes = []EventType{
	EventRequestCreated,
	EventRequestStatusChanged,
	EventRequestAssigned,
	EventInvoiceIssued,
	EventPaymentCompleted,
	EventDocumentUploaded,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.SubjectType `json:"type"`
	ID   string             `json:"id"`
}

// ActorOf converts a subject to an event actor.
func ActorOf(subject domain.Subject) Actor {
	if subject == nil {
		return Actor{}
	}
	return Actor{Type: subject.SubjectType(), ID: subject.SubjectID()}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	EntityType string      `json:"entity_type"`
	EntityID   string      `json:"entity_id"`
	Actor      Actor       `json:"actor"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// RequestCreatedPayload payload.
type RequestCreatedPayload struct {
	RequestNumber string `json:"request_number"`
	CustomerID    string `json:"customer_id"`
	ServiceID     string `json:"service_id"`
	Title         string `json:"title"`
}

// RequestStatusChangedPayload payload.
type RequestStatusChangedPayload struct {
	RequestNumber string               `json:"request_number"`
	CustomerID    string               `json:"customer_id"`
	AssignedToID  *string              `json:"assigned_to_id,omitempty"`
	OldStatus     domain.RequestStatus `json:"old_status"`
	NewStatus     domain.RequestStatus `json:"new_status"`
	Reason        string               `json:"reason,omitempty"`
	ReasonAr      string               `json:"reason_ar,omitempty"`
}

// RequestAssignedPayload payload.
type RequestAssignedPayload struct {
	RequestNumber string `json:"request_number"`
	CustomerID    string `json:"customer_id"`
	AssigneeID    string `json:"assignee_id"`
	Notes         string `json:"notes,omitempty"`
}

// InvoiceIssuedPayload payload.
type InvoiceIssuedPayload struct {
	InvoiceNumber string    `json:"invoice_number"`
	RequestID     string    `json:"request_id"`
	CustomerID    string    `json:"customer_id"`
	Total         int64     `json:"total"`
	Currency      string    `json:"currency"`
	DueDate       time.Time `json:"due_date"`
}

// PaymentCompletedPayload payload.
type PaymentCompletedPayload struct {
	InvoiceID     string `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	CustomerID    string `json:"customer_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

// DocumentUploadedPayload payload.
type DocumentUploadedPayload struct {
	RequestID      string             `json:"request_id"`
	RequestNumber  string             `json:"request_number"`
	FileName       string             `json:"file_name"`
	UploadedByType domain.SubjectType `json:"uploaded_by_type"`
	AssignedToID   *string            `json:"assigned_to_id,omitempty"`
}
