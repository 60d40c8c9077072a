package dto

import "time"

// ServiceRequestBody payload for creating or updating catalog services.
type ServiceRequestBody struct {
	Code          *string `json:"code"`
	Name          *string `json:"name"`
	NameAr        *string `json:"name_ar"`
	Description   *string `json:"description"`
	DescriptionAr *string `json:"description_ar"`
	Category      *string `json:"category"`
	BasePrice     *int64  `json:"base_price"`
	Currency      *string `json:"currency"`
	EstimatedDays *int    `json:"estimated_days"`
	IsActive      *bool   `json:"is_active"`
}

// ServiceResponse is a catalog entry.
type ServiceResponse struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	NameAr        string    `json:"name_ar"`
	Description   string    `json:"description"`
	DescriptionAr string    `json:"description_ar"`
	Category      string    `json:"category"`
	BasePrice     int64     `json:"base_price"`
	Currency      string    `json:"currency"`
	EstimatedDays int       `json:"estimated_days"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateRequestBody payload for a new service request.
type CreateRequestBody struct {
	ServiceID     string `json:"service_id"`
	Priority      string `json:"priority"`
	Title         string `json:"title"`
	TitleAr       string `json:"title_ar"`
	Description   string `json:"description"`
	DescriptionAr string `json:"description_ar"`
	Notes         string `json:"notes"`
	NotesAr       string `json:"notes_ar"`
}

// UpdateRequestBody is a partial detail edit. Status is not accepted here.
type UpdateRequestBody struct {
	Priority      *string `json:"priority"`
	Title         *string `json:"title"`
	TitleAr       *string `json:"title_ar"`
	Description   *string `json:"description"`
	DescriptionAr *string `json:"description_ar"`
	Notes         *string `json:"notes"`
	NotesAr       *string `json:"notes_ar"`
}

// StatusChangeBody moves a request through the workflow.
type StatusChangeBody struct {
	Status   string `json:"status"`
	Reason   string `json:"reason"`
	ReasonAr string `json:"reason_ar"`
}

// CancelBody carries a customer's cancellation reason.
type CancelBody struct {
	Reason   string `json:"reason"`
	ReasonAr string `json:"reason_ar"`
}

// AssignBody assigns a request to an employee.
type AssignBody struct {
	EmployeeID string `json:"employee_id"`
	Notes      string `json:"notes"`
}

// RequestResponse is the full view of a service request.
type RequestResponse struct {
	ID                   string     `json:"id"`
	RequestNumber        string     `json:"request_number"`
	CustomerID           string     `json:"customer_id"`
	ServiceID            string     `json:"service_id"`
	AssignedToID         *string    `json:"assigned_to_id"`
	Status               string     `json:"status"`
	Priority             string     `json:"priority"`
	Title                string     `json:"title"`
	TitleAr              string     `json:"title_ar"`
	Description          string     `json:"description"`
	DescriptionAr        string     `json:"description_ar"`
	Notes                string     `json:"notes"`
	NotesAr              string     `json:"notes_ar"`
	AssignmentNotes      string     `json:"assignment_notes,omitempty"`
	RejectionReason      string     `json:"rejection_reason,omitempty"`
	RejectionReasonAr    string     `json:"rejection_reason_ar,omitempty"`
	CancellationReason   string     `json:"cancellation_reason,omitempty"`
	CancellationReasonAr string     `json:"cancellation_reason_ar,omitempty"`
	AllowedTransitions   []string   `json:"allowed_transitions"`
	AssignedAt           *time.Time `json:"assigned_at"`
	CompletedAt          *time.Time `json:"completed_at"`
	DeliveredAt          *time.Time `json:"delivered_at"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}
