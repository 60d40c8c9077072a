package domain

import "time"

// RequestStatus enumerates lifecycle states for service requests.
type RequestStatus string

const (
	RequestStatusDraft       RequestStatus = "DRAFT"
	RequestStatusSubmitted   RequestStatus = "SUBMITTED"
	RequestStatusUnderReview RequestStatus = "UNDER_REVIEW"
	RequestStatusApproved    RequestStatus = "APPROVED"
	RequestStatusRejected    RequestStatus = "REJECTED"
	RequestStatusInProgress  RequestStatus = "IN_PROGRESS"
	RequestStatusCompleted   RequestStatus = "COMPLETED"
	RequestStatusDelivered   RequestStatus = "DELIVERED"
	RequestStatusCancelled   RequestStatus = "CANCELLED"
	RequestStatusOnHold      RequestStatus = "ON_HOLD"
)

// RequestStatuses lists every status in declaration order.
var RequestStatuses = []RequestStatus{
	RequestStatusDraft,
	RequestStatusSubmitted,
	RequestStatusUnderReview,
	RequestStatusApproved,
	RequestStatusRejected,
	RequestStatusInProgress,
	RequestStatusCompleted,
	RequestStatusDelivered,
	RequestStatusCancelled,
	RequestStatusOnHold,
}

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	for _, known := range RequestStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// RequestPriority enumerates urgency.
type RequestPriority string

const (
	RequestPriorityLow    RequestPriority = "LOW"
	RequestPriorityMedium RequestPriority = "MEDIUM"
	RequestPriorityHigh   RequestPriority = "HIGH"
	RequestPriorityUrgent RequestPriority = "URGENT"
)

// Valid reports whether p is a known priority.
func (p RequestPriority) Valid() bool {
	switch p {
	case RequestPriorityLow, RequestPriorityMedium, RequestPriorityHigh, RequestPriorityUrgent:
		return true
	}
	return false
}

// ServiceRequest is the workflow aggregate. Status only moves through the
// request workflow; CustomerID never changes after creation.
type ServiceRequest struct {
	ID                   string
	RequestNumber        string
	CustomerID           string
	ServiceID            string
	AssignedToID         *string
	Status               RequestStatus
	Priority             RequestPriority
	Title                string
	TitleAr              string
	Description          string
	DescriptionAr        string
	Notes                string
	NotesAr              string
	AssignmentNotes      string
	RejectionReason      string
	RejectionReasonAr    string
	CancellationReason   string
	CancellationReasonAr string
	AssignedAt           *time.Time
	CompletedAt          *time.Time
	DeliveredAt          *time.Time
	Version              int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
