package domain

import "time"

// NotificationType identifies what triggered an in-app notification.
type NotificationType string

const (
	NotificationRequestStatusChanged NotificationType = "REQUEST_STATUS_CHANGED"
	NotificationRequestAssigned      NotificationType = "REQUEST_ASSIGNED"
	NotificationInvoiceIssued        NotificationType = "INVOICE_ISSUED"
	NotificationPaymentCompleted     NotificationType = "PAYMENT_COMPLETED"
	NotificationDocumentUploaded     NotificationType = "DOCUMENT_UPLOADED"
)

// Notification is an in-app message for one principal.
type Notification struct {
	ID            string
	RecipientID   string
	RecipientType SubjectType
	Type          NotificationType
	Title         string
	TitleAr       string
	Message       string
	MessageAr     string
	EntityType    string
	EntityID      string
	ReadAt        *time.Time
	CreatedAt     time.Time
}
