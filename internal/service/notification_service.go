package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/request-service/internal/config"
	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/events"
	"github.com/spec-kit/request-service/internal/repository"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

// NotificationService turns domain events into in-app notifications and
// serves each principal's inbox.
type NotificationService struct {
	repo       repository.NotificationRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	now        Clock
}

// NewNotificationService creates the service.
func NewNotificationService(repo repository.NotificationRepository, dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     defaultLogger(logger),
		cfg:        cfg,
		now:        defaultClock(nil),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventRequestStatusChanged, n.handleRequestStatusChanged)
	n.dispatcher.Subscribe(events.EventRequestAssigned, n.handleRequestAssigned)
	n.dispatcher.Subscribe(events.EventInvoiceIssued, n.handleInvoiceIssued)
	n.dispatcher.Subscribe(events.EventPaymentCompleted, n.handlePaymentCompleted)
	n.dispatcher.Subscribe(events.EventDocumentUploaded, n.handleDocumentUploaded)
}

func (n *NotificationService) handleRequestStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RequestStatusChangedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	note := &domain.Notification{
		RecipientID:   payload.CustomerID,
		RecipientType: domain.SubjectTypeCustomer,
		Type:          domain.NotificationRequestStatusChanged,
		Title:         fmt.Sprintf("Request %s updated", payload.RequestNumber),
		TitleAr:       fmt.Sprintf("تم تحديث الطلب %s", payload.RequestNumber),
		Message:       fmt.Sprintf("Status changed from %s to %s.", payload.OldStatus, payload.NewStatus),
		MessageAr:     fmt.Sprintf("تغيرت الحالة من %s إلى %s.", payload.OldStatus, payload.NewStatus),
		EntityType:    "request",
		EntityID:      event.EntityID,
	}
	if payload.Reason != "" {
		note.Message += " " + payload.Reason
	}
	if payload.ReasonAr != "" {
		note.MessageAr += " " + payload.ReasonAr
	}
	n.sendWebhookNotificationStub(ctx, event)
	return n.deliver(ctx, event, note)
}

func (n *NotificationService) handleRequestAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RequestAssignedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	n.sendWebhookNotificationStub(ctx, event)
	return n.deliver(ctx, event, &domain.Notification{
		RecipientID:   payload.AssigneeID,
		RecipientType: domain.SubjectTypeEmployee,
		Type:          domain.NotificationRequestAssigned,
		Title:         fmt.Sprintf("Request %s assigned to you", payload.RequestNumber),
		TitleAr:       fmt.Sprintf("تم إسناد الطلب %s إليك", payload.RequestNumber),
		Message:       payload.Notes,
		MessageAr:     payload.Notes,
		EntityType:    "request",
		EntityID:      event.EntityID,
	})
}

func (n *NotificationService) handleInvoiceIssued(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.InvoiceIssuedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	due := payload.DueDate.Format("2006-01-02")
	n.sendEmailNotificationStub(ctx, event)
	return n.deliver(ctx, event, &domain.Notification{
		RecipientID:   payload.CustomerID,
		RecipientType: domain.SubjectTypeCustomer,
		Type:          domain.NotificationInvoiceIssued,
		Title:         fmt.Sprintf("Invoice %s issued", payload.InvoiceNumber),
		TitleAr:       fmt.Sprintf("تم إصدار الفاتورة %s", payload.InvoiceNumber),
		Message:       fmt.Sprintf("Amount due %s, payable by %s.", formatAmount(payload.Total, payload.Currency), due),
		MessageAr:     fmt.Sprintf("المبلغ المستحق %s، يستحق الدفع قبل %s.", formatAmount(payload.Total, payload.Currency), due),
		EntityType:    "invoice",
		EntityID:      event.EntityID,
	})
}

func (n *NotificationService) handlePaymentCompleted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PaymentCompletedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	amount := formatAmount(payload.Amount, payload.Currency)
	n.sendEmailNotificationStub(ctx, event)
	return n.deliver(ctx, event, &domain.Notification{
		RecipientID:   payload.CustomerID,
		RecipientType: domain.SubjectTypeCustomer,
		Type:          domain.NotificationPaymentCompleted,
		Title:         fmt.Sprintf("Payment received for %s", payload.InvoiceNumber),
		TitleAr:       fmt.Sprintf("تم استلام دفعة للفاتورة %s", payload.InvoiceNumber),
		Message:       fmt.Sprintf("We received %s.", amount),
		MessageAr:     fmt.Sprintf("استلمنا مبلغ %s.", amount),
		EntityType:    "invoice",
		EntityID:      payload.InvoiceID,
	})
}

// handleDocumentUploaded tells the assignee when a customer adds a file.
func (n *NotificationService) handleDocumentUploaded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.DocumentUploadedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	if payload.UploadedByType != domain.SubjectTypeCustomer || payload.AssignedToID == nil {
		return nil
	}
	return n.deliver(ctx, event, &domain.Notification{
		RecipientID:   *payload.AssignedToID,
		RecipientType: domain.SubjectTypeEmployee,
		Type:          domain.NotificationDocumentUploaded,
		Title:         fmt.Sprintf("New document on %s", payload.RequestNumber),
		TitleAr:       fmt.Sprintf("مستند جديد على الطلب %s", payload.RequestNumber),
		Message:       payload.FileName,
		MessageAr:     payload.FileName,
		EntityType:    "request",
		EntityID:      payload.RequestID,
	})
}

func (n *NotificationService) deliver(ctx context.Context, event events.Event, note *domain.Notification) error {
	if note.RecipientID == "" || n.repo == nil {
		return nil
	}
	if err := n.repo.Create(ctx, note); err != nil {
		return fmt.Errorf("store notification for %s: %w", event.Type, err)
	}
	n.logger.Debug("notification stored",
		zap.String("event_type", string(event.Type)),
		zap.String("recipient_id", note.RecipientID))
	return nil
}

// List returns the subject's notifications, newest first.
func (n *NotificationService) List(ctx context.Context, subject domain.Subject, unreadOnly bool, limit, offset int) ([]domain.Notification, int, error) {
	items, total, err := n.repo.List(ctx, repository.NotificationFilter{
		RecipientID:   subject.SubjectID(),
		RecipientType: subject.SubjectType(),
		UnreadOnly:    unreadOnly,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return items, total, nil
}

// UnreadCount returns how many notifications the subject has not read.
func (n *NotificationService) UnreadCount(ctx context.Context, subject domain.Subject) (int, error) {
	count, err := n.repo.CountUnread(ctx, subject)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return count, nil
}

// MarkRead marks one of the subject's notifications read.
func (n *NotificationService) MarkRead(ctx context.Context, subject domain.Subject, id string) error {
	if err := n.repo.MarkRead(ctx, id, subject, n.now()); err != nil {
		return lookupError(err, "notification", id)
	}
	return nil
}

// MarkAllRead marks every unread notification of the subject read.
func (n *NotificationService) MarkAllRead(ctx context.Context, subject domain.Subject) (int, error) {
	count, err := n.repo.MarkAllRead(ctx, subject, n.now())
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return count, nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("entity_id", event.EntityID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("entity_id", event.EntityID),
		zap.String("event_type", string(event.Type)))
}

var errUnexpectedPayload = errors.New("unexpected event payload")

func unexpectedPayload(event events.Event) error {
	return fmt.Errorf("%w: %s carries %T", errUnexpectedPayload, event.Type, event.Payload)
}

// formatAmount renders minor units with two decimals.
func formatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, minor/100, minor%100, currency)
}
