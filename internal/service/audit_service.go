package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/repository"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

// Audit actions written by the services.
const (
	AuditRequestCreated       = "REQUEST_CREATED"
	AuditRequestUpdated       = "REQUEST_UPDATED"
	AuditRequestStatusChanged = "REQUEST_STATUS_CHANGED"
	AuditRequestAssigned      = "REQUEST_ASSIGNED"
	AuditRequestDeleted       = "REQUEST_DELETED"
	AuditRoleCreated          = "ROLE_CREATED"
	AuditRoleUpdated          = "ROLE_UPDATED"
	AuditRoleDeleted          = "ROLE_DELETED"
	AuditPermissionCreated    = "PERMISSION_CREATED"
	AuditEmployeeCreated      = "EMPLOYEE_CREATED"
	AuditEmployeeUpdated      = "EMPLOYEE_UPDATED"
	AuditEmployeeDeleted      = "EMPLOYEE_DELETED"
	AuditCustomerStatus       = "CUSTOMER_STATUS_CHANGED"
	AuditCustomerDeleted      = "CUSTOMER_DELETED"
	AuditServiceCreated       = "SERVICE_CREATED"
	AuditServiceUpdated       = "SERVICE_UPDATED"
	AuditServiceDeleted       = "SERVICE_DELETED"
	AuditInvoiceCreated       = "INVOICE_CREATED"
	AuditInvoiceStatusChanged = "INVOICE_STATUS_CHANGED"
	AuditPaymentRecorded      = "PAYMENT_RECORDED"
	AuditPaymentStatusChanged = "PAYMENT_STATUS_CHANGED"
	AuditDocumentUploaded     = "DOCUMENT_UPLOADED"
	AuditDocumentDeleted      = "DOCUMENT_DELETED"
	AuditPasswordReset        = "PASSWORD_RESET"
)

type requestMetaKey struct{}

// RequestMeta carries caller network details into audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// WithRequestMeta attaches meta to ctx.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func requestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// AuditRecord describes one mutation to record.
type AuditRecord struct {
	Actor      domain.Subject
	Action     string
	EntityType string
	EntityID   string
	OldValues  map[string]any
	NewValues  map[string]any
}

// AuditService appends to and reads the audit log.
type AuditService struct {
	repo   repository.AuditRepository
	logger *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(repo repository.AuditRepository, logger *zap.Logger) *AuditService {
	return &AuditService{repo: repo, logger: defaultLogger(logger)}
}

// Record writes an entry. Failures are logged and never returned to the
// caller, whose mutation has already committed.
func (s *AuditService) Record(ctx context.Context, rec AuditRecord) {
	if s == nil || s.repo == nil {
		return
	}
	meta := requestMetaFrom(ctx)
	entry := &domain.AuditEntry{
		Action:     rec.Action,
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		OldValues:  rec.OldValues,
		NewValues:  rec.NewValues,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	}
	if rec.Actor != nil {
		id := rec.Actor.SubjectID()
		kind := rec.Actor.SubjectType()
		entry.ActorID = &id
		entry.ActorType = &kind
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Warn("audit write failed",
			zap.String("action", rec.Action),
			zap.String("entity_type", rec.EntityType),
			zap.String("entity_id", rec.EntityID),
			zap.Error(err))
	}
}

// List returns audit entries matching filter, newest first.
func (s *AuditService) List(ctx context.Context, filter repository.AuditFilter) ([]domain.AuditEntry, int, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return entries, total, nil
}
