package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/events"
	"github.com/spec-kit/request-service/internal/repository"
	"github.com/spec-kit/request-service/internal/storage"
	"github.com/spec-kit/request-service/internal/workflow"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

// TransitionRecorder observes successful workflow moves.
type TransitionRecorder interface {
	RecordTransition(from, to string)
}

// RequestService coordinates the service request workflow.
type RequestService struct {
	requests   repository.RequestRepository
	catalog    repository.CatalogRepository
	invoices   repository.InvoiceRepository
	documents  repository.DocumentRepository
	blobs      storage.BlobStore
	dispatcher events.Dispatcher
	audit      *AuditService
	metrics    TransitionRecorder
	logger     *zap.Logger
	now        Clock
}

// RequestDependencies bundles collaborators for the request service.
type RequestDependencies struct {
	RequestRepo  repository.RequestRepository
	CatalogRepo  repository.CatalogRepository
	InvoiceRepo  repository.InvoiceRepository
	DocumentRepo repository.DocumentRepository
	Blobs        storage.BlobStore
	Dispatcher   events.Dispatcher
	Audit        *AuditService
	Metrics      TransitionRecorder
	Logger       *zap.Logger
	Clock        Clock
}

// RequestCreateInput describes a new request.
type RequestCreateInput struct {
	ServiceID     string
	Priority      domain.RequestPriority
	Title         string
	TitleAr       string
	Description   string
	DescriptionAr string
	Notes         string
	NotesAr       string
}

// RequestUpdateInput carries optional detail edits. Status is not editable here.
type RequestUpdateInput struct {
	Priority      *domain.RequestPriority
	Title         *string
	TitleAr       *string
	Description   *string
	DescriptionAr *string
	Notes         *string
	NotesAr       *string
}

// StatusChangeInput requests a workflow move with an optional bilingual reason.
type StatusChangeInput struct {
	Status   domain.RequestStatus
	Reason   string
	ReasonAr string
}

// NewRequestService constructs the service.
func NewRequestService(deps RequestDependencies) *RequestService {
	return &RequestService{
		requests:   deps.RequestRepo,
		catalog:    deps.CatalogRepo,
		invoices:   deps.InvoiceRepo,
		documents:  deps.DocumentRepo,
		blobs:      deps.Blobs,
		dispatcher: deps.Dispatcher,
		audit:      deps.Audit,
		metrics:    deps.Metrics,
		logger:     defaultLogger(deps.Logger),
		now:        defaultClock(deps.Clock),
	}
}

// Create opens a DRAFT request for customerID against an active service.
func (s *RequestService) Create(ctx context.Context, customerID string, input RequestCreateInput) (*domain.ServiceRequest, error) {
	title := strings.TrimSpace(input.Title)
	if err := requireText(map[string]string{"service_id": input.ServiceID, "title": title}); err != nil {
		return nil, err
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.RequestPriorityMedium
	}
	if !priority.Valid() {
		return nil, invalidPriority(priority)
	}
	svc, err := s.catalog.GetByID(ctx, input.ServiceID)
	if err != nil {
		return nil, lookupError(err, "service", input.ServiceID)
	}
	if !svc.IsActive {
		return nil, apperrors.NewBadRequest("service is not available", "الخدمة غير متاحة",
			map[string]any{"service_id": svc.ID})
	}

	req := &domain.ServiceRequest{
		CustomerID:    customerID,
		ServiceID:     svc.ID,
		Status:        workflow.InitialStatus,
		Priority:      priority,
		Title:         title,
		TitleAr:       strings.TrimSpace(input.TitleAr),
		Description:   strings.TrimSpace(input.Description),
		DescriptionAr: strings.TrimSpace(input.DescriptionAr),
		Notes:         strings.TrimSpace(input.Notes),
		NotesAr:       strings.TrimSpace(input.NotesAr),
		CreatedAt:     s.now(),
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, apperrors.MapError(err)
	}

	customer := domain.Actor{ID: customerID, Type: domain.SubjectTypeCustomer}
	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:       events.EventRequestCreated,
		EntityType: "request",
		EntityID:   req.ID,
		Actor:      events.ActorOf(customer),
		Payload: events.RequestCreatedPayload{
			RequestNumber: req.RequestNumber,
			CustomerID:    req.CustomerID,
			ServiceID:     req.ServiceID,
			Title:         req.Title,
		},
	})
	s.audit.Record(ctx, AuditRecord{
		Actor:      customer,
		Action:     AuditRequestCreated,
		EntityType: "request",
		EntityID:   req.ID,
		NewValues:  map[string]any{"request_number": req.RequestNumber, "service_id": req.ServiceID},
	})
	return req, nil
}

// FindAll lists requests for employees.
func (s *RequestService) FindAll(ctx context.Context, filter repository.RequestFilter) ([]domain.ServiceRequest, int, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, 0, invalidStatus(st)
		}
	}
	for _, p := range filter.Priorities {
		if !p.Valid() {
			return nil, 0, invalidPriority(p)
		}
	}
	items, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return items, total, nil
}

// FindOne returns a request by id.
func (s *RequestService) FindOne(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "request", id)
	}
	return req, nil
}

// ListForCustomer lists the customer's own requests.
func (s *RequestService) ListForCustomer(ctx context.Context, customerID string, filter repository.RequestFilter) ([]domain.ServiceRequest, int, error) {
	filter.CustomerID = &customerID
	filter.AssignedToID = nil
	return s.FindAll(ctx, filter)
}

// GetForCustomer returns a request the customer owns. Other customers'
// requests are reported as missing.
func (s *RequestService) GetForCustomer(ctx context.Context, customerID, id string) (*domain.ServiceRequest, error) {
	req, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.CustomerID != customerID {
		return nil, apperrors.NewNotFound("request", map[string]any{"id": id})
	}
	return req, nil
}

// Update edits request details. Customers may only edit their own DRAFT
// requests; ownership and status are checked on the locked row.
func (s *RequestService) Update(ctx context.Context, actor domain.Subject, id string, input RequestUpdateInput) (*domain.ServiceRequest, error) {
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, invalidPriority(*input.Priority)
	}
	var title string
	if input.Title != nil {
		if title = strings.TrimSpace(*input.Title); title == "" {
			return nil, apperrors.NewValidationError("title cannot be empty", "لا يمكن أن يكون العنوان فارغاً",
				map[string]any{"fields": []string{"title"}})
		}
	}

	req, err := s.requests.UpdateDetails(ctx, id, func(req *domain.ServiceRequest) error {
		if actor.SubjectType() == domain.SubjectTypeCustomer {
			if req.CustomerID != actor.SubjectID() {
				return apperrors.NewNotFound("request", map[string]any{"id": id})
			}
			if req.Status != domain.RequestStatusDraft {
				return apperrors.NewBadRequest("only draft requests can be edited", "يمكن تعديل الطلبات المسودة فقط",
					map[string]any{"status": req.Status})
			}
		}
		if input.Priority != nil {
			req.Priority = *input.Priority
		}
		if input.Title != nil {
			req.Title = title
		}
		for dst, src := range map[*string]*string{
			&req.TitleAr:       input.TitleAr,
			&req.Description:   input.Description,
			&req.DescriptionAr: input.DescriptionAr,
			&req.Notes:         input.Notes,
			&req.NotesAr:       input.NotesAr,
		} {
			if src != nil {
				*dst = strings.TrimSpace(*src)
			}
		}
		return nil
	})
	if err != nil {
		return nil, lookupError(err, "request", id)
	}
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditRequestUpdated,
		EntityType: "request",
		EntityID:   req.ID,
		NewValues:  map[string]any{"title": req.Title, "priority": req.Priority},
	})
	return req, nil
}

// UpdateStatus moves a request through the workflow. The row is locked for
// the read-validate-write so concurrent moves serialize.
func (s *RequestService) UpdateStatus(ctx context.Context, actor domain.Subject, id string, input StatusChangeInput) (*domain.ServiceRequest, error) {
	return s.transition(ctx, actor, id, input, nil)
}

// Submit moves the customer's DRAFT request to SUBMITTED.
func (s *RequestService) Submit(ctx context.Context, customer domain.Subject, id string) (*domain.ServiceRequest, error) {
	return s.transition(ctx, customer, id, StatusChangeInput{Status: domain.RequestStatusSubmitted}, ownedBy(customer.SubjectID(), id))
}

// Cancel cancels the customer's request while it has not entered review.
func (s *RequestService) Cancel(ctx context.Context, customer domain.Subject, id, reason, reasonAr string) (*domain.ServiceRequest, error) {
	owned := ownedBy(customer.SubjectID(), id)
	guard := func(req *domain.ServiceRequest) error {
		if err := owned(req); err != nil {
			return err
		}
		if req.Status != domain.RequestStatusDraft && req.Status != domain.RequestStatusSubmitted {
			return apperrors.NewBadRequest("request can no longer be cancelled by the customer",
				"لم يعد بإمكان العميل إلغاء الطلب", map[string]any{"status": req.Status})
		}
		return nil
	}
	input := StatusChangeInput{Status: domain.RequestStatusCancelled, Reason: reason, ReasonAr: reasonAr}
	return s.transition(ctx, customer, id, input, guard)
}

func ownedBy(customerID, id string) func(req *domain.ServiceRequest) error {
	return func(req *domain.ServiceRequest) error {
		if req.CustomerID != customerID {
			return apperrors.NewNotFound("request", map[string]any{"id": id})
		}
		return nil
	}
}

func (s *RequestService) transition(
	ctx context.Context,
	actor domain.Subject,
	id string,
	input StatusChangeInput,
	guard func(req *domain.ServiceRequest) error,
) (*domain.ServiceRequest, error) {
	if !input.Status.Valid() {
		return nil, invalidStatus(input.Status)
	}
	reason := workflow.Reason{Text: strings.TrimSpace(input.Reason), TextAr: strings.TrimSpace(input.ReasonAr)}

	var from domain.RequestStatus
	updated, err := s.requests.Transition(ctx, id, func(req *domain.ServiceRequest) error {
		if guard != nil {
			if err := guard(req); err != nil {
				return err
			}
		}
		from = req.Status
		return workflow.Apply(req, input.Status, reason, s.now())
	})
	if err != nil {
		var transitionErr *workflow.TransitionError
		if errors.As(err, &transitionErr) {
			return nil, apperrors.NewBadRequest(
				"status transition is not allowed",
				"الانتقال إلى هذه الحالة غير مسموح",
				map[string]any{
					"from":    transitionErr.From,
					"to":      transitionErr.To,
					"allowed": transitionErr.Allowed,
				})
		}
		return nil, lookupError(err, "request", id)
	}

	if s.metrics != nil {
		s.metrics.RecordTransition(string(from), string(updated.Status))
	}
	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:       events.EventRequestStatusChanged,
		EntityType: "request",
		EntityID:   updated.ID,
		Actor:      events.ActorOf(actor),
		Payload: events.RequestStatusChangedPayload{
			RequestNumber: updated.RequestNumber,
			CustomerID:    updated.CustomerID,
			AssignedToID:  updated.AssignedToID,
			OldStatus:     from,
			NewStatus:     updated.Status,
			Reason:        reason.Text,
			ReasonAr:      reason.TextAr,
		},
	})
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditRequestStatusChanged,
		EntityType: "request",
		EntityID:   updated.ID,
		OldValues:  map[string]any{"status": from},
		NewValues:  map[string]any{"status": updated.Status, "reason": reason.Text},
	})
	return updated, nil
}

// Remove deletes a request with no invoices, its documents and their blobs.
func (s *RequestService) Remove(ctx context.Context, actor domain.Subject, id string) error {
	req, err := s.FindOne(ctx, id)
	if err != nil {
		return err
	}
	count, err := s.invoices.CountByRequest(ctx, id)
	if err != nil {
		return apperrors.MapError(err)
	}
	if count > 0 {
		return requestInvoiced(id, count)
	}
	docs, err := s.documents.ListByRequest(ctx, id)
	if err != nil {
		return apperrors.MapError(err)
	}
	if err := s.requests.Delete(ctx, id); err != nil {
		if isForeignKeyViolation(err) {
			return requestInvoiced(id, count)
		}
		return lookupError(err, "request", id)
	}
	if s.blobs != nil {
		for _, doc := range docs {
			if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil {
				s.logger.Warn("document blob not removed", zap.String("storage_key", doc.StorageKey), zap.Error(err))
			}
		}
	}
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditRequestDeleted,
		EntityType: "request",
		EntityID:   id,
		OldValues:  map[string]any{"request_number": req.RequestNumber, "status": req.Status},
	})
	return nil
}

func requestInvoiced(id string, count int) error {
	return apperrors.NewConflict("request has invoices", "الطلب مرتبط بفواتير",
		map[string]any{"request_id": id, "invoice_count": count})
}

func invalidStatus(status domain.RequestStatus) error {
	return apperrors.NewValidationError("status is invalid", "الحالة غير صالحة",
		map[string]any{"status": status, "allowed": domain.RequestStatuses})
}

func invalidPriority(priority domain.RequestPriority) error {
	return apperrors.NewValidationError("priority is invalid", "الأولوية غير صالحة", map[string]any{"priority": priority})
}
