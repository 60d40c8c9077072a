package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/request-service/internal/config"
	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/events"
	"github.com/spec-kit/request-service/internal/repository"
	"github.com/spec-kit/request-service/internal/storage"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

// UploadInput describes one file upload.
type UploadInput struct {
	FileName    string
	MimeType    string
	Size        int64
	Category    domain.DocumentCategory
	Description string
	Body        io.Reader
}

// DocumentService stores request documents: bytes in the blob store,
// metadata in the repository.
type DocumentService struct {
	documents  repository.DocumentRepository
	requests   repository.RequestRepository
	blobs      storage.BlobStore
	dispatcher events.Dispatcher
	audit      *AuditService
	logger     *zap.Logger
	maxBytes   int64
	allowed    map[string]struct{}
}

// DocumentDependencies bundles collaborators for the document service.
type DocumentDependencies struct {
	DocumentRepo repository.DocumentRepository
	RequestRepo  repository.RequestRepository
	Blobs        storage.BlobStore
	Dispatcher   events.Dispatcher
	Audit        *AuditService
	Logger       *zap.Logger
	Storage      config.StorageConfig
}

// NewDocumentService creates the service.
func NewDocumentService(deps DocumentDependencies) *DocumentService {
	allowed := make(map[string]struct{}, len(deps.Storage.AllowedMimeTypes))
	for _, mt := range deps.Storage.AllowedMimeTypes {
		allowed[strings.ToLower(strings.TrimSpace(mt))] = struct{}{}
	}
	return &DocumentService{
		documents:  deps.DocumentRepo,
		requests:   deps.RequestRepo,
		blobs:      deps.Blobs,
		dispatcher: deps.Dispatcher,
		audit:      deps.Audit,
		logger:     defaultLogger(deps.Logger),
		maxBytes:   deps.Storage.MaxUploadBytes,
		allowed:    allowed,
	}
}

// Upload stores a file against a request. Customers may only attach files
// to their own requests.
func (s *DocumentService) Upload(ctx context.Context, actor domain.Subject, requestID string, input UploadInput) (*domain.Document, error) {
	req, err := s.visibleRequest(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}
	if input.Category == "" {
		input.Category = domain.DocumentCategoryAttachment
	}
	if !input.Category.Valid() {
		return nil, apperrors.NewValidationError("document category is invalid", "تصنيف المستند غير صالح",
			map[string]any{"category": input.Category})
	}
	if actor.SubjectType() == domain.SubjectTypeCustomer && input.Category != domain.DocumentCategoryAttachment {
		return nil, apperrors.NewForbidden("customers may only upload attachments", "يمكن للعملاء رفع المرفقات فقط",
			map[string]any{"category": input.Category})
	}
	if err := s.checkFile(input); err != nil {
		return nil, err
	}

	name := path.Base(strings.ReplaceAll(strings.TrimSpace(input.FileName), "\\", "/"))
	mimeType := strings.ToLower(strings.TrimSpace(input.MimeType))
	key := fmt.Sprintf("requests/%s/%s%s", req.ID, uuid.NewString(), strings.ToLower(path.Ext(name)))
	if err := s.blobs.Put(ctx, key, input.Body, input.Size, mimeType); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("store document: %w", err))
	}

	doc := &domain.Document{
		RequestID:      req.ID,
		UploadedByID:   actor.SubjectID(),
		UploadedByType: actor.SubjectType(),
		FileName:       name,
		MimeType:       mimeType,
		SizeBytes:      input.Size,
		StorageKey:     key,
		Category:       input.Category,
		Description:    strings.TrimSpace(input.Description),
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn("orphaned document blob", zap.String("key", key), zap.Error(delErr))
		}
		return nil, lookupError(err, "request", requestID)
	}

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:       events.EventDocumentUploaded,
		EntityType: "document",
		EntityID:   doc.ID,
		Actor:      events.ActorOf(actor),
		Payload: events.DocumentUploadedPayload{
			RequestID:      req.ID,
			RequestNumber:  req.RequestNumber,
			FileName:       doc.FileName,
			UploadedByType: doc.UploadedByType,
			AssignedToID:   req.AssignedToID,
		},
	})
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditDocumentUploaded,
		EntityType: "document",
		EntityID:   doc.ID,
		NewValues:  map[string]any{"request_id": req.ID, "file_name": doc.FileName, "size_bytes": doc.SizeBytes},
	})
	return doc, nil
}

// ListByRequest returns a request's documents in upload order.
func (s *DocumentService) ListByRequest(ctx context.Context, actor domain.Subject, requestID string) ([]domain.Document, error) {
	if _, err := s.visibleRequest(ctx, actor, requestID); err != nil {
		return nil, err
	}
	docs, err := s.documents.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return docs, nil
}

// Open returns a document and a reader over its bytes. The caller closes it.
func (s *DocumentService) Open(ctx context.Context, actor domain.Subject, id string) (*domain.Document, io.ReadCloser, error) {
	doc, err := s.visibleDocument(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.blobs.Get(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, apperrors.NewNotFound("document", map[string]any{"id": id})
		}
		return nil, nil, apperrors.NewInternalError(fmt.Errorf("read document: %w", err))
	}
	return doc, body, nil
}

// Delete removes a document. Customers may only delete their own uploads.
func (s *DocumentService) Delete(ctx context.Context, actor domain.Subject, id string) error {
	doc, err := s.visibleDocument(ctx, actor, id)
	if err != nil {
		return err
	}
	if actor.SubjectType() == domain.SubjectTypeCustomer && doc.UploadedByID != actor.SubjectID() {
		return apperrors.NewForbidden("only the uploader may delete this document", "يمكن لمن رفع المستند فقط حذفه", nil)
	}
	if err := s.documents.Delete(ctx, id); err != nil {
		return lookupError(err, "document", id)
	}
	if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.Warn("orphaned document blob", zap.String("key", doc.StorageKey), zap.Error(err))
	}
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditDocumentDeleted,
		EntityType: "document",
		EntityID:   doc.ID,
		OldValues:  map[string]any{"request_id": doc.RequestID, "file_name": doc.FileName},
	})
	return nil
}

func (s *DocumentService) checkFile(input UploadInput) error {
	if strings.TrimSpace(input.FileName) == "" || input.Body == nil {
		return apperrors.NewValidationError("file is required", "الملف مطلوب", map[string]any{"fields": []string{"file"}})
	}
	if input.Size <= 0 {
		return apperrors.NewValidationError("file is empty", "الملف فارغ", nil)
	}
	if s.maxBytes > 0 && input.Size > s.maxBytes {
		return apperrors.NewBadRequest("file is too large", "حجم الملف كبير جداً",
			map[string]any{"size": input.Size, "max_size": s.maxBytes})
	}
	if len(s.allowed) > 0 {
		mimeType := strings.ToLower(strings.TrimSpace(input.MimeType))
		if i := strings.IndexByte(mimeType, ';'); i >= 0 {
			mimeType = strings.TrimSpace(mimeType[:i])
		}
		if _, ok := s.allowed[mimeType]; !ok {
			return apperrors.NewBadRequest("file type is not allowed", "نوع الملف غير مسموح",
				map[string]any{"mime_type": input.MimeType})
		}
	}
	return nil
}

// visibleRequest loads a request, hiding other customers' requests.
func (s *DocumentService) visibleRequest(ctx context.Context, actor domain.Subject, requestID string) (*domain.ServiceRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, lookupError(err, "request", requestID)
	}
	if actor.SubjectType() == domain.SubjectTypeCustomer && req.CustomerID != actor.SubjectID() {
		return nil, apperrors.NewNotFound("request", map[string]any{"id": requestID})
	}
	return req, nil
}

func (s *DocumentService) visibleDocument(ctx context.Context, actor domain.Subject, id string) (*domain.Document, error) {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "document", id)
	}
	if actor.SubjectType() == domain.SubjectTypeCustomer {
		if _, err := s.visibleRequest(ctx, actor, doc.RequestID); err != nil {
			return nil, apperrors.NewNotFound("document", map[string]any{"id": id})
		}
	}
	return doc, nil
}
