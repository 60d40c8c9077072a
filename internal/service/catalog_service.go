package service

import (
	"context"
	"strings"

	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/repository"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

// ServiceInput describes a catalog entry. Nil fields are left unchanged on update.
type ServiceInput struct {
	Code          *string
	Name          *string
	NameAr        *string
	Description   *string
	DescriptionAr *string
	Category      *string
	BasePrice     *int64
	Currency      *string
	EstimatedDays *int
	IsActive      *bool
}

// CatalogService manages the service catalog.
type CatalogService struct {
	repo            repository.CatalogRepository
	audit           *AuditService
	defaultCurrency string
}

// NewCatalogService creates the service.
func NewCatalogService(repo repository.CatalogRepository, audit *AuditService, defaultCurrency string) *CatalogService {
	return &CatalogService{repo: repo, audit: audit, defaultCurrency: defaultCurrency}
}

// ListActive returns services customers can request.
func (s *CatalogService) ListActive(ctx context.Context) ([]domain.Service, error) {
	return s.List(ctx, false)
}

// List returns the catalog, optionally including inactive entries.
func (s *CatalogService) List(ctx context.Context, includeInactive bool) ([]domain.Service, error) {
	services, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return services, nil
}

// Get returns a service by id.
func (s *CatalogService) Get(ctx context.Context, id string) (*domain.Service, error) {
	svc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "service", id)
	}
	return svc, nil
}

// GetActive returns a service only when it is active.
func (s *CatalogService) GetActive(ctx context.Context, id string) (*domain.Service, error) {
	svc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return nil, apperrors.NewNotFound("service", map[string]any{"id": id})
	}
	return svc, nil
}

// Create adds a catalog entry. New services are active unless stated otherwise.
func (s *CatalogService) Create(ctx context.Context, actor domain.Subject, input ServiceInput) (*domain.Service, error) {
	svc := &domain.Service{Currency: s.defaultCurrency, IsActive: true}
	applyServiceInput(svc, input)
	if err := validateService(svc); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, svc); err != nil {
		return nil, serviceWriteError(err, svc.Code)
	}
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditServiceCreated,
		EntityType: "service",
		EntityID:   svc.ID,
		NewValues:  map[string]any{"code": svc.Code, "base_price": svc.BasePrice},
	})
	return svc, nil
}

// Update applies the supplied fields.
func (s *CatalogService) Update(ctx context.Context, actor domain.Subject, id string, input ServiceInput) (*domain.Service, error) {
	svc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := map[string]any{"code": svc.Code, "base_price": svc.BasePrice, "is_active": svc.IsActive}
	applyServiceInput(svc, input)
	if err := validateService(svc); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, svc); err != nil {
		return nil, serviceWriteError(err, svc.Code)
	}
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditServiceUpdated,
		EntityType: "service",
		EntityID:   svc.ID,
		OldValues:  old,
		NewValues:  map[string]any{"code": svc.Code, "base_price": svc.BasePrice, "is_active": svc.IsActive},
	})
	return svc, nil
}

// Delete removes a service no request references.
func (s *CatalogService) Delete(ctx context.Context, actor domain.Subject, id string) error {
	svc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	count, err := s.repo.CountRequests(ctx, id)
	if err != nil {
		return apperrors.MapError(err)
	}
	if count > 0 {
		return serviceInUse(id, count)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if isForeignKeyViolation(err) {
			return serviceInUse(id, count)
		}
		return lookupError(err, "service", id)
	}
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditServiceDeleted,
		EntityType: "service",
		EntityID:   id,
		OldValues:  map[string]any{"code": svc.Code},
	})
	return nil
}

func serviceInUse(id string, count int) error {
	return apperrors.NewConflict("service is referenced by requests", "الخدمة مرتبطة بطلبات",
		map[string]any{"service_id": id, "request_count": count})
}

func serviceWriteError(err error, code string) error {
	if isUniqueViolation(err) {
		return apperrors.NewConflict("service code already exists", "رمز الخدمة موجود مسبقاً", map[string]any{"code": code})
	}
	return apperrors.MapError(err)
}

func applyServiceInput(svc *domain.Service, input ServiceInput) {
	text := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	text(&svc.Code, input.Code)
	text(&svc.Name, input.Name)
	text(&svc.NameAr, input.NameAr)
	text(&svc.Description, input.Description)
	text(&svc.DescriptionAr, input.DescriptionAr)
	text(&svc.Category, input.Category)
	text(&svc.Currency, input.Currency)
	if input.BasePrice != nil {
		svc.BasePrice = *input.BasePrice
	}
	if input.EstimatedDays != nil {
		svc.EstimatedDays = *input.EstimatedDays
	}
	if input.IsActive != nil {
		svc.IsActive = *input.IsActive
	}
	svc.Code = strings.ToUpper(svc.Code)
	svc.Currency = strings.ToUpper(svc.Currency)
}

func validateService(svc *domain.Service) error {
	if err := requireText(map[string]string{
		"code":     svc.Code,
		"name":     svc.Name,
		"name_ar":  svc.NameAr,
		"category": svc.Category,
		"currency": svc.Currency,
	}); err != nil {
		return err
	}
	if svc.BasePrice < 0 || svc.EstimatedDays < 0 {
		return apperrors.NewValidationError("price and estimated days cannot be negative",
			"لا يمكن أن يكون السعر أو المدة سالبة",
			map[string]any{"base_price": svc.BasePrice, "estimated_days": svc.EstimatedDays})
	}
	return nil
}
