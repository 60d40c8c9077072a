package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/request-service/internal/auth"
	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/repository"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

// PermissionService manages the permission registry.
type PermissionService struct {
	repo   repository.PermissionRepository
	audit  *AuditService
	logger *zap.Logger
}

// NewPermissionService creates the service.
func NewPermissionService(repo repository.PermissionRepository, audit *AuditService, logger *zap.Logger) *PermissionService {
	return &PermissionService{repo: repo, audit: audit, logger: defaultLogger(logger)}
}

// SeedBuiltin inserts the builtin registry; existing names are left alone.
func (s *PermissionService) SeedBuiltin(ctx context.Context) (int, error) {
	inserted, err := s.repo.Seed(ctx, auth.BuiltinPermissions())
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	if inserted > 0 {
		s.logger.Info("permissions seeded", zap.Int("inserted", inserted))
	}
	return inserted, nil
}

// List returns every permission ordered by module and action.
func (s *PermissionService) List(ctx context.Context) ([]domain.Permission, error) {
	perms, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return perms, nil
}

// Create registers a new permission. The admin role holds it immediately.
func (s *PermissionService) Create(ctx context.Context, actor domain.Subject, name, description string) (*domain.Permission, error) {
	name = strings.TrimSpace(name)
	module, action, ok := domain.ParsePermissionName(name)
	if !ok {
		return nil, apperrors.NewValidationError(
			"permission name must look like module:action",
			"يجب أن يكون اسم الصلاحية بالشكل module:action",
			map[string]any{"name": name})
	}
	perm := &domain.Permission{
		Name:        name,
		Module:      module,
		Action:      action,
		Description: strings.TrimSpace(description),
	}
	if err := s.repo.Create(ctx, perm); err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.NewConflict("permission already exists", "الصلاحية موجودة مسبقاً",
				map[string]any{"name": name})
		}
		return nil, apperrors.MapError(err)
	}
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditPermissionCreated,
		EntityType: "permission",
		EntityID:   perm.ID,
		NewValues:  map[string]any{"name": perm.Name},
	})
	return perm, nil
}
