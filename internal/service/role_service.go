package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/repository"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

// RoleService administers roles and their permission sets.
type RoleService struct {
	roles       repository.RoleRepository
	permissions repository.PermissionRepository
	employees   repository.EmployeeRepository
	audit       *AuditService
	logger      *zap.Logger
}

// RoleDependencies bundles repositories for the role service.
type RoleDependencies struct {
	RoleRepo       repository.RoleRepository
	PermissionRepo repository.PermissionRepository
	EmployeeRepo   repository.EmployeeRepository
	Audit          *AuditService
	Logger         *zap.Logger
}

// RoleCreateInput describes a new role.
type RoleCreateInput struct {
	Name          string
	NameAr        string
	Description   string
	PermissionIDs []string
}

// RoleUpdateInput carries optional role changes. A non-nil PermissionIDs
// replaces the whole permission set.
type RoleUpdateInput struct {
	Name          *string
	NameAr        *string
	Description   *string
	PermissionIDs *[]string
}

// NewRoleService creates the service.
func NewRoleService(deps RoleDependencies) *RoleService {
	return &RoleService{
		roles:       deps.RoleRepo,
		permissions: deps.PermissionRepo,
		employees:   deps.EmployeeRepo,
		audit:       deps.Audit,
		logger:      defaultLogger(deps.Logger),
	}
}

// Create adds a non-admin role with an optional initial permission set.
func (s *RoleService) Create(ctx context.Context, actor domain.Subject, input RoleCreateInput) (*domain.Role, error) {
	name := strings.TrimSpace(input.Name)
	if err := requireText(map[string]string{"name": name}); err != nil {
		return nil, err
	}
	ids, err := s.resolvePermissionIDs(ctx, input.PermissionIDs)
	if err != nil {
		return nil, err
	}
	role := &domain.Role{
		Name:        name,
		NameAr:      strings.TrimSpace(input.NameAr),
		Description: strings.TrimSpace(input.Description),
	}
	if err := s.roles.Create(ctx, role, ids); err != nil {
		return nil, roleWriteError(err, name)
	}
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditRoleCreated,
		EntityType: "role",
		EntityID:   role.ID,
		NewValues:  map[string]any{"name": role.Name, "permission_ids": ids},
	})
	return s.Get(ctx, role.ID)
}

// List returns every role with its permissions and employee count.
func (s *RoleService) List(ctx context.Context) ([]domain.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	var all []domain.Permission
	for i := range roles {
		if !roles[i].IsAdmin {
			continue
		}
		if all == nil {
			if all, err = s.permissions.List(ctx); err != nil {
				return nil, apperrors.MapError(err)
			}
		}
		roles[i].Permissions = all
	}
	return roles, nil
}

// Get returns one role. The admin role lists every registered permission.
func (s *RoleService) Get(ctx context.Context, id string) (*domain.Role, error) {
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "role", id)
	}
	if role.IsAdmin {
		all, err := s.permissions.List(ctx)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		role.Permissions = all
	}
	return role, nil
}

// Update changes name, description or the permission set in one write.
func (s *RoleService) Update(ctx context.Context, actor domain.Subject, id string, input RoleUpdateInput) (*domain.Role, error) {
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "role", id)
	}
	if role.IsAdmin {
		if input.Name != nil && strings.TrimSpace(*input.Name) != role.Name {
			return nil, apperrors.NewBadRequest("the admin role cannot be renamed", "لا يمكن إعادة تسمية دور المسؤول", nil)
		}
		if input.PermissionIDs != nil {
			return nil, apperrors.NewBadRequest("the admin role permissions cannot be changed",
				"لا يمكن تعديل صلاحيات دور المسؤول", nil)
		}
	}

	old := map[string]any{"name": role.Name, "permissions": role.PermissionNames()}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewValidationError("name cannot be empty", "لا يمكن أن يكون الاسم فارغاً",
				map[string]any{"fields": []string{"name"}})
		}
		role.Name = name
	}
	if input.NameAr != nil {
		role.NameAr = strings.TrimSpace(*input.NameAr)
	}
	if input.Description != nil {
		role.Description = strings.TrimSpace(*input.Description)
	}

	ids := make([]string, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		ids = append(ids, p.ID)
	}
	if input.PermissionIDs != nil {
		if ids, err = s.resolvePermissionIDs(ctx, *input.PermissionIDs); err != nil {
			return nil, err
		}
	}
	if err := s.roles.Update(ctx, role, ids); err != nil {
		return nil, roleWriteError(err, role.Name)
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditRoleUpdated,
		EntityType: "role",
		EntityID:   id,
		OldValues:  old,
		NewValues:  map[string]any{"name": updated.Name, "permissions": updated.PermissionNames()},
	})
	return updated, nil
}

// Delete removes a role no employee references. The admin role is permanent.
func (s *RoleService) Delete(ctx context.Context, actor domain.Subject, id string) error {
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return lookupError(err, "role", id)
	}
	if role.IsAdmin {
		return apperrors.NewBadRequest("the admin role cannot be deleted", "لا يمكن حذف دور المسؤول", nil)
	}
	count, err := s.employees.CountByRole(ctx, id)
	if err != nil {
		return apperrors.MapError(err)
	}
	if count > 0 {
		return roleInUse(id, count)
	}
	if err := s.roles.Delete(ctx, id); err != nil {
		if isForeignKeyViolation(err) {
			return roleInUse(id, count)
		}
		return lookupError(err, "role", id)
	}
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditRoleDeleted,
		EntityType: "role",
		EntityID:   id,
		OldValues:  map[string]any{"name": role.Name},
	})
	return nil
}

func roleInUse(id string, count int) error {
	return apperrors.NewBadRequest("role is assigned to employees", "الدور مسند إلى موظفين",
		map[string]any{"role_id": id, "employee_count": count})
}

// resolvePermissionIDs deduplicates ids and checks each exists.
func (s *RoleService) resolvePermissionIDs(ctx context.Context, ids []string) ([]string, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	var malformed []string
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			malformed = append(malformed, id)
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(malformed) > 0 {
		return nil, apperrors.NewNotFound("permission", map[string]any{"ids": malformed})
	}
	if len(unique) == 0 {
		return unique, nil
	}
	found, err := s.permissions.GetByIDs(ctx, unique)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(found) != len(unique) {
		known := make(map[string]struct{}, len(found))
		for _, p := range found {
			known[p.ID] = struct{}{}
		}
		var missing []string
		for _, id := range unique {
			if _, ok := known[id]; !ok {
				missing = append(missing, id)
			}
		}
		return nil, apperrors.NewNotFound("permission", map[string]any{"ids": missing})
	}
	return unique, nil
}

func roleWriteError(err error, name string) error {
	if isUniqueViolation(err) {
		return apperrors.NewConflict("role name already exists", "اسم الدور موجود مسبقاً", map[string]any{"name": name})
	}
	return apperrors.MapError(err)
}
