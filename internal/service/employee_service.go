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

// EmployeeCreateInput describes a new employee account.
type EmployeeCreateInput struct {
	EmployeeCode string
	Email        string
	Password     string
	FullName     string
	FullNameAr   string
	Phone        string
	Department   string
	JobTitle     string
	RoleID       string
}

// EmployeeUpdateInput carries optional employee edits.
type EmployeeUpdateInput struct {
	FullName   *string
	FullNameAr *string
	Phone      *string
	Department *string
	JobTitle   *string
	RoleID     *string
	Status     *domain.PrincipalStatus
}

// EmployeeService administers employee accounts.
type EmployeeService struct {
	employees  repository.EmployeeRepository
	roles      repository.RoleRepository
	refresh    repository.RefreshTokenRepository
	audit      *AuditService
	logger     *zap.Logger
	bcryptCost int
}

// EmployeeDependencies bundles repositories for the employee service.
type EmployeeDependencies struct {
	EmployeeRepo     repository.EmployeeRepository
	RoleRepo         repository.RoleRepository
	RefreshTokenRepo repository.RefreshTokenRepository
	Audit            *AuditService
	Logger           *zap.Logger
	BcryptCost       int
}

// NewEmployeeService creates the service.
func NewEmployeeService(deps EmployeeDependencies) *EmployeeService {
	return &EmployeeService{
		employees:  deps.EmployeeRepo,
		roles:      deps.RoleRepo,
		refresh:    deps.RefreshTokenRepo,
		audit:      deps.Audit,
		logger:     defaultLogger(deps.Logger),
		bcryptCost: deps.BcryptCost,
	}
}

// Create adds an employee under an existing role.
func (s *EmployeeService) Create(ctx context.Context, actor domain.Subject, input EmployeeCreateInput) (*domain.Employee, error) {
	employee := &domain.Employee{
		EmployeeCode: strings.TrimSpace(input.EmployeeCode),
		Email:        normalizeEmail(input.Email),
		FullName:     strings.TrimSpace(input.FullName),
		FullNameAr:   strings.TrimSpace(input.FullNameAr),
		Phone:        strings.TrimSpace(input.Phone),
		Department:   strings.TrimSpace(input.Department),
		JobTitle:     strings.TrimSpace(input.JobTitle),
		RoleID:       strings.TrimSpace(input.RoleID),
		Status:       domain.PrincipalStatusActive,
	}
	if err := requireText(map[string]string{
		"employee_code": employee.EmployeeCode,
		"email":         employee.Email,
		"full_name":     employee.FullName,
		"role_id":       employee.RoleID,
	}); err != nil {
		return nil, err
	}
	if !auth.PasswordLongEnough(input.Password) {
		return nil, errPasswordTooShort()
	}
	if _, err := s.roles.GetByID(ctx, employee.RoleID); err != nil {
		return nil, lookupError(err, "role", employee.RoleID)
	}
	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	employee.PasswordHash = hash
	if err := s.employees.Create(ctx, employee); err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.NewConflict("email or employee code already exists",
				"البريد الإلكتروني أو رمز الموظف موجود مسبقاً",
				map[string]any{"email": employee.Email, "employee_code": employee.EmployeeCode})
		}
		return nil, apperrors.MapError(err)
	}
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditEmployeeCreated,
		EntityType: "employee",
		EntityID:   employee.ID,
		NewValues:  map[string]any{"email": employee.Email, "role_id": employee.RoleID},
	})
	return employee, nil
}

// Get returns an employee by id.
func (s *EmployeeService) Get(ctx context.Context, id string) (*domain.Employee, error) {
	employee, err := s.employees.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "employee", id)
	}
	return employee, nil
}

// List returns employees matching filter.
func (s *EmployeeService) List(ctx context.Context, filter repository.EmployeeFilter) ([]domain.Employee, int, error) {
	employees, total, err := s.employees.List(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return employees, total, nil
}

// Update applies the supplied fields. Moving an employee to another role
// changes its permissions on the next request.
func (s *EmployeeService) Update(ctx context.Context, actor domain.Subject, id string, input EmployeeUpdateInput) (*domain.Employee, error) {
	employee, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := map[string]any{"role_id": employee.RoleID, "status": employee.Status}

	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if name == "" {
			return nil, apperrors.NewValidationError("full name cannot be empty", "لا يمكن أن يكون الاسم فارغاً",
				map[string]any{"fields": []string{"full_name"}})
		}
		employee.FullName = name
	}
	if input.FullNameAr != nil {
		employee.FullNameAr = strings.TrimSpace(*input.FullNameAr)
	}
	if input.Phone != nil {
		employee.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.Department != nil {
		employee.Department = strings.TrimSpace(*input.Department)
	}
	if input.JobTitle != nil {
		employee.JobTitle = strings.TrimSpace(*input.JobTitle)
	}
	if input.RoleID != nil && *input.RoleID != employee.RoleID {
		if _, err := s.roles.GetByID(ctx, *input.RoleID); err != nil {
			return nil, lookupError(err, "role", *input.RoleID)
		}
		employee.RoleID = *input.RoleID
	}
	if input.Status != nil {
		if *input.Status != domain.PrincipalStatusActive && *input.Status != domain.PrincipalStatusInactive {
			return nil, apperrors.NewValidationError("status is invalid", "الحالة غير صالحة",
				map[string]any{"status": *input.Status})
		}
		employee.Status = *input.Status
	}

	if err := s.employees.Update(ctx, employee); err != nil {
		return nil, apperrors.MapError(err)
	}
	if employee.Status == domain.PrincipalStatusInactive {
		if err := s.refresh.RevokeAllForUser(ctx, employee.ID, domain.SubjectTypeEmployee); err != nil {
			s.logger.Warn("refresh token revocation failed", zap.String("employee_id", employee.ID), zap.Error(err))
		}
	}
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditEmployeeUpdated,
		EntityType: "employee",
		EntityID:   employee.ID,
		OldValues:  old,
		NewValues:  map[string]any{"role_id": employee.RoleID, "status": employee.Status},
	})
	return employee, nil
}

// Delete removes an employee. Requests assigned to it become unassigned.
func (s *EmployeeService) Delete(ctx context.Context, actor domain.Subject, id string) error {
	if actor != nil && actor.SubjectType() == domain.SubjectTypeEmployee && actor.SubjectID() == id {
		return apperrors.NewBadRequest("employees cannot delete themselves", "لا يمكن للموظف حذف حسابه", nil)
	}
	employee, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.employees.Delete(ctx, id); err != nil {
		return lookupError(err, "employee", id)
	}
	if err := s.refresh.RevokeAllForUser(ctx, id, domain.SubjectTypeEmployee); err != nil {
		s.logger.Warn("refresh token revocation failed", zap.String("employee_id", id), zap.Error(err))
	}
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditEmployeeDeleted,
		EntityType: "employee",
		EntityID:   id,
		OldValues:  map[string]any{"email": employee.Email},
	})
	return nil
}
