package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/request-service/internal/auth"
	"github.com/spec-kit/request-service/internal/config"
	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/repository"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

// BootstrapDependencies bundles what Bootstrap needs.
type BootstrapDependencies struct {
	Permissions  *PermissionService
	RoleRepo     repository.RoleRepository
	EmployeeRepo repository.EmployeeRepository
	Logger       *zap.Logger
}

// Bootstrap seeds the permission registry, the Admin role and, when
// configured, the first admin employee. It is safe to run repeatedly.
func Bootstrap(ctx context.Context, cfg config.AuthConfig, deps BootstrapDependencies) error {
	logger := defaultLogger(deps.Logger)
	if _, err := deps.Permissions.SeedBuiltin(ctx); err != nil {
		return err
	}
	admin, err := EnsureAdminRole(ctx, deps.RoleRepo)
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.BootstrapAdminEmail) == "" || cfg.BootstrapAdminPassword == "" {
		return nil
	}
	created, err := EnsureAdminEmployee(ctx, deps.EmployeeRepo, admin, AdminAccount{
		Email:        cfg.BootstrapAdminEmail,
		Password:     cfg.BootstrapAdminPassword,
		FullName:     cfg.BootstrapAdminFullName,
		EmployeeCode: cfg.BootstrapAdminEmployeeCode,
	}, cfg.BcryptCost)
	if err != nil {
		return err
	}
	if created != nil {
		logger.Info("bootstrap admin created", zap.String("employee_id", created.ID), zap.String("email", created.Email))
	}
	return nil
}

// EnsureAdminRole returns the Admin role, creating it when missing.
func EnsureAdminRole(ctx context.Context, roles repository.RoleRepository) (*domain.Role, error) {
	admin, err := roles.GetAdmin(ctx)
	if err == nil {
		return admin, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	admin = &domain.Role{
		Name:        domain.AdminRoleName,
		NameAr:      "مدير النظام",
		Description: "Full access to every permission",
		IsAdmin:     true,
	}
	if err := roles.Create(ctx, admin, nil); err != nil {
		return nil, apperrors.MapError(err)
	}
	return admin, nil
}

// AdminAccount describes an administrator employee to create.
type AdminAccount struct {
	Email        string
	Password     string
	FullName     string
	EmployeeCode string
}

// EnsureAdminEmployee creates an admin employee unless the email is taken.
// It returns nil when the account already exists.
func EnsureAdminEmployee(ctx context.Context, employees repository.EmployeeRepository, admin *domain.Role, account AdminAccount, bcryptCost int) (*domain.Employee, error) {
	email := normalizeEmail(account.Email)
	if _, err := employees.GetByEmail(ctx, email); err == nil {
		return nil, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	if !auth.PasswordLongEnough(account.Password) {
		return nil, errPasswordTooShort()
	}
	hash, err := auth.HashPassword(account.Password, bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	employee := &domain.Employee{
		EmployeeCode: strings.TrimSpace(account.EmployeeCode),
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(account.FullName),
		RoleID:       admin.ID,
		Status:       domain.PrincipalStatusActive,
	}
	if employee.FullName == "" {
		employee.FullName = "System Administrator"
	}
	if err := employees.Create(ctx, employee); err != nil {
		return nil, apperrors.MapError(err)
	}
	return employee, nil
}
