package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/request-service/internal/domain"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller. Exactly one of Customer and
// Employee is set, matching Kind.
type Principal struct {
	Kind     domain.SubjectType
	ID       string
	Customer *domain.Customer
	Employee *domain.Employee
}

func (p *Principal) SubjectID() string               { return p.ID }
func (p *Principal) SubjectType() domain.SubjectType { return p.Kind }

// RoleID returns the employee's role, or "" for customers.
func (p *Principal) RoleID() string {
	if p.Employee == nil {
		return ""
	}
	return p.Employee.RoleID
}

// IsEmployee reports whether the caller is an employee.
func (p *Principal) IsEmployee() bool {
	return p.Kind == domain.SubjectTypeEmployee && p.Employee != nil
}

// IsCustomer reports whether the caller is a customer.
func (p *Principal) IsCustomer() bool {
	return p.Kind == domain.SubjectTypeCustomer && p.Customer != nil
}

// CustomerLookup loads customers by id.
type CustomerLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
}

// EmployeeLookup loads employees by id.
type EmployeeLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Employee, error)
}

// Middleware validates bearer tokens and loads principals.
type Middleware struct {
	tokens    *TokenManager
	customers CustomerLookup
	employees EmployeeLookup
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager, customers CustomerLookup, employees EmployeeLookup) *Middleware {
	return &Middleware{tokens: tokens, customers: customers, employees: employees}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header", "ترويسة التفويض مفقودة")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header", "ترويسة التفويض غير صالحة")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid or expired token", "الرمز غير صالح أو منتهي الصلاحية")
	}

	principal, err := m.load(c.UserContext(), claims)
	if err != nil {
		return err
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

func (m *Middleware) load(ctx context.Context, claims *Claims) (*Principal, error) {
	principal := &Principal{Kind: claims.Kind, ID: claims.SubjectID}

	switch claims.Kind {
	case domain.SubjectTypeCustomer:
		customer, err := m.customers.GetByID(ctx, claims.SubjectID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return nil, apperrors.NewUnauthorized("account not found", "الحساب غير موجود")
			}
			return nil, apperrors.MapError(err)
		}
		if customer.Status != domain.PrincipalStatusActive {
			return nil, apperrors.NewUnauthorized("account is inactive", "الحساب غير نشط")
		}
		principal.Customer = customer
	case domain.SubjectTypeEmployee:
		employee, err := m.employees.GetByID(ctx, claims.SubjectID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return nil, apperrors.NewUnauthorized("account not found", "الحساب غير موجود")
			}
			return nil, apperrors.MapError(err)
		}
		if employee.Status != domain.PrincipalStatusActive {
			return nil, apperrors.NewUnauthorized("account is inactive", "الحساب غير نشط")
		}
		principal.Employee = employee
	default:
		return nil, apperrors.NewUnauthorized("unknown subject", "نوع المستخدم غير معروف")
	}
	return principal, nil
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
