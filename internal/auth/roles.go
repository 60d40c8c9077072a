package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

// DenialRecorder counts denied permissions. *observability.Metrics satisfies it.
type DenialRecorder interface {
	RecordDenial(permission string)
}

// RequireCustomer ensures a customer is authenticated.
func RequireCustomer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required", "المصادقة مطلوبة")
		}
		if !principal.IsCustomer() {
			return apperrors.NewForbidden("customer access required", "هذه العملية متاحة للعملاء فقط", nil)
		}
		return c.Next()
	}
}

// RequireEmployee ensures an employee is authenticated.
func RequireEmployee() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required", "المصادقة مطلوبة")
		}
		if !principal.IsEmployee() {
			return apperrors.NewForbidden("employee access required", "هذه العملية متاحة للموظفين فقط", nil)
		}
		return c.Next()
	}
}

// RequirePermissions denies the request unless the caller holds every
// listed permission.
func RequirePermissions(gate *Gate, denials DenialRecorder, required ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required", "المصادقة مطلوبة")
		}
		effective, err := gate.ResolveEffectivePermissions(c.UserContext(), principal.Kind, principal.RoleID())
		if err != nil {
			return apperrors.MapError(err)
		}
		missing := Missing(required, effective)
		if len(missing) == 0 {
			return c.Next()
		}
		if denials != nil {
			for _, name := range missing {
				denials.RecordDenial(name)
			}
		}
		return apperrors.NewForbidden("insufficient permissions", "صلاحيات غير كافية",
			map[string]any{"required": required, "missing": missing})
	}
}
