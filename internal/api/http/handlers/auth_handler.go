package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/request-service/internal/api/dto"
	"github.com/spec-kit/request-service/internal/auth"
	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/service"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

// AuthHandler exposes registration, login and token endpoints for both
// principal kinds.
type AuthHandler struct {
	authService *service.AuthService
	gate        *auth.Gate
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, gate *auth.Gate) *AuthHandler {
	return &AuthHandler{authService: authService, gate: gate}
}

// RegisterCustomer handles POST /auth/customers/register.
func (h *AuthHandler) RegisterCustomer(c *fiber.Ctx) error {
	var req dto.CustomerRegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	customer, pair, err := h.authService.RegisterCustomer(c.UserContext(), service.RegisterCustomerInput{
		Email:              req.Email,
		Password:           req.Password,
		FullName:           req.FullName,
		FullNameAr:         req.FullNameAr,
		Phone:              req.Phone,
		CustomerType:       domain.CustomerType(strings.ToUpper(strings.TrimSpace(req.CustomerType))),
		NationalID:         req.NationalID,
		OrganizationName:   req.OrganizationName,
		OrganizationNameAr: req.OrganizationNameAr,
		CommercialRegister: req.CommercialRegister,
		Address:            req.Address,
		City:               req.City,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.AuthResponse{Tokens: tokenResponse(pair), Customer: customerResponse(customer)},
	})
}

// LoginCustomer handles POST /auth/customers/login.
func (h *AuthHandler) LoginCustomer(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseLogin(c, &req); err != nil {
		return err
	}
	customer, pair, err := h.authService.LoginCustomer(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.AuthResponse{Tokens: tokenResponse(pair), Customer: customerResponse(customer)},
	})
}

// LoginEmployee handles POST /auth/employees/login.
func (h *AuthHandler) LoginEmployee(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseLogin(c, &req); err != nil {
		return err
	}
	employee, pair, err := h.authService.LoginEmployee(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.AuthResponse{Tokens: tokenResponse(pair), Employee: employeeResponse(employee)},
	})
}

func parseLogin(c *fiber.Ctx, req *dto.LoginRequest) error {
	if err := parseBody(c, req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", "البريد الإلكتروني وكلمة المرور مطلوبان",
			map[string]any{"fields": []string{"email", "password"}})
	}
	return nil
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	pair, err := h.authService.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": tokenResponse(pair)})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.authService.Logout(c.UserContext(), req.RefreshToken); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// RequestPasswordReset handles POST /auth/password/reset/request. The answer
// is the same whether or not the account exists.
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Email) == "" {
		return apperrors.NewValidationError("email required", "البريد الإلكتروني مطلوب",
			map[string]any{"fields": []string{"email"}})
	}
	kind := domain.SubjectType(strings.ToUpper(strings.TrimSpace(req.UserType)))
	if kind == "" {
		kind = domain.SubjectTypeCustomer
	}
	if !kind.Valid() {
		return apperrors.NewValidationError("user_type is invalid", "نوع المستخدم غير صالح",
			map[string]any{"user_type": req.UserType})
	}
	if _, err := h.authService.RequestPasswordReset(c.UserContext(), req.Email, kind); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"data": fiber.Map{"message": "if the account exists, a reset link has been sent"},
	})
}

// ConfirmPasswordReset handles POST /auth/password/reset/confirm.
func (h *AuthHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetConfirmRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Token == "" || req.NewPassword == "" {
		return apperrors.NewValidationError("token and new password required", "الرمز وكلمة المرور الجديدة مطلوبان",
			map[string]any{"fields": []string{"new_password", "token"}})
	}
	if err := h.authService.ConfirmPasswordReset(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// VerifyEmail handles POST /auth/email/verify.
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	var req dto.VerifyEmailRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	customer, err := h.authService.VerifyEmail(c.UserContext(), req.Token)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": customerResponse(customer)})
}

// ResendVerification handles POST /auth/email/resend.
func (h *AuthHandler) ResendVerification(c *fiber.Ctx) error {
	p, err := customerPrincipal(c)
	if err != nil {
		return err
	}
	if _, err := h.authService.ResendVerification(c.UserContext(), p.ID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusAccepted)
}

// ChangePassword handles POST /auth/password/change.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.PasswordChangeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return apperrors.NewValidationError("current and new password required", "كلمة المرور الحالية والجديدة مطلوبتان",
			map[string]any{"fields": []string{"current_password", "new_password"}})
	}
	if err := h.authService.ChangePassword(c.UserContext(), p, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	effective, err := h.gate.ResolveEffectivePermissions(c.UserContext(), p.Kind, p.RoleID())
	if err != nil {
		return apperrors.MapError(err)
	}
	resp := dto.MeResponse{Kind: string(p.Kind), Permissions: effective.Names()}
	if p.Customer != nil {
		resp.Customer = customerResponse(p.Customer)
	}
	if p.Employee != nil {
		resp.Employee = employeeResponse(p.Employee)
	}
	return c.JSON(fiber.Map{"data": resp})
}
