package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/request-service/internal/auth"
	"github.com/spec-kit/request-service/internal/config"
	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/repository"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

// TokenPair is the credential set handed out on login, registration and refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// RegisterCustomerInput describes a self-registration.
type RegisterCustomerInput struct {
	Email              string
	Password           string
	FullName           string
	FullNameAr         string
	Phone              string
	CustomerType       domain.CustomerType
	NationalID         string
	OrganizationName   string
	OrganizationNameAr string
	CommercialRegister string
	Address            string
	City               string
}

// AuthService coordinates registration, login and the token lifecycles.
type AuthService struct {
	customers     repository.CustomerRepository
	employees     repository.EmployeeRepository
	refresh       repository.RefreshTokenRepository
	resets        repository.OneTimeTokenRepository
	verifications repository.OneTimeTokenRepository
	tokenMgr      *auth.TokenManager
	limiter       *auth.LoginLimiter
	audit         *AuditService
	logger        *zap.Logger
	now           Clock

	bcryptCost      int
	refreshTTL      time.Duration
	resetTTL        time.Duration
	verificationTTL time.Duration
	emailFrom       string
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	CustomerRepo          repository.CustomerRepository
	EmployeeRepo          repository.EmployeeRepository
	RefreshTokenRepo      repository.RefreshTokenRepository
	PasswordResetRepo     repository.OneTimeTokenRepository
	EmailVerificationRepo repository.OneTimeTokenRepository
	Limiter               *auth.LoginLimiter
	Audit                 *AuditService
	Logger                *zap.Logger
	Clock                 Clock
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		customers:       deps.CustomerRepo,
		employees:       deps.EmployeeRepo,
		refresh:         deps.RefreshTokenRepo,
		resets:          deps.PasswordResetRepo,
		verifications:   deps.EmailVerificationRepo,
		tokenMgr:        auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		limiter:         deps.Limiter,
		audit:           deps.Audit,
		logger:          defaultLogger(deps.Logger),
		now:             defaultClock(deps.Clock),
		bcryptCost:      cfg.Auth.BcryptCost,
		refreshTTL:      time.Duration(cfg.Auth.RefreshTokenTTLHours) * time.Hour,
		resetTTL:        time.Duration(cfg.Auth.PasswordResetTTLMinutes) * time.Minute,
		verificationTTL: time.Duration(cfg.Auth.EmailVerificationTTLHours) * time.Hour,
		emailFrom:       cfg.Notification.EmailFrom,
	}
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func errInvalidCredentials() error {
	return apperrors.NewUnauthorized("invalid email or password", "البريد الإلكتروني أو كلمة المرور غير صحيحة")
}

func errInvalidToken() error {
	return apperrors.NewUnauthorized("token is invalid or expired", "الرمز غير صالح أو منتهي الصلاحية")
}

func errAccountInactive() error {
	return apperrors.NewForbidden("account is inactive", "الحساب غير نشط", nil)
}

func errPasswordTooShort() error {
	return apperrors.NewValidationError("password is too short", "كلمة المرور قصيرة جداً",
		map[string]any{"min_length": auth.MinPasswordLength})
}

// RegisterCustomer creates a customer account, an email verification token
// and a first token pair.
func (s *AuthService) RegisterCustomer(ctx context.Context, input RegisterCustomerInput) (*domain.Customer, TokenPair, error) {
	customer := &domain.Customer{
		Email:              normalizeEmail(input.Email),
		FullName:           strings.TrimSpace(input.FullName),
		FullNameAr:         strings.TrimSpace(input.FullNameAr),
		Phone:              strings.TrimSpace(input.Phone),
		CustomerType:       input.CustomerType,
		NationalID:         strings.TrimSpace(input.NationalID),
		OrganizationName:   strings.TrimSpace(input.OrganizationName),
		OrganizationNameAr: strings.TrimSpace(input.OrganizationNameAr),
		CommercialRegister: strings.TrimSpace(input.CommercialRegister),
		Address:            strings.TrimSpace(input.Address),
		City:               strings.TrimSpace(input.City),
		Status:             domain.PrincipalStatusActive,
	}
	if err := requireText(map[string]string{"email": customer.Email, "full_name": customer.FullName}); err != nil {
		return nil, TokenPair{}, err
	}
	if !strings.Contains(customer.Email, "@") {
		return nil, TokenPair{}, apperrors.NewValidationError("email is invalid", "البريد الإلكتروني غير صالح",
			map[string]any{"fields": []string{"email"}})
	}
	if !customer.CustomerType.Valid() {
		return nil, TokenPair{}, apperrors.NewValidationError("customer type is invalid", "نوع العميل غير صالح",
			map[string]any{"customer_type": customer.CustomerType})
	}
	if missing := customer.MissingRegistrationFields(); len(missing) > 0 {
		return nil, TokenPair{}, apperrors.NewValidationError(
			"required fields are missing for this customer type",
			"حقول مطلوبة مفقودة لهذا النوع من العملاء",
			map[string]any{"fields": missing, "customer_type": customer.CustomerType})
	}
	if !auth.PasswordLongEnough(input.Password) {
		return nil, TokenPair{}, errPasswordTooShort()
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, TokenPair{}, apperrors.NewInternalError(err)
	}
	customer.PasswordHash = hash
	if err := s.customers.Create(ctx, customer); err != nil {
		if isUniqueViolation(err) {
			return nil, TokenPair{}, apperrors.NewConflict("email is already registered", "البريد الإلكتروني مسجل مسبقاً",
				map[string]any{"email": customer.Email})
		}
		return nil, TokenPair{}, apperrors.MapError(err)
	}

	if _, err := s.issueVerification(ctx, customer.Email); err != nil {
		s.logger.Warn("verification token not issued", zap.String("customer_id", customer.ID), zap.Error(err))
	}
	pair, err := s.issuePair(ctx, customer.ID, domain.SubjectTypeCustomer, "")
	if err != nil {
		return nil, TokenPair{}, err
	}
	return customer, pair, nil
}

// LoginCustomer authenticates a customer.
func (s *AuthService) LoginCustomer(ctx context.Context, email, password string) (*domain.Customer, TokenPair, error) {
	email = normalizeEmail(email)
	if err := s.checkLimiter(ctx, domain.SubjectTypeCustomer, email); err != nil {
		return nil, TokenPair{}, err
	}
	customer, err := s.customers.GetByEmail(ctx, email)
	if err != nil {
		return nil, TokenPair{}, s.failLogin(ctx, domain.SubjectTypeCustomer, email, err)
	}
	if err := auth.ComparePassword(customer.PasswordHash, password); err != nil {
		return nil, TokenPair{}, s.failLogin(ctx, domain.SubjectTypeCustomer, email, nil)
	}
	if customer.Status != domain.PrincipalStatusActive {
		return nil, TokenPair{}, errAccountInactive()
	}
	now := s.now()
	if err := s.customers.RecordLogin(ctx, customer.ID, now); err != nil {
		return nil, TokenPair{}, apperrors.MapError(err)
	}
	customer.LastLoginAt = &now
	customer.LoginCount++
	s.limiter.Reset(ctx, domain.SubjectTypeCustomer, email)

	pair, err := s.issuePair(ctx, customer.ID, domain.SubjectTypeCustomer, "")
	if err != nil {
		return nil, TokenPair{}, err
	}
	return customer, pair, nil
}

// LoginEmployee authenticates an employee.
func (s *AuthService) LoginEmployee(ctx context.Context, email, password string) (*domain.Employee, TokenPair, error) {
	email = normalizeEmail(email)
	if err := s.checkLimiter(ctx, domain.SubjectTypeEmployee, email); err != nil {
		return nil, TokenPair{}, err
	}
	employee, err := s.employees.GetByEmail(ctx, email)
	if err != nil {
		return nil, TokenPair{}, s.failLogin(ctx, domain.SubjectTypeEmployee, email, err)
	}
	if err := auth.ComparePassword(employee.PasswordHash, password); err != nil {
		return nil, TokenPair{}, s.failLogin(ctx, domain.SubjectTypeEmployee, email, nil)
	}
	if employee.Status != domain.PrincipalStatusActive {
		return nil, TokenPair{}, errAccountInactive()
	}
	now := s.now()
	if err := s.employees.RecordLogin(ctx, employee.ID, now); err != nil {
		return nil, TokenPair{}, apperrors.MapError(err)
	}
	employee.LastLoginAt = &now
	employee.LoginCount++
	s.limiter.Reset(ctx, domain.SubjectTypeEmployee, email)

	pair, err := s.issuePair(ctx, employee.ID, domain.SubjectTypeEmployee, employee.RoleID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return employee, pair, nil
}

func (s *AuthService) checkLimiter(ctx context.Context, kind domain.SubjectType, email string) error {
	if s.limiter.Allowed(ctx, kind, email) {
		return nil
	}
	return apperrors.NewTooManyRequests("too many failed login attempts, try again later",
		"محاولات تسجيل دخول فاشلة كثيرة، حاول لاحقاً")
}

// failLogin counts the attempt and hides whether the account exists.
func (s *AuthService) failLogin(ctx context.Context, kind domain.SubjectType, email string, lookupErr error) error {
	if lookupErr != nil && !errors.Is(lookupErr, pgx.ErrNoRows) {
		return apperrors.MapError(lookupErr)
	}
	s.limiter.Fail(ctx, kind, email)
	return errInvalidCredentials()
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair issued. Presenting a revoked token fails.
func (s *AuthService) Refresh(ctx context.Context, raw string) (TokenPair, error) {
	token, err := s.refresh.GetByHash(ctx, auth.HashOpaqueToken(strings.TrimSpace(raw)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenPair{}, errInvalidToken()
		}
		return TokenPair{}, apperrors.MapError(err)
	}
	if !token.Valid(s.now()) {
		return TokenPair{}, errInvalidToken()
	}

	roleID := ""
	switch token.UserType {
	case domain.SubjectTypeCustomer:
		customer, err := s.customers.GetByID(ctx, token.UserID)
		if err != nil {
			return TokenPair{}, s.danglingToken(err)
		}
		if customer.Status != domain.PrincipalStatusActive {
			return TokenPair{}, errAccountInactive()
		}
	case domain.SubjectTypeEmployee:
		employee, err := s.employees.GetByID(ctx, token.UserID)
		if err != nil {
			return TokenPair{}, s.danglingToken(err)
		}
		if employee.Status != domain.PrincipalStatusActive {
			return TokenPair{}, errAccountInactive()
		}
		roleID = employee.RoleID
	default:
		return TokenPair{}, errInvalidToken()
	}

	rawNext, next, err := s.newRefreshToken(token.UserID, token.UserType)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.refresh.Rotate(ctx, token.ID, next); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenPair{}, errInvalidToken()
		}
		return TokenPair{}, apperrors.MapError(err)
	}
	access, accessExp, err := s.tokenMgr.GenerateToken(token.UserID, token.UserType, roleID)
	if err != nil {
		return TokenPair{}, apperrors.NewInternalError(err)
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     rawNext,
		RefreshExpiresAt: next.ExpiresAt,
	}, nil
}

func (s *AuthService) danglingToken(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errInvalidToken()
	}
	return apperrors.MapError(err)
}

// Logout revokes the refresh token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	token, err := s.refresh.GetByHash(ctx, auth.HashOpaqueToken(strings.TrimSpace(raw)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return apperrors.MapError(err)
	}
	return apperrors.MapError(s.refresh.Revoke(ctx, token.ID))
}

// RequestPasswordReset issues a reset token when an account of kind exists
// for email. The returned raw token is empty when no account matched; callers
// answer the same way in both cases.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string, kind domain.SubjectType) (string, error) {
	email = normalizeEmail(email)
	if !kind.Valid() {
		return "", apperrors.NewValidationError("user type is invalid", "نوع المستخدم غير صالح",
			map[string]any{"user_type": kind})
	}
	exists, err := s.principalExists(ctx, email, kind)
	if err != nil {
		return "", err
	}
	if !exists {
		s.logger.Debug("password reset requested for unknown account", zap.String("user_type", string(kind)))
		return "", nil
	}
	raw, hash, err := auth.NewOpaqueToken()
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	token := &repository.OneTimeToken{
		Email:     email,
		UserType:  kind,
		TokenHash: hash,
		ExpiresAt: s.now().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, token); err != nil {
		return "", apperrors.MapError(err)
	}
	s.sendEmailStub("password_reset", email)
	return raw, nil
}

// ConfirmPasswordReset sets a new password and revokes every refresh token
// of the principal. The token is claimed before the password is written so
// concurrent confirmations cannot both succeed.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, raw, newPassword string) error {
	if !auth.PasswordLongEnough(newPassword) {
		return errPasswordTooShort()
	}
	token, err := s.resets.GetByHash(ctx, auth.HashOpaqueToken(strings.TrimSpace(raw)))
	if err != nil {
		return s.danglingToken(err)
	}
	if !token.Valid(s.now()) {
		return errInvalidToken()
	}

	var (
		customer *domain.Customer
		employee *domain.Employee
	)
	switch token.UserType {
	case domain.SubjectTypeCustomer:
		if customer, err = s.customers.GetByEmail(ctx, token.Email); err != nil {
			return s.danglingToken(err)
		}
	case domain.SubjectTypeEmployee:
		if employee, err = s.employees.GetByEmail(ctx, token.Email); err != nil {
			return s.danglingToken(err)
		}
	default:
		return errInvalidToken()
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	if err := s.resets.MarkUsed(ctx, token.ID); err != nil {
		return s.danglingToken(err)
	}

	var subject domain.Subject
	if customer != nil {
		customer.PasswordHash = hash
		if err := s.customers.Update(ctx, customer); err != nil {
			return apperrors.MapError(err)
		}
		subject = customer
	} else {
		employee.PasswordHash = hash
		if err := s.employees.Update(ctx, employee); err != nil {
			return apperrors.MapError(err)
		}
		subject = employee
	}
	if err := s.refresh.RevokeAllForUser(ctx, subject.SubjectID(), subject.SubjectType()); err != nil {
		return apperrors.MapError(err)
	}
	s.audit.Record(ctx, AuditRecord{
		Actor:      subject,
		Action:     AuditPasswordReset,
		EntityType: strings.ToLower(string(subject.SubjectType())),
		EntityID:   subject.SubjectID(),
	})
	return nil
}

// VerifyEmail consumes a verification token and stamps the customer.
func (s *AuthService) VerifyEmail(ctx context.Context, raw string) (*domain.Customer, error) {
	token, err := s.verifications.GetByHash(ctx, auth.HashOpaqueToken(strings.TrimSpace(raw)))
	if err != nil {
		return nil, s.danglingToken(err)
	}
	if !token.Valid(s.now()) || token.UserType != domain.SubjectTypeCustomer {
		return nil, errInvalidToken()
	}
	customer, err := s.customers.GetByEmail(ctx, token.Email)
	if err != nil {
		return nil, s.danglingToken(err)
	}
	if err := s.verifications.MarkUsed(ctx, token.ID); err != nil {
		return nil, s.danglingToken(err)
	}
	if customer.EmailVerifiedAt == nil {
		now := s.now()
		customer.EmailVerifiedAt = &now
		if err := s.customers.Update(ctx, customer); err != nil {
			return nil, apperrors.MapError(err)
		}
	}
	return customer, nil
}

// ResendVerification issues a fresh verification token for an unverified customer.
func (s *AuthService) ResendVerification(ctx context.Context, customerID string) (string, error) {
	customer, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return "", lookupError(err, "customer", customerID)
	}
	if customer.EmailVerifiedAt != nil {
		return "", apperrors.NewBadRequest("email is already verified", "البريد الإلكتروني موثق مسبقاً", nil)
	}
	return s.issueVerification(ctx, customer.Email)
}

// ChangePassword verifies the current password before storing the new one.
func (s *AuthService) ChangePassword(ctx context.Context, subject domain.Subject, currentPassword, newPassword string) error {
	if !auth.PasswordLongEnough(newPassword) {
		return errPasswordTooShort()
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	wrongPassword := apperrors.NewBadRequest("current password is incorrect", "كلمة المرور الحالية غير صحيحة", nil)

	switch subject.SubjectType() {
	case domain.SubjectTypeCustomer:
		customer, err := s.customers.GetByID(ctx, subject.SubjectID())
		if err != nil {
			return lookupError(err, "customer", subject.SubjectID())
		}
		if auth.ComparePassword(customer.PasswordHash, currentPassword) != nil {
			return wrongPassword
		}
		customer.PasswordHash = hash
		return apperrors.MapError(s.customers.Update(ctx, customer))
	case domain.SubjectTypeEmployee:
		employee, err := s.employees.GetByID(ctx, subject.SubjectID())
		if err != nil {
			return lookupError(err, "employee", subject.SubjectID())
		}
		if auth.ComparePassword(employee.PasswordHash, currentPassword) != nil {
			return wrongPassword
		}
		employee.PasswordHash = hash
		return apperrors.MapError(s.employees.Update(ctx, employee))
	default:
		return errInvalidToken()
	}
}

// PurgeExpiredTokens removes expired or spent tokens of every kind.
func (s *AuthService) PurgeExpiredTokens(ctx context.Context) (int, error) {
	now := s.now()
	total := 0
	for _, purge := range []func(context.Context, time.Time) (int, error){
		s.refresh.DeleteExpired,
		s.resets.DeleteExpired,
		s.verifications.DeleteExpired,
	} {
		n, err := purge(ctx, now)
		if err != nil {
			return total, apperrors.MapError(err)
		}
		total += n
	}
	return total, nil
}

func (s *AuthService) principalExists(ctx context.Context, email string, kind domain.SubjectType) (bool, error) {
	var err error
	if kind == domain.SubjectTypeCustomer {
		_, err = s.customers.GetByEmail(ctx, email)
	} else {
		_, err = s.employees.GetByEmail(ctx, email)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.MapError(err)
	}
	return true, nil
}

func (s *AuthService) issueVerification(ctx context.Context, email string) (string, error) {
	raw, hash, err := auth.NewOpaqueToken()
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	token := &repository.OneTimeToken{
		Email:     email,
		UserType:  domain.SubjectTypeCustomer,
		TokenHash: hash,
		ExpiresAt: s.now().Add(s.verificationTTL),
	}
	if err := s.verifications.Create(ctx, token); err != nil {
		return "", apperrors.MapError(err)
	}
	s.sendEmailStub("email_verification", email)
	return raw, nil
}

func (s *AuthService) newRefreshToken(userID string, kind domain.SubjectType) (string, *domain.RefreshToken, error) {
	raw, hash, err := auth.NewOpaqueToken()
	if err != nil {
		return "", nil, apperrors.NewInternalError(err)
	}
	return raw, &domain.RefreshToken{
		UserID:    userID,
		UserType:  kind,
		TokenHash: hash,
		ExpiresAt: s.now().Add(s.refreshTTL),
	}, nil
}

func (s *AuthService) issuePair(ctx context.Context, userID string, kind domain.SubjectType, roleID string) (TokenPair, error) {
	access, accessExp, err := s.tokenMgr.GenerateToken(userID, kind, roleID)
	if err != nil {
		return TokenPair{}, apperrors.NewInternalError(err)
	}
	raw, refresh, err := s.newRefreshToken(userID, kind)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.refresh.Create(ctx, refresh); err != nil {
		return TokenPair{}, apperrors.MapError(err)
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     raw,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

func (s *AuthService) sendEmailStub(template, to string) {
	if strings.TrimSpace(s.emailFrom) == "" {
		return
	}
	s.logger.Debug("sendEmailStub",
		zap.String("from", s.emailFrom),
		zap.String("to", to),
		zap.String("template", template))
}
