package service

import (
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/request-service/internal/auth"
	"github.com/spec-kit/request-service/internal/domain"
)

func TestRegisterAndLoginCustomer(t *testing.T) {
	h := newHarness(t)
	customer, pair, err := h.auth.RegisterCustomer(h.ctx, RegisterCustomerInput{
		Email:        "  Owner@Example.com ",
		Password:     "customer-pass",
		FullName:     "Owner",
		CustomerType: domain.CustomerTypeIndividual,
		NationalID:   "1012345678",
	})
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", customer.Email)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Nil(t, customer.EmailVerifiedAt)

	claims, err := h.auth.TokenManager().ParseToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, customer.ID, claims.SubjectID)
	assert.Equal(t, domain.SubjectTypeCustomer, claims.Kind)

	_, _, err = h.auth.RegisterCustomer(h.ctx, RegisterCustomerInput{
		Email: "owner@example.com", Password: "customer-pass", FullName: "Dup",
		CustomerType: domain.CustomerTypeIndividual, NationalID: "1",
	})
	requireCode(t, err, "CONFLICT")

	loggedIn, _, err := h.auth.LoginCustomer(h.ctx, "OWNER@example.com", "customer-pass")
	require.NoError(t, err)
	assert.Equal(t, 1, loggedIn.LoginCount)
	require.NotNil(t, loggedIn.LastLoginAt)

	_, _, err = h.auth.LoginCustomer(h.ctx, "owner@example.com", "wrong-pass")
	requireCode(t, err, "UNAUTHORIZED")
	_, _, err = h.auth.LoginCustomer(h.ctx, "nobody@example.com", "customer-pass")
	requireCode(t, err, "UNAUTHORIZED")

	// customers cannot use the employee login
	_, _, err = h.auth.LoginEmployee(h.ctx, "owner@example.com", "customer-pass")
	requireCode(t, err, "UNAUTHORIZED")
}

func TestRegisterValidatesCustomerType(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.auth.RegisterCustomer(h.ctx, RegisterCustomerInput{
		Email: "corp@example.com", Password: "customer-pass", FullName: "Corp",
		CustomerType: domain.CustomerTypeCorporate,
	})
	de := requireCode(t, err, "VALIDATION_FAILED")
	assert.NotEmpty(t, de.Details["fields"])

	_, _, err = h.auth.RegisterCustomer(h.ctx, RegisterCustomerInput{
		Email: "x@example.com", Password: "customer-pass", FullName: "X", CustomerType: "ROBOT",
	})
	requireCode(t, err, "VALIDATION_FAILED")

	_, _, err = h.auth.RegisterCustomer(h.ctx, RegisterCustomerInput{
		Email: "x@example.com", Password: "short", FullName: "X",
		CustomerType: domain.CustomerTypeIndividual, NationalID: "1",
	})
	requireCode(t, err, "VALIDATION_FAILED")
}

func TestEmployeeLoginCarriesRole(t *testing.T) {
	h := newHarness(t)
	employee, pair, err := h.auth.LoginEmployee(h.ctx, "admin@example.com", "admin-pass-1")
	require.NoError(t, err)
	assert.Equal(t, h.admin.ID, employee.ID)

	claims, err := h.auth.TokenManager().ParseToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, h.adminRole.ID, claims.RoleID)
	assert.Equal(t, domain.SubjectTypeEmployee, claims.Kind)

	inactive := domain.PrincipalStatusInactive
	staff := h.employee(t, h.role(t, "Agent").ID)
	_, err = h.employees.Update(h.ctx, h.admin, staff.ID, EmployeeUpdateInput{Status: &inactive})
	require.NoError(t, err)
	_, _, err = h.auth.LoginEmployee(h.ctx, staff.Email, "staff-pass-1")
	requireCode(t, err, "FORBIDDEN")
}

func TestRefreshRotatesToken(t *testing.T) {
	h := newHarness(t)
	_, pair, err := h.auth.LoginEmployee(h.ctx, "admin@example.com", "admin-pass-1")
	require.NoError(t, err)

	next, err := h.auth.Refresh(h.ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = h.auth.Refresh(h.ctx, pair.RefreshToken)
	requireCode(t, err, "UNAUTHORIZED")

	require.NoError(t, h.auth.Logout(h.ctx, next.RefreshToken))
	_, err = h.auth.Refresh(h.ctx, next.RefreshToken)
	requireCode(t, err, "UNAUTHORIZED")

	assert.NoError(t, h.auth.Logout(h.ctx, "never-issued"))
}

func TestRefreshTokenExpires(t *testing.T) {
	h := newHarness(t)
	_, pair, err := h.auth.LoginEmployee(h.ctx, "admin@example.com", "admin-pass-1")
	require.NoError(t, err)

	h.advance(25 * time.Hour)
	_, err = h.auth.Refresh(h.ctx, pair.RefreshToken)
	requireCode(t, err, "UNAUTHORIZED")
}

func TestPasswordResetRevokesSessions(t *testing.T) {
	h := newHarness(t)
	h.customer(t, "owner@example.com")
	_, session, err := h.auth.LoginCustomer(h.ctx, "owner@example.com", "customer-pass")
	require.NoError(t, err)

	raw, err := h.auth.RequestPasswordReset(h.ctx, "owner@example.com", domain.SubjectTypeCustomer)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	unknown, err := h.auth.RequestPasswordReset(h.ctx, "ghost@example.com", domain.SubjectTypeCustomer)
	require.NoError(t, err)
	assert.Empty(t, unknown)

	// the owner has no employee account
	wrongKind, err := h.auth.RequestPasswordReset(h.ctx, "owner@example.com", domain.SubjectTypeEmployee)
	require.NoError(t, err)
	assert.Empty(t, wrongKind)

	err = h.auth.ConfirmPasswordReset(h.ctx, raw, "short")
	requireCode(t, err, "VALIDATION_FAILED")

	require.NoError(t, h.auth.ConfirmPasswordReset(h.ctx, raw, "brand-new-pass"))
	_, err = h.auth.Refresh(h.ctx, session.RefreshToken)
	requireCode(t, err, "UNAUTHORIZED")

	_, _, err = h.auth.LoginCustomer(h.ctx, "owner@example.com", "customer-pass")
	requireCode(t, err, "UNAUTHORIZED")
	_, _, err = h.auth.LoginCustomer(h.ctx, "owner@example.com", "brand-new-pass")
	require.NoError(t, err)

	err = h.auth.ConfirmPasswordReset(h.ctx, raw, "another-pass-1")
	requireCode(t, err, "UNAUTHORIZED")
}

func TestPasswordResetConcurrentConfirmations(t *testing.T) {
	h := newHarness(t)
	h.customer(t, "owner@example.com")
	raw, err := h.auth.RequestPasswordReset(h.ctx, "owner@example.com", domain.SubjectTypeCustomer)
	require.NoError(t, err)

	passwords := []string{"first-new-pass", "second-new-pass"}
	errs := make([]error, len(passwords))
	var wg sync.WaitGroup
	for i, password := range passwords {
		wg.Add(1)
		go func(i int, password string) {
			defer wg.Done()
			errs[i] = h.auth.ConfirmPasswordReset(h.ctx, raw, password)
		}(i, password)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "both confirmations succeeded")
			winner = i
			continue
		}
		requireCode(t, err, "UNAUTHORIZED")
	}
	require.NotEqual(t, -1, winner)

	_, _, err = h.auth.LoginCustomer(h.ctx, "owner@example.com", passwords[winner])
	require.NoError(t, err)
	_, _, err = h.auth.LoginCustomer(h.ctx, "owner@example.com", passwords[1-winner])
	requireCode(t, err, "UNAUTHORIZED")
}

func TestPasswordResetTokenExpires(t *testing.T) {
	h := newHarness(t)
	raw, err := h.auth.RequestPasswordReset(h.ctx, "admin@example.com", domain.SubjectTypeEmployee)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	h.advance(31 * time.Minute)
	err = h.auth.ConfirmPasswordReset(h.ctx, raw, "brand-new-pass")
	requireCode(t, err, "UNAUTHORIZED")

	_, err = h.auth.RequestPasswordReset(h.ctx, "admin@example.com", "ROBOT")
	requireCode(t, err, "VALIDATION_FAILED")
}

func TestVerifyEmail(t *testing.T) {
	h := newHarness(t)
	customer := h.customer(t, "owner@example.com")

	raw, err := h.auth.ResendVerification(h.ctx, customer.ID)
	require.NoError(t, err)

	verified, err := h.auth.VerifyEmail(h.ctx, raw)
	require.NoError(t, err)
	require.NotNil(t, verified.EmailVerifiedAt)

	_, err = h.auth.VerifyEmail(h.ctx, raw)
	requireCode(t, err, "UNAUTHORIZED")

	_, err = h.auth.ResendVerification(h.ctx, customer.ID)
	requireCode(t, err, "BAD_REQUEST")
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	customer := h.customer(t, "owner@example.com")

	err := h.auth.ChangePassword(h.ctx, customer, "wrong-current", "brand-new-pass")
	requireCode(t, err, "BAD_REQUEST")

	require.NoError(t, h.auth.ChangePassword(h.ctx, customer, "customer-pass", "brand-new-pass"))
	_, _, err = h.auth.LoginCustomer(h.ctx, "owner@example.com", "brand-new-pass")
	require.NoError(t, err)

	require.NoError(t, h.auth.ChangePassword(h.ctx, h.admin, "admin-pass-1", "admin-pass-2"))
	_, _, err = h.auth.LoginEmployee(h.ctx, "admin@example.com", "admin-pass-2")
	require.NoError(t, err)
}

func TestPurgeExpiredTokens(t *testing.T) {
	h := newHarness(t)
	h.customer(t, "owner@example.com")

	n, err := h.auth.PurgeExpiredTokens(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// past both the refresh and the verification lifetimes
	h.advance(49 * time.Hour)
	n, err = h.auth.PurgeExpiredTokens(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLoginLockout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := newHarness(t)
	cfg := testConfig()
	limited := NewAuthService(cfg, AuthDependencies{
		CustomerRepo: h.repos.Customers, EmployeeRepo: h.repos.Employees, RefreshTokenRepo: h.repos.RefreshTokens,
		PasswordResetRepo: h.repos.PasswordResets, EmailVerificationRepo: h.repos.EmailVerifications,
		Limiter: auth.NewLoginLimiter(client, 3, time.Minute, nil),
		Audit:   h.audit, Clock: h.clock,
	})

	for i := 0; i < 3; i++ {
		_, _, err := limited.LoginEmployee(h.ctx, "admin@example.com", "bad-password")
		requireCode(t, err, "UNAUTHORIZED")
	}
	_, _, err := limited.LoginEmployee(h.ctx, "admin@example.com", "admin-pass-1")
	requireCode(t, err, "TOO_MANY_REQUESTS")

	mr.FastForward(2 * time.Minute)
	_, _, err = limited.LoginEmployee(h.ctx, "admin@example.com", "admin-pass-1")
	require.NoError(t, err)
}
